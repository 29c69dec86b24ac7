//go:build cucumber

package app_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"velora-scenario-service/internal/app"
	"velora-scenario-service/internal/domain"
	"velora-scenario-service/internal/infra/local"
)

// TestSessionControllerScenarios runs the controller feature scenarios.
func TestSessionControllerScenarios(t *testing.T) {
	featurePath := filepath.Join("..", "..", "features", "session_controller.feature")
	suite := godog.TestSuite{
		Name: "session-controller",
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			initializeControllerScenario(ctx, t)
		},
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{featurePath},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

func initializeControllerScenario(ctx *godog.ScenarioContext, t *testing.T) {
	state := &controllerScenarioState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset(t.TempDir())
		return ctx, nil
	})

	ctx.Step(`^a question with options:$`, state.givenQuestion)
	ctx.Step(`^a guest player with (\d+) prior submissions$`, state.givenGuest)
	ctx.Step(`^a signed-in player "([^"]+)"$`, state.givenSignedIn)
	ctx.Step(`^the player opens the question$`, state.whenOpen)
	ctx.Step(`^the player selects "([^"]+)"$`, state.whenSelect)
	ctx.Step(`^the player submits$`, state.whenSubmit)
	ctx.Step(`^the player reloads the page$`, state.whenReload)
	ctx.Step(`^the player asks for the next question$`, state.whenNext)
	ctx.Step(`^the options are shown in the order "([^"]+)"$`, state.thenOrder)
	ctx.Step(`^the answer is revealed$`, state.thenRevealed)
	ctx.Step(`^the answer is not revealed$`, state.thenNotRevealed)
	ctx.Step(`^the player is gated$`, state.thenGated)
	ctx.Step(`^the revealed composite is (\d+) in band "([^"]+)"$`, state.thenComposite)
	ctx.Step(`^no progress was saved$`, state.thenNoProgress)
	ctx.Step(`^the guest counter is (\d+)$`, state.thenCounter)
	ctx.Step(`^progress was saved for "([^"]+)" with answer "([^"]+)" and composite (\d+)$`, state.thenProgress)
	ctx.Step(`^the player is still on question (\d+)$`, state.thenPosition)
}

type controllerScenarioState struct {
	dir        string
	question   domain.Question
	userID     string
	quota      *local.FileQuota
	progress   *recordingProgress
	controller *app.Controller
}

func (s *controllerScenarioState) reset(dir string) {
	*s = controllerScenarioState{dir: dir, progress: &recordingProgress{}}
	s.quota = local.NewFileQuota(filepath.Join(dir, "quota.yaml"))
}

func (s *controllerScenarioState) givenQuestion(table *godog.Table) error {
	s.question = domain.Question{ID: "q1", Prompt: "Does the sale trigger the clause?"}
	for _, row := range table.Rows[1:] {
		label := row.Cells[0].Value
		composite, err := strconv.Atoi(row.Cells[2].Value)
		if err != nil {
			return err
		}
		s.question.Options = append(s.question.Options, domain.AnswerOption{
			ID:      label,
			Label:   label,
			Text:    "option " + label,
			Correct: row.Cells[1].Value == "yes",
			Scores:  domain.Scores{Composite: composite},
		})
	}
	return nil
}

func (s *controllerScenarioState) givenGuest(prior int) error {
	for i := 0; i < prior; i++ {
		if _, err := s.quota.IncrementAndRead(context.Background()); err != nil {
			return err
		}
	}
	return nil
}

func (s *controllerScenarioState) givenSignedIn(userID string) error {
	s.userID = userID
	return nil
}

// mount builds a fresh controller over the durable stores, as a page load would.
func (s *controllerScenarioState) mount() {
	s.controller = app.NewController([]domain.Question{s.question}, app.ControllerDeps{
		Identity:       staticOracle(s.userID),
		Quota:          s.quota,
		Progress:       s.progress,
		AnonymousLimit: 5,
	})
	s.controller.ResolveIdentity(context.Background())
}

func (s *controllerScenarioState) ensureMounted() {
	if s.controller == nil {
		s.mount()
	}
}

func (s *controllerScenarioState) whenOpen() error {
	s.mount()
	return nil
}

func (s *controllerScenarioState) whenReload() error {
	s.mount()
	return nil
}

func (s *controllerScenarioState) whenSelect(label string) error {
	s.ensureMounted()
	return s.controller.Select(label)
}

func (s *controllerScenarioState) whenSubmit() error {
	s.ensureMounted()
	s.controller.Submit(context.Background())
	return nil
}

func (s *controllerScenarioState) whenNext() error {
	s.ensureMounted()
	s.controller.Next()
	return nil
}

func (s *controllerScenarioState) thenOrder(expected string) error {
	labels := make([]string, 0, len(s.question.Options))
	for _, opt := range s.controller.View().Options {
		labels = append(labels, opt.Label)
	}
	if got := strings.Join(labels, ","); got != expected {
		return fmt.Errorf("expected order %s, got %s", expected, got)
	}
	return nil
}

func (s *controllerScenarioState) thenRevealed() error {
	if !s.controller.State().Revealed {
		return fmt.Errorf("expected the answer to be revealed")
	}
	return nil
}

func (s *controllerScenarioState) thenNotRevealed() error {
	if s.controller.State().Revealed {
		return fmt.Errorf("expected the answer to stay hidden")
	}
	return nil
}

func (s *controllerScenarioState) thenGated() error {
	if !s.controller.State().Gated {
		return fmt.Errorf("expected the player to be gated")
	}
	return nil
}

func (s *controllerScenarioState) thenComposite(composite int, band string) error {
	reveal := s.controller.View().Reveal
	if reveal == nil {
		return fmt.Errorf("no reveal")
	}
	if reveal.Composite != composite || string(reveal.Band) != band {
		return fmt.Errorf("expected %d/%s, got %d/%s", composite, band, reveal.Composite, reveal.Band)
	}
	return nil
}

func (s *controllerScenarioState) thenNoProgress() error {
	if err := s.controller.Flush(context.Background()); err != nil {
		return err
	}
	if n := len(s.progress.calls()); n != 0 {
		return fmt.Errorf("expected no progress, got %d rows", n)
	}
	return nil
}

func (s *controllerScenarioState) thenCounter(expected int) error {
	n, err := s.quota.Count(context.Background())
	if err != nil {
		return err
	}
	if n != expected {
		return fmt.Errorf("expected guest counter %d, got %d", expected, n)
	}
	return nil
}

func (s *controllerScenarioState) thenProgress(userID, answerID string, composite int) error {
	if err := s.controller.Flush(context.Background()); err != nil {
		return err
	}
	records := s.progress.calls()
	if len(records) != 1 {
		return fmt.Errorf("expected one progress row, got %d", len(records))
	}
	r := records[0]
	if r.UserID != userID || r.QuestionID != "q1" || r.SelectedAnswerID != answerID || r.CompositeScore != composite || r.AnsweredAt.IsZero() {
		return fmt.Errorf("unexpected progress row %+v", r)
	}
	return nil
}

func (s *controllerScenarioState) thenPosition(position int) error {
	if got := s.controller.View().Position; got != position {
		return fmt.Errorf("expected question %d, got %d", position, got)
	}
	return nil
}
