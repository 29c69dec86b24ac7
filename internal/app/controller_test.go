package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"velora-scenario-service/internal/app"
	"velora-scenario-service/internal/domain"
	"velora-scenario-service/internal/infra/memory"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSelectSubmitRevealsForAnonymousUnderQuota(t *testing.T) {
	ctx := context.Background()
	ctrl := newController(t, sampleQuestions(), "", memory.NewQuotaLedger().Device("d1"), nil)

	if err := ctrl.Select("a"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if got := ctrl.Submit(ctx); got != app.OutcomeRevealed {
		t.Fatalf("expected reveal, got %s", got)
	}
	state := ctrl.State()
	if !state.Revealed || state.Gated {
		t.Fatalf("expected revealed and not gated, got %+v", state)
	}

	correct := 0
	for _, opt := range ctrl.View().Options {
		if opt.Correct == nil {
			t.Fatalf("expected correctness exposed after reveal for %s", opt.Label)
		}
		if *opt.Correct {
			correct++
		}
	}
	if correct != 1 {
		t.Fatalf("expected exactly one correct option, got %d", correct)
	}
}

func TestSelectKeepsLastChoice(t *testing.T) {
	ctrl := newController(t, sampleQuestions(), "", nil, nil)

	_ = ctrl.Select("a")
	_ = ctrl.Select("c")
	_ = ctrl.Select("b")

	if got := ctrl.State().SelectedAnswerID; got != "b" {
		t.Fatalf("expected last selection b, got %q", got)
	}
	if ctrl.Phase() != app.PhaseSelected {
		t.Fatalf("expected selected phase, got %s", ctrl.Phase())
	}
}

func TestSelectUnknownOption(t *testing.T) {
	ctrl := newController(t, sampleQuestions(), "", nil, nil)

	if err := ctrl.Select("zzz"); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected option not found, got %v", err)
	}
	if ctrl.State().SelectedAnswerID != "" {
		t.Fatalf("expected no selection")
	}
}

func TestSelectIsFrozenAfterReveal(t *testing.T) {
	ctrl := newController(t, sampleQuestions(), "", nil, nil)
	_ = ctrl.Select("a")
	ctrl.Submit(context.Background())

	if err := ctrl.Select("b"); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if got := ctrl.State().SelectedAnswerID; got != "a" {
		t.Fatalf("expected selection frozen at a, got %q", got)
	}
}

func TestSubmitWithoutSelectionIsIgnored(t *testing.T) {
	ledger := memory.NewQuotaLedger()
	ctrl := newController(t, sampleQuestions(), "", ledger.Device("d1"), nil)

	if got := ctrl.Submit(context.Background()); got != app.OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", got)
	}
	if n, _ := ledger.Device("d1").Count(context.Background()); n != 0 {
		t.Fatalf("expected no quota consumed, got %d", n)
	}
}

func TestSubmitTwiceIsIgnored(t *testing.T) {
	progress := &recordingProgress{}
	ctrl := newController(t, sampleQuestions(), "user-1", nil, progress)
	_ = ctrl.Select("a")

	ctrl.Submit(context.Background())
	if got := ctrl.Submit(context.Background()); got != app.OutcomeIgnored {
		t.Fatalf("expected second submit ignored, got %s", got)
	}
	flush(t, ctrl)
	if len(progress.calls()) != 1 {
		t.Fatalf("expected one upsert, got %d", len(progress.calls()))
	}
}

func TestQuotaBoundaryAcrossQuestions(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewQuotaLedger()
	ctrl := newController(t, fiveQuestions(), "", ledger.Device("d1"), nil)

	for i := 1; i <= 4; i++ {
		_ = ctrl.Select(ctrl.View().Options[0].ID)
		if got := ctrl.Submit(ctx); got != app.OutcomeRevealed {
			t.Fatalf("submit %d: expected reveal, got %s", i, got)
		}
		if !ctrl.Next() {
			t.Fatalf("submit %d: expected to advance", i)
		}
	}

	_ = ctrl.Select(ctrl.View().Options[0].ID)
	if got := ctrl.Submit(ctx); got != app.OutcomeGated {
		t.Fatalf("expected fifth submit gated, got %s", got)
	}
	state := ctrl.State()
	if !state.Gated || state.Revealed {
		t.Fatalf("expected gated and unrevealed, got %+v", state)
	}
	if state.SelectedAnswerID == "" {
		t.Fatalf("expected selection kept when gated")
	}
	if ctrl.Next() {
		t.Fatalf("expected next unavailable once gated")
	}
	if ctrl.Phase() != app.PhaseGated {
		t.Fatalf("expected gated phase, got %s", ctrl.Phase())
	}
}

func TestQuotaSurvivesReload(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewQuotaLedger()

	for i := 0; i < 4; i++ {
		ctrl := newController(t, sampleQuestions(), "", ledger.Device("d1"), nil)
		_ = ctrl.Select("a")
		if got := ctrl.Submit(ctx); got != app.OutcomeRevealed {
			t.Fatalf("load %d: expected reveal, got %s", i, got)
		}
	}

	reloaded := newController(t, sampleQuestions(), "", ledger.Device("d1"), nil)
	if remaining, ok := reloaded.Remaining(ctx); !ok || remaining != 0 {
		t.Fatalf("expected 0 remaining after reload, got %d ok=%v", remaining, ok)
	}
	_ = reloaded.Select("a")
	if got := reloaded.Submit(ctx); got != app.OutcomeGated {
		t.Fatalf("expected gated after reload, got %s", got)
	}
}

func TestAnonymousAtQuotaIsGatedWithoutPersisting(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewQuotaLedger()
	quota := ledger.Device("d1")
	for i := 0; i < 4; i++ {
		_, _ = quota.IncrementAndRead(ctx)
	}
	progress := &recordingProgress{}
	ctrl := newController(t, sampleQuestions(), "", quota, progress)

	_ = ctrl.Select("b")
	ctrl.Submit(ctx)

	state := ctrl.State()
	if !state.Gated || state.Revealed {
		t.Fatalf("expected gated=true revealed=false, got %+v", state)
	}
	flush(t, ctrl)
	if len(progress.calls()) != 0 {
		t.Fatalf("expected no progress persisted, got %d", len(progress.calls()))
	}
	if ctrl.View().Reveal != nil {
		t.Fatalf("expected nothing revealed")
	}
}

func TestIdentifiedSubmitPersistsProgress(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewQuotaLedger()
	progress := &recordingProgress{}
	ctrl := newController(t, sampleQuestions(), "user-1", ledger.Device("d1"), progress)

	_ = ctrl.Select("a")
	if got := ctrl.Submit(ctx); got != app.OutcomeRevealed {
		t.Fatalf("expected reveal, got %s", got)
	}

	flush(t, ctrl)
	calls := progress.calls()
	if len(calls) != 1 {
		t.Fatalf("expected one upsert, got %d", len(calls))
	}
	got := calls[0]
	if got.UserID != "user-1" || got.QuestionID != "q1" || got.SelectedAnswerID != "a" || got.CompositeScore != 90 {
		t.Fatalf("unexpected progress record %+v", got)
	}
	if !got.AnsweredAt.Equal(fixedNow) {
		t.Fatalf("expected timestamp %s, got %s", fixedNow, got.AnsweredAt)
	}
	if n, _ := ledger.Device("d1").Count(ctx); n != 0 {
		t.Fatalf("expected identified submit not to touch quota, got %d", n)
	}
	if _, ok := ctrl.Remaining(ctx); ok {
		t.Fatalf("expected no remaining count for identified player")
	}
}

func TestPersistenceFailureDoesNotBlockReveal(t *testing.T) {
	progress := &recordingProgress{err: errors.New("db down")}
	ctrl := newController(t, sampleQuestions(), "user-1", nil, progress)

	_ = ctrl.Select("b")
	if got := ctrl.Submit(context.Background()); got != app.OutcomeRevealed {
		t.Fatalf("expected reveal despite store failure, got %s", got)
	}
	if !ctrl.State().Revealed {
		t.Fatalf("expected revealed state")
	}
}

func TestPersistenceIgnoresCallerCancellation(t *testing.T) {
	progress := &recordingProgress{}
	ctrl := newController(t, sampleQuestions(), "user-1", nil, progress)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = ctrl.Select("a")
	ctrl.Submit(ctx)
	flush(t, ctrl)

	if len(progress.calls()) != 1 {
		t.Fatalf("expected the upsert to run after cancellation, got %d", len(progress.calls()))
	}
	if progress.sawCanceled {
		t.Fatalf("expected upsert context detached from caller cancellation")
	}
}

func TestSubmitDoesNotWaitForProgressStore(t *testing.T) {
	progress := &blockingProgress{release: make(chan struct{})}
	ctrl := newController(t, sampleQuestions(), "user-1", nil, progress)
	_ = ctrl.Select("a")

	outcome := make(chan app.Outcome, 1)
	go func() { outcome <- ctrl.Submit(context.Background()) }()

	select {
	case got := <-outcome:
		if got != app.OutcomeRevealed {
			t.Fatalf("expected reveal, got %s", got)
		}
	case <-time.After(time.Second):
		close(progress.release)
		t.Fatalf("submit waited on a stalled progress store")
	}
	if !ctrl.State().Revealed {
		t.Fatalf("expected revealed while the write is pending")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := ctrl.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected flush to time out on the stalled write, got %v", err)
	}
	close(progress.release)
	flush(t, ctrl)
}

func TestSignedInRetryAfterGateReveals(t *testing.T) {
	ctx := context.Background()
	quota := memory.NewQuotaLedger().Device("d1")
	for i := 0; i < 4; i++ {
		_, _ = quota.IncrementAndRead(ctx)
	}
	progress := &recordingProgress{}
	ctrl := newController(t, sampleQuestions(), "", quota, progress)

	_ = ctrl.Select("b")
	if got := ctrl.Submit(ctx); got != app.OutcomeGated {
		t.Fatalf("expected gated, got %s", got)
	}
	ctrl.SetIdentity("user-1")
	if got := ctrl.Submit(ctx); got != app.OutcomeRevealed {
		t.Fatalf("expected retry to reveal, got %s", got)
	}

	view := ctrl.View()
	if view.Phase != app.PhaseRevealed || view.Gated || !view.Revealed || !view.HasNext {
		t.Fatalf("expected a clean revealed view, got phase=%s gated=%v revealed=%v hasNext=%v",
			view.Phase, view.Gated, view.Revealed, view.HasNext)
	}
	flush(t, ctrl)
	if calls := progress.calls(); len(calls) != 1 || calls[0].SelectedAnswerID != "b" {
		t.Fatalf("expected the kept selection persisted, got %+v", calls)
	}
	if n, _ := quota.Count(ctx); n != 5 {
		t.Fatalf("expected signed-in retry not to consume quota, got %d", n)
	}
}

func TestQuotaStoreFailureFailsOpen(t *testing.T) {
	ctrl := newController(t, sampleQuestions(), "", brokenQuota{}, nil)

	_ = ctrl.Select("a")
	if got := ctrl.Submit(context.Background()); got != app.OutcomeRevealed {
		t.Fatalf("expected reveal when counter is unavailable, got %s", got)
	}
}

func TestNextFromLastQuestionIsNoop(t *testing.T) {
	ctrl := newController(t, sampleQuestions(), "user-1", nil, nil)
	_ = ctrl.Select("a")
	ctrl.Submit(context.Background())
	if !ctrl.Next() {
		t.Fatalf("expected to advance to question 2")
	}
	_ = ctrl.Select("d")
	ctrl.Submit(context.Background())

	if ctrl.Next() {
		t.Fatalf("expected next on last question to be a no-op")
	}
	if got := ctrl.State().Index; got != 1 {
		t.Fatalf("expected index unchanged at 1, got %d", got)
	}
	if ctrl.View().HasNext {
		t.Fatalf("expected hasNext false on last question")
	}
}

func TestNextResetsQuestionState(t *testing.T) {
	ctrl := newController(t, sampleQuestions(), "", nil, nil)
	if ctrl.Next() {
		t.Fatalf("expected next unavailable before reveal")
	}
	_ = ctrl.Select("a")
	ctrl.Submit(context.Background())

	if !ctrl.Next() {
		t.Fatalf("expected next after reveal")
	}
	state := ctrl.State()
	if state.Index != 1 || state.SelectedAnswerID != "" || state.Revealed || state.Gated {
		t.Fatalf("expected fresh question state, got %+v", state)
	}
	if ctrl.Phase() != app.PhaseUnanswered {
		t.Fatalf("expected unanswered phase, got %s", ctrl.Phase())
	}
}

func TestViewOrdersOptionsAndHidesAnswersUntilReveal(t *testing.T) {
	ctrl := newController(t, sampleQuestions(), "", nil, nil)

	view := ctrl.View()
	labels := []string{view.Options[0].Label, view.Options[1].Label, view.Options[2].Label}
	if labels[0] != "A" || labels[1] != "B" || labels[2] != "C" {
		t.Fatalf("expected A,B,C got %v", labels)
	}
	for _, opt := range view.Options {
		if opt.Correct != nil || opt.Scores != nil || opt.WrongExplanation != "" {
			t.Fatalf("expected option %s hidden before reveal, got %+v", opt.Label, opt)
		}
	}
	if view.Position != 1 || view.Total != 2 || !view.Anonymous {
		t.Fatalf("unexpected header fields: %+v", view)
	}

	_ = ctrl.Select("c")
	ctrl.Submit(context.Background())
	view = ctrl.View()
	if view.Reveal == nil {
		t.Fatalf("expected reveal section")
	}
	if view.Reveal.CorrectLabel != "A" || view.Reveal.Composite != 79 || view.Reveal.Band != domain.BandMid {
		t.Fatalf("unexpected reveal: %+v", view.Reveal)
	}
	if view.Reveal.Explanation.LearningOutcome == "" {
		t.Fatalf("expected explanation exposed")
	}
	for _, opt := range view.Options {
		if opt.Label == "A" && opt.WrongExplanation != "" {
			t.Fatalf("expected no wrong explanation on the correct option")
		}
		if opt.Label == "B" && opt.WrongExplanation == "" {
			t.Fatalf("expected wrong explanation on B")
		}
	}
	if !view.HasNext {
		t.Fatalf("expected hasNext after reveal on first question")
	}
}

func TestIdentityFailureFallsBackToAnonymous(t *testing.T) {
	ctrl := app.NewController(sampleQuestions(), app.ControllerDeps{Identity: failingOracle{}})

	if id := ctrl.ResolveIdentity(context.Background()); id != "" {
		t.Fatalf("expected anonymous, got %q", id)
	}
	ctrl.SetIdentity("user-2")
	ctrl.SetIdentity("")
	if !ctrl.View().Anonymous {
		t.Fatalf("expected sign-out to leave the controller anonymous")
	}
}

func newController(t *testing.T, questions []domain.Question, userID string, quota app.QuotaStore, progress app.ProgressStore) *app.Controller {
	t.Helper()
	ctrl := app.NewController(questions, app.ControllerDeps{
		Identity:       staticOracle(userID),
		Quota:          quota,
		Progress:       progress,
		AnonymousLimit: 5,
		Now:            func() time.Time { return fixedNow },
	})
	ctrl.ResolveIdentity(context.Background())
	return ctrl
}

func flush(t *testing.T, ctrl *app.Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ctrl.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

type staticOracle string

func (o staticOracle) CurrentIdentity(context.Context) (string, error) { return string(o), nil }

type failingOracle struct{}

func (failingOracle) CurrentIdentity(context.Context) (string, error) {
	return "", errors.New("auth service unreachable")
}

type brokenQuota struct{}

func (brokenQuota) Count(context.Context) (int, error) { return 0, errors.New("storage disabled") }
func (brokenQuota) IncrementAndRead(context.Context) (int, error) {
	return 0, errors.New("storage disabled")
}

type recordingProgress struct {
	mu          sync.Mutex
	records     []domain.Progress
	err         error
	sawCanceled bool
}

func (p *recordingProgress) Upsert(ctx context.Context, progress domain.Progress) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		p.sawCanceled = true
	}
	if p.err != nil {
		return p.err
	}
	p.records = append(p.records, progress)
	return nil
}

type blockingProgress struct {
	release chan struct{}
}

func (p *blockingProgress) Upsert(context.Context, domain.Progress) error {
	<-p.release
	return nil
}

func (p *recordingProgress) calls() []domain.Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Progress(nil), p.records...)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:     "q1",
			Prompt: "Does the stake sale trigger the change of control clause?",
			Options: []domain.AnswerOption{
				{ID: "c", Label: "C", Text: "Only with a competitor", Correctness: domain.CorrectnessSuboptimal, Scores: domain.Scores{Composite: 79}, WrongExplanation: "separate undertaking"},
				{ID: "a", Label: "A", Text: "No", Correct: true, Correctness: domain.CorrectnessCorrect, Scores: domain.Scores{LegalAccuracy: 95, Composite: 90}},
				{ID: "b", Label: "B", Text: "Yes", Correctness: domain.CorrectnessIncorrect, Scores: domain.Scores{Composite: 40}, WrongExplanation: "threshold based"},
			},
			Explanation: domain.Explanation{CorrectExplanation: "70% retained", LearningOutcome: "read the threshold"},
		},
		{
			ID:     "q2",
			Prompt: "What should the sponsor do before signing?",
			Options: []domain.AnswerOption{
				{ID: "d", Label: "A", Text: "Notify the agent", Correct: true, Scores: domain.Scores{Composite: 90}},
				{ID: "e", Label: "B", Text: "Nothing", Scores: domain.Scores{Composite: 50}, WrongExplanation: "notice still due"},
			},
			Explanation: domain.Explanation{CorrectExplanation: "notice", LearningOutcome: "procedure matters"},
		},
	}
}

func fiveQuestions() []domain.Question {
	base := sampleQuestions()[0]
	out := make([]domain.Question, 0, 5)
	for i := 0; i < 5; i++ {
		q := base
		q.ID = base.ID + string(rune('a'+i))
		out = append(out, q)
	}
	return out
}
