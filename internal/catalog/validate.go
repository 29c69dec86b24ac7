package catalog

import (
	"errors"
	"fmt"

	"velora-scenario-service/internal/domain"
)

// Validate checks the invariants the session controller relies on. Problems are
// reported together.
func Validate(bundle Bundle) error {
	var errs []error
	trackIDs := make(map[string]bool)
	slugs := make(map[string]bool)
	for _, t := range bundle.Tracks {
		if t.ID == "" || t.Slug == "" {
			errs = append(errs, fmt.Errorf("track %q: id and slug are required", t.Title))
		}
		if trackIDs[t.ID] {
			errs = append(errs, fmt.Errorf("track %s: duplicate id", t.ID))
		}
		if slugs[t.Slug] {
			errs = append(errs, fmt.Errorf("track %s: duplicate slug %q", t.ID, t.Slug))
		}
		trackIDs[t.ID] = true
		slugs[t.Slug] = true
	}

	scenarioIDs := make(map[string]bool)
	questionIDs := make(map[string]bool)
	optionIDs := make(map[string]bool)
	for _, s := range bundle.Scenarios {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("scenario %q: id is required", s.Code))
		}
		if scenarioIDs[s.ID] {
			errs = append(errs, fmt.Errorf("scenario %s: duplicate id", s.ID))
		}
		scenarioIDs[s.ID] = true
		switch s.Difficulty {
		case domain.DifficultyBeginner, domain.DifficultyIntermediate, domain.DifficultyAdvanced:
		default:
			errs = append(errs, fmt.Errorf("scenario %s: unknown difficulty %q", s.ID, s.Difficulty))
		}
		if len(s.Questions) == 0 {
			errs = append(errs, fmt.Errorf("scenario %s: at least one question is required", s.ID))
		}
		for _, q := range s.Questions {
			if questionIDs[q.ID] {
				errs = append(errs, fmt.Errorf("question %s: duplicate id", q.ID))
			}
			questionIDs[q.ID] = true
			errs = append(errs, validateQuestion(s.ID, q, optionIDs)...)
		}
	}
	return errors.Join(errs...)
}

func validateQuestion(scenarioID string, q domain.Question, optionIDs map[string]bool) []error {
	var errs []error
	where := fmt.Sprintf("scenario %s question %s", scenarioID, q.ID)
	if q.ID == "" || q.Prompt == "" {
		errs = append(errs, fmt.Errorf("%s: id and prompt are required", where))
	}
	if len(q.Options) == 0 {
		errs = append(errs, fmt.Errorf("%s: no answer options", where))
	}
	if q.Explanation.CorrectExplanation == "" || q.Explanation.LearningOutcome == "" {
		errs = append(errs, fmt.Errorf("%s: explanation needs correct_explanation and learning_outcome", where))
	}

	labels := make(map[string]bool)
	correct := 0
	for _, opt := range q.Options {
		if len(opt.Label) != 1 || opt.Label[0] < 'A' || opt.Label[0] > 'Z' {
			errs = append(errs, fmt.Errorf("%s: label %q must be a single letter", where, opt.Label))
		}
		if labels[opt.Label] {
			errs = append(errs, fmt.Errorf("%s: duplicate label %q", where, opt.Label))
		}
		labels[opt.Label] = true
		if optionIDs[opt.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate option id %s", where, opt.ID))
		}
		optionIDs[opt.ID] = true

		if opt.Correct {
			correct++
			if opt.WrongExplanation != "" {
				errs = append(errs, fmt.Errorf("%s option %s: correct option must not carry a wrong explanation", where, opt.Label))
			}
		} else if opt.WrongExplanation == "" {
			errs = append(errs, fmt.Errorf("%s option %s: wrong explanation is required", where, opt.Label))
		}
		switch opt.Correctness {
		case domain.CorrectnessCorrect, domain.CorrectnessSuboptimal, domain.CorrectnessIncorrect:
		default:
			errs = append(errs, fmt.Errorf("%s option %s: unknown correctness %q", where, opt.Label, opt.Correctness))
		}
		for name, v := range map[string]int{
			"legal_accuracy":        opt.Scores.LegalAccuracy,
			"market_practice":       opt.Scores.MarketPractice,
			"risk_awareness":        opt.Scores.RiskAwareness,
			"perspective_awareness": opt.Scores.PerspectiveAwareness,
			"composite":             opt.Scores.Composite,
		} {
			if v < 0 || v > 100 {
				errs = append(errs, fmt.Errorf("%s option %s: %s %d out of range", where, opt.Label, name, v))
			}
		}
	}
	if correct != 1 {
		errs = append(errs, fmt.Errorf("%s: expected exactly one correct option, got %d", where, correct))
	}
	return errs
}
