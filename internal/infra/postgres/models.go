package postgres

import (
	"github.com/uptrace/bun"

	"velora-scenario-service/internal/domain"
)

type trackRow struct {
	bun.BaseModel `bun:"table:tracks,alias:t"`

	ID          string `bun:"id,pk"`
	Slug        string `bun:"slug"`
	Title       string `bun:"title"`
	Description string `bun:"description"`
	SortOrder   int    `bun:"sort_order"`
}

type scenarioRow struct {
	bun.BaseModel `bun:"table:scenarios,alias:s"`

	ID           string   `bun:"id,pk"`
	TrackID      string   `bun:"track_id"`
	Code         string   `bun:"code"`
	Title        string   `bun:"title"`
	Context      string   `bun:"context"`
	Assumptions  []string `bun:"assumptions,array"`
	TriggerEvent string   `bun:"trigger_event"`
	Difficulty   string   `bun:"difficulty"`
	SortOrder    int      `bun:"sort_order"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID         string `bun:"id,pk"`
	ScenarioID string `bun:"scenario_id"`
	Prompt     string `bun:"prompt"`
	SortOrder  int    `bun:"sort_order"`
}

type optionRow struct {
	bun.BaseModel `bun:"table:answer_options,alias:o"`

	ID                   string `bun:"id,pk"`
	QuestionID           string `bun:"question_id"`
	Label                string `bun:"label"`
	Text                 string `bun:"text"`
	IsCorrect            bool   `bun:"is_correct"`
	Correctness          string `bun:"correctness"`
	LegalAccuracy        int    `bun:"legal_accuracy"`
	MarketPractice       int    `bun:"market_practice"`
	RiskAwareness        int    `bun:"risk_awareness"`
	PerspectiveAwareness int    `bun:"perspective_awareness"`
	Composite            int    `bun:"composite"`
	WrongExplanation     string `bun:"wrong_explanation"`
}

type explanationRow struct {
	bun.BaseModel `bun:"table:explanations,alias:e"`

	QuestionID          string `bun:"question_id,pk"`
	CorrectExplanation  string `bun:"correct_explanation"`
	LenderPerspective   string `bun:"lender_perspective"`
	BorrowerPerspective string `bun:"borrower_perspective"`
	LearningOutcome     string `bun:"learning_outcome"`
}

func (r trackRow) toDomain() domain.Track {
	return domain.Track{ID: r.ID, Slug: r.Slug, Title: r.Title, Description: r.Description, Order: r.SortOrder}
}

func (r optionRow) toDomain() domain.AnswerOption {
	return domain.AnswerOption{
		ID:          r.ID,
		Label:       r.Label,
		Text:        r.Text,
		Correct:     r.IsCorrect,
		Correctness: domain.Correctness(r.Correctness),
		Scores: domain.Scores{
			LegalAccuracy:        r.LegalAccuracy,
			MarketPractice:       r.MarketPractice,
			RiskAwareness:        r.RiskAwareness,
			PerspectiveAwareness: r.PerspectiveAwareness,
			Composite:            r.Composite,
		},
		WrongExplanation: r.WrongExplanation,
	}
}

func (r explanationRow) toDomain() domain.Explanation {
	return domain.Explanation{
		CorrectExplanation:  r.CorrectExplanation,
		LenderPerspective:   r.LenderPerspective,
		BorrowerPerspective: r.BorrowerPerspective,
		LearningOutcome:     r.LearningOutcome,
	}
}

func scenarioFromRows(s scenarioRow, t trackRow) domain.Scenario {
	return domain.Scenario{
		ID:           s.ID,
		TrackID:      s.TrackID,
		TrackSlug:    t.Slug,
		TrackTitle:   t.Title,
		Code:         s.Code,
		Title:        s.Title,
		Context:      s.Context,
		Assumptions:  s.Assumptions,
		TriggerEvent: s.TriggerEvent,
		Difficulty:   domain.Difficulty(s.Difficulty),
		Order:        s.SortOrder,
	}
}
