package domain

import "time"

// Difficulty grades a scenario for display.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Correctness classifies an answer option beyond the single correct flag.
type Correctness string

const (
	CorrectnessCorrect    Correctness = "correct"
	CorrectnessSuboptimal Correctness = "suboptimal"
	CorrectnessIncorrect  Correctness = "incorrect"
)

// Track groups scenarios by topic.
type Track struct {
	ID          string `json:"id" yaml:"id"`
	Slug        string `json:"slug" yaml:"slug"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Order       int    `json:"order" yaml:"order"`
}

// TrackSummary is a track plus the number of scenarios it holds.
type TrackSummary struct {
	Track
	ScenarioCount int `json:"scenarioCount"`
}

// TrackDetail is a track with its scenarios in display order.
type TrackDetail struct {
	Track
	Scenarios []ScenarioRef `json:"scenarios"`
}

// ScenarioRef is the listing form of a scenario.
type ScenarioRef struct {
	ID         string     `json:"id"`
	Code       string     `json:"code"`
	Title      string     `json:"title"`
	Difficulty Difficulty `json:"difficulty"`
	Order      int        `json:"order"`
}

// Scenario is a fact pattern containing one or more questions.
type Scenario struct {
	ID           string     `json:"id"`
	TrackID      string     `json:"trackId"`
	TrackSlug    string     `json:"trackSlug"`
	TrackTitle   string     `json:"trackTitle"`
	Code         string     `json:"code"`
	Title        string     `json:"title"`
	Context      string     `json:"context"`
	Assumptions  []string   `json:"assumptions"`
	TriggerEvent string     `json:"triggerEvent"`
	Difficulty   Difficulty `json:"difficulty"`
	Order        int        `json:"order"`
	Questions    []Question `json:"questions"`
}

// Ref returns the listing form of the scenario.
func (s Scenario) Ref() ScenarioRef {
	return ScenarioRef{ID: s.ID, Code: s.Code, Title: s.Title, Difficulty: s.Difficulty, Order: s.Order}
}

// Scores are the four sub-scores and the precomputed composite, each in [0,100].
type Scores struct {
	LegalAccuracy        int `json:"legalAccuracy" yaml:"legal_accuracy"`
	MarketPractice       int `json:"marketPractice" yaml:"market_practice"`
	RiskAwareness        int `json:"riskAwareness" yaml:"risk_awareness"`
	PerspectiveAwareness int `json:"perspectiveAwareness" yaml:"perspective_awareness"`
	Composite            int `json:"composite" yaml:"composite"`
}

// AnswerOption is one labelled choice of a question.
type AnswerOption struct {
	ID               string      `json:"id"`
	Label            string      `json:"label"`
	Text             string      `json:"text"`
	Correct          bool        `json:"correct"`
	Correctness      Correctness `json:"correctness"`
	Scores           Scores      `json:"scores"`
	WrongExplanation string      `json:"wrongExplanation,omitempty"`
}

// Explanation is the rationale revealed after a question is answered.
type Explanation struct {
	CorrectExplanation  string `json:"correctExplanation"`
	LenderPerspective   string `json:"lenderPerspective,omitempty"`
	BorrowerPerspective string `json:"borrowerPerspective,omitempty"`
	LearningOutcome     string `json:"learningOutcome"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID          string         `json:"id"`
	Prompt      string         `json:"prompt"`
	Order       int            `json:"order"`
	Options     []AnswerOption `json:"options"`
	Explanation Explanation    `json:"explanation"`
}

// Option returns the option with the given id.
func (q Question) Option(id string) (AnswerOption, bool) {
	for _, opt := range q.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return AnswerOption{}, false
}

// CorrectOption returns the option flagged correct.
func (q Question) CorrectOption() (AnswerOption, bool) {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt, true
		}
	}
	return AnswerOption{}, false
}

// Progress is the persisted result of one identified submission, unique per (UserID, QuestionID).
type Progress struct {
	UserID           string    `json:"userId"`
	QuestionID       string    `json:"questionId"`
	SelectedAnswerID string    `json:"selectedAnswerId"`
	CompositeScore   int       `json:"compositeScore"`
	AnsweredAt       time.Time `json:"answeredAt"`
}

// ProgressEntry is a progress row joined with where the question lives.
type ProgressEntry struct {
	Progress
	Prompt        string    `json:"prompt"`
	ScenarioID    string    `json:"scenarioId"`
	ScenarioCode  string    `json:"scenarioCode"`
	ScenarioTitle string    `json:"scenarioTitle"`
	TrackTitle    string    `json:"trackTitle"`
	TrackSlug     string    `json:"trackSlug"`
	Band          ScoreBand `json:"band"`
}

// DashboardStats summarizes a user's answered questions.
type DashboardStats struct {
	TotalAnswered  int     `json:"totalAnswered"`
	AverageScore   float64 `json:"averageScore"`
	TotalQuestions int     `json:"totalQuestions"`
}

// Dashboard is the signed-in user's history and stats.
type Dashboard struct {
	UserID  string          `json:"userId"`
	Stats   DashboardStats  `json:"stats"`
	Entries []ProgressEntry `json:"entries"`
}
