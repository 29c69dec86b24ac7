package app

import "velora-scenario-service/internal/domain"

// OptionView is an answer option as rendered. Correctness, scores and the
// wrong-answer explanation stay hidden until the question is revealed.
type OptionView struct {
	ID               string             `json:"id"`
	Label            string             `json:"label"`
	Text             string             `json:"text"`
	Selected         bool               `json:"selected"`
	Correct          *bool              `json:"correct,omitempty"`
	Correctness      domain.Correctness `json:"correctness,omitempty"`
	Scores           *domain.Scores     `json:"scores,omitempty"`
	WrongExplanation string             `json:"wrongExplanation,omitempty"`
}

// RevealView is what a reveal exposes beyond the options.
type RevealView struct {
	CorrectLabel string             `json:"correctLabel"`
	Composite    int                `json:"composite"`
	Band         domain.ScoreBand   `json:"band"`
	Scores       domain.Scores      `json:"scores"`
	Explanation  domain.Explanation `json:"explanation"`
}

// View is a render snapshot of the current question.
type View struct {
	QuestionID       string       `json:"questionId"`
	Prompt           string       `json:"prompt"`
	Position         int          `json:"position"`
	Total            int          `json:"total"`
	Phase            Phase        `json:"phase"`
	SelectedAnswerID string       `json:"selectedAnswerId,omitempty"`
	Revealed         bool         `json:"revealed"`
	Gated            bool         `json:"gated"`
	HasNext          bool         `json:"hasNext"`
	Anonymous        bool         `json:"anonymous"`
	Options          []OptionView `json:"options"`
	Reveal           *RevealView  `json:"reveal,omitempty"`
}

// View renders the current question with options ordered by label.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	question := c.questions[c.index]
	view := View{
		QuestionID:       question.ID,
		Prompt:           question.Prompt,
		Position:         c.index + 1,
		Total:            len(c.questions),
		Phase:            c.phaseLocked(),
		SelectedAnswerID: c.selected,
		Revealed:         c.revealed,
		Gated:            c.gated,
		HasNext:          c.revealed && c.index < len(c.questions)-1,
		Anonymous:        c.userID == "",
	}

	for _, opt := range domain.SortedOptions(question.Options) {
		ov := OptionView{
			ID:       opt.ID,
			Label:    opt.Label,
			Text:     opt.Text,
			Selected: opt.ID == c.selected,
		}
		if c.revealed {
			correct := opt.Correct
			scores := opt.Scores
			ov.Correct = &correct
			ov.Correctness = opt.Correctness
			ov.Scores = &scores
			if !opt.Correct {
				ov.WrongExplanation = opt.WrongExplanation
			}
		}
		view.Options = append(view.Options, ov)
	}

	if c.revealed {
		selected, _ := question.Option(c.selected)
		correct, _ := question.CorrectOption()
		view.Reveal = &RevealView{
			CorrectLabel: correct.Label,
			Composite:    selected.Scores.Composite,
			Band:         domain.BandFor(selected.Scores.Composite),
			Scores:       selected.Scores,
			Explanation:  question.Explanation,
		}
	}
	return view
}
