package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"velora-scenario-service/internal/app"
	"velora-scenario-service/internal/domain"
)

func renderHeader(scenario domain.Scenario, view app.View, noColor bool) string {
	line := scenario.Code
	if scenario.Title != "" {
		line += " | " + scenario.Title
	}
	line += fmt.Sprintf(" | Question %d of %d", view.Position, view.Total)
	return stylize(line, noColor, lipgloss.Color("33"))
}

func renderPrompt(view app.View) string {
	return "\n" + view.Prompt + "\n"
}

func renderOptions(view app.View, cursor int, noColor bool) string {
	lines := make([]string, 0, len(view.Options))
	for i, opt := range view.Options {
		pointer := "  "
		if i == cursor && !view.Revealed {
			pointer = "> "
		}
		mark := "( )"
		if opt.Selected {
			mark = "(*)"
		}
		line := pointer + mark + " " + opt.Label + ". " + opt.Text
		if view.Revealed && opt.Correct != nil {
			switch {
			case *opt.Correct:
				line = stylize(line+"  correct", noColor, lipgloss.Color("42"))
			case opt.Selected:
				line = stylize(line+"  "+string(opt.Correctness), noColor, lipgloss.Color("196"))
			}
			if opt.Selected && opt.WrongExplanation != "" {
				line += "\n      " + opt.WrongExplanation
			}
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderReveal(reveal app.RevealView, noColor bool) string {
	score := fmt.Sprintf("\nScore %d (%s)  correct answer: %s", reveal.Composite, reveal.Band, reveal.CorrectLabel)
	lines := []string{
		stylize(score, noColor, bandColor(reveal.Band)),
		fmt.Sprintf("legal %d  market %d  risk %d  perspective %d",
			reveal.Scores.LegalAccuracy, reveal.Scores.MarketPractice,
			reveal.Scores.RiskAwareness, reveal.Scores.PerspectiveAwareness),
		"",
		strings.TrimSpace(reveal.Explanation.CorrectExplanation),
	}
	if reveal.Explanation.LenderPerspective != "" {
		lines = append(lines, "Lender: "+reveal.Explanation.LenderPerspective)
	}
	if reveal.Explanation.BorrowerPerspective != "" {
		lines = append(lines, "Borrower: "+reveal.Explanation.BorrowerPerspective)
	}
	lines = append(lines, stylize("Takeaway: "+reveal.Explanation.LearningOutcome, noColor, lipgloss.Color("244")))
	return strings.Join(lines, "\n")
}

func renderGate(view app.View, noColor bool) string {
	title := stylize("Free answers used up", noColor, lipgloss.Color("220"))
	body := "Sign in to keep practising and to save your progress.\nRun `velora token --user <id>` and start again with --token.\n\nq to quit"
	if !view.Anonymous {
		body = "You are signed in now.\n\nenter to see the answer, q to quit"
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, "", body)
}

func renderFooter(view app.View, remaining *int, resolving, noColor bool) string {
	keys := "up/down or letter to choose, enter to submit, q to quit"
	if view.HasNext {
		keys = "n for next question, q to quit"
	} else if view.Revealed {
		keys = "last question, q to quit"
	}
	status := ""
	switch {
	case resolving:
		status = "checking sign-in..."
	case view.Anonymous && remaining != nil:
		status = fmt.Sprintf("guest: %d free answers left", *remaining)
	case !view.Anonymous:
		status = "signed in, progress is saved"
	}
	return stylize("\n"+keys+"\n"+status, noColor, lipgloss.Color("240"))
}

func bandColor(band domain.ScoreBand) lipgloss.Color {
	switch band {
	case domain.BandHigh:
		return lipgloss.Color("42")
	case domain.BandMid:
		return lipgloss.Color("220")
	default:
		return lipgloss.Color("196")
	}
}

func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
