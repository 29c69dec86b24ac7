package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"velora-scenario-service/internal/app"
	"velora-scenario-service/internal/domain"
)

// Model plays one scenario in the terminal on top of a session controller.
type Model struct {
	ctx        context.Context
	scenario   domain.Scenario
	controller *app.Controller
	noColor    bool

	view      app.View
	cursor    int
	remaining *int
	resolving bool
	busy      bool
	notice    string
}

// Options configures the terminal player.
type Options struct {
	NoColor bool
}

// NewModel builds a player for scenario driven by controller.
func NewModel(ctx context.Context, scenario domain.Scenario, controller *app.Controller, opts Options) Model {
	m := Model{
		ctx:        ctx,
		scenario:   scenario,
		controller: controller,
		noColor:    opts.NoColor,
		resolving:  true,
	}
	m.view = controller.View()
	return m
}

// identityMsg reports the outcome of the background identity lookup.
type identityMsg struct {
	userID string
}

// submitMsg carries the result of a submit.
type submitMsg struct {
	outcome app.Outcome
}

// quotaMsg carries the anonymous submissions left, nil when not applicable.
type quotaMsg struct {
	remaining *int
}

// Init resolves identity off the render path; until it lands the player counts as anonymous.
func (m Model) Init() tea.Cmd {
	return tea.Batch(resolveIdentity(m.ctx, m.controller), readQuota(m.ctx, m.controller))
}

// Update handles keys and command results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case identityMsg:
		m.resolving = false
		m.view = m.controller.View()
		return m, readQuota(m.ctx, m.controller)
	case submitMsg:
		m.busy = false
		m.notice = ""
		if typed.outcome == app.OutcomeIgnored {
			m.notice = "choose an answer first"
		}
		m.view = m.controller.View()
		return m, readQuota(m.ctx, m.controller)
	case quotaMsg:
		m.remaining = typed.remaining
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m Model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}
	options := m.view.Options
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m.selectAt(m.cursor), nil
	case "down", "j":
		if m.cursor < len(options)-1 {
			m.cursor++
		}
		return m.selectAt(m.cursor), nil
	case "enter", " ":
		// identity can land after the gate; the kept selection is then submitted again
		retry := m.view.Phase == app.PhaseGated && !m.view.Anonymous
		if m.view.Phase != app.PhaseSelected && !retry {
			return m, nil
		}
		m.busy = true
		return m, submit(m.ctx, m.controller)
	case "n", "right":
		if m.controller.Next() {
			m.cursor = 0
			m.notice = ""
			m.view = m.controller.View()
		}
		return m, nil
	}
	// a letter picks the option with that label
	if label := strings.ToUpper(key.String()); len(label) == 1 {
		for i, opt := range options {
			if opt.Label == label {
				m.cursor = i
				return m.selectAt(i), nil
			}
		}
	}
	return m, nil
}

func (m Model) selectAt(i int) Model {
	if i < 0 || i >= len(m.view.Options) || m.view.Revealed || m.view.Gated {
		return m
	}
	if err := m.controller.Select(m.view.Options[i].ID); err != nil {
		m.notice = err.Error()
		return m
	}
	m.view = m.controller.View()
	return m
}

// View renders the current question, reveal or gate.
func (m Model) View() string {
	if m.view.Gated && !m.view.Revealed {
		return renderGate(m.view, m.noColor)
	}
	parts := []string{
		renderHeader(m.scenario, m.view, m.noColor),
		renderPrompt(m.view),
		renderOptions(m.view, m.cursor, m.noColor),
	}
	if m.view.Reveal != nil {
		parts = append(parts, renderReveal(*m.view.Reveal, m.noColor))
	}
	if m.notice != "" {
		parts = append(parts, stylize(m.notice, m.noColor, lipgloss.Color("196")))
	}
	parts = append(parts, renderFooter(m.view, m.remaining, m.resolving, m.noColor))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func resolveIdentity(ctx context.Context, controller *app.Controller) tea.Cmd {
	return func() tea.Msg {
		return identityMsg{userID: controller.ResolveIdentity(ctx)}
	}
}

func submit(ctx context.Context, controller *app.Controller) tea.Cmd {
	return func() tea.Msg {
		return submitMsg{outcome: controller.Submit(ctx)}
	}
}

func readQuota(ctx context.Context, controller *app.Controller) tea.Cmd {
	return func() tea.Msg {
		if remaining, ok := controller.Remaining(ctx); ok {
			return quotaMsg{remaining: &remaining}
		}
		return quotaMsg{}
	}
}
