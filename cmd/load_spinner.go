package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/bnema/convtree/internal/application"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type loadDoneMsg struct {
	err error
}

type loadPhaseMsg struct {
	state application.LoadState
}

type loadSpinnerModel struct {
	spinner spinner.Model
	target  string
	phase   application.LoadState
	load    tea.Cmd
	err     error
	done    bool
}

func newLoadSpinnerModel(target string, load tea.Cmd) loadSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return loadSpinnerModel{
		spinner: s,
		target:  target,
		phase:   application.StateIdle,
		load:    load,
	}
}

func (m loadSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load)
}

func (m loadSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case loadPhaseMsg:
		m.phase = msg.state
		return m, nil
	case loadDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m loadSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), phaseLabel(m.phase, m.target))
}

func phaseLabel(state application.LoadState, target string) string {
	switch state {
	case application.StateLoadingOwnMessages:
		return fmt.Sprintf("Loading messages of %s...", target)
	case application.StateLoadingDescendants:
		return fmt.Sprintf("Loading delegated conversations of %s...", target)
	case application.StateRecomputing, application.StateReady:
		return "Resolving names and reports..."
	default:
		return fmt.Sprintf("Loading %s...", target)
	}
}

// loadSpinner shows load progress on stderr while load runs.
type loadSpinner struct {
	program *tea.Program
}

func newLoadSpinner(ctx context.Context, output io.Writer, target string, load func(context.Context) error) *loadSpinner {
	loadCmd := func() tea.Msg {
		return loadDoneMsg{err: load(ctx)}
	}

	return &loadSpinner{program: tea.NewProgram(
		newLoadSpinnerModel(target, loadCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)}
}

// Phase follows engine publishes. Calls after Run returned are dropped.
func (s *loadSpinner) Phase(state application.DetailState) {
	s.program.Send(loadPhaseMsg{state: state.State})
}

func (s *loadSpinner) Run() error {
	finalModel, err := s.program.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(loadSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
