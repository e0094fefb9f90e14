package detail

import (
	"errors"
	"io"
	"time"

	"github.com/bnema/convtree/internal/application"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type stateMsg struct {
	state application.DetailState
}

type tickMsg time.Time

// detailModel draws one DetailState. In live mode it keeps running, follows
// published states, refreshes relative times every second and fits the
// terminal width; otherwise it quits after the first frame.
type detailModel struct {
	state  application.DetailState
	opts   RenderOptions
	now    func() time.Time
	styles styles
	live   bool
	width  int
	done   bool
}

func newDetailModel(initial application.DetailState, opts RenderOptions, now func() time.Time, live bool) detailModel {
	if now == nil {
		now = time.Now
	}
	return detailModel{state: initial, opts: opts, now: now, styles: newStyles(), live: live}
}

func (m detailModel) Init() tea.Cmd {
	if !m.live {
		state := m.state
		return func() tea.Msg { return stateMsg{state: state} }
	}
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m detailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = msg.state
		if !m.live {
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		return m, tick()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m detailModel) View() string {
	if !m.live {
		if !m.done {
			return ""
		}
		return renderView(m.state, m.opts, m.styles)
	}

	opts := m.opts
	opts.Now = m.now()
	frame := renderView(m.state, opts, m.styles) + "\n" + m.styles.footer.Render("q to quit")
	if m.width > 0 {
		frame = lipgloss.NewStyle().MaxWidth(m.width).Render(frame)
	}
	return frame
}

// Render produces a one-shot rendering of state.
func Render(state application.DetailState, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		newDetailModel(state, opts, func() time.Time { return opts.Now }, false),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(detailModel)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}

// Live renders published states until the user quits.
type Live struct {
	program *tea.Program
}

func NewLive(initial application.DetailState, opts RenderOptions, programOpts ...tea.ProgramOption) *Live {
	return &Live{program: tea.NewProgram(newDetailModel(initial, opts, nil, true), programOpts...)}
}

// Publish is safe to call from any goroutine, including engine callbacks.
func (l *Live) Publish(state application.DetailState) {
	l.program.Send(stateMsg{state: state})
}

func (l *Live) Run() error {
	_, err := l.program.Run()
	return err
}

func (l *Live) Quit() {
	l.program.Quit()
}
