// Package tui is the interactive chat loop.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/rcliao/tai/internal/chat"
)

// Turner answers one message.
type Turner interface {
	Turn(ctx context.Context, state chat.State, message string) (chat.State, chat.Turn, error)
}

// Saver persists session state in the background.
type Saver interface {
	Save(ctx context.Context, state chat.State)
}

type message struct {
	role    string
	content string
}

type (
	turnMsg struct {
		state chat.State
		turn  chat.Turn
	}
	errMsg struct{ err error }
)

// Model is the bubbletea model for a chat session.
type Model struct {
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	styles   Styles

	history []message
	loading bool
	ready   bool
	width   int

	ctx    context.Context
	turner Turner
	saver  Saver
	state  chat.State
	log    *zap.Logger
}

// New creates a chat model starting from state.
func New(ctx context.Context, turner Turner, saver Saver, state chat.State, log *zap.Logger) Model {
	if log == nil {
		log = zap.NewNop()
	}
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Talk to Tai... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.Prompt

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return Model{
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		renderer: renderer,
		styles:   styles,
		ctx:      ctx,
		turner:   turner,
		saver:    saver,
		state:    state,
		log:      log,
	}
}

// State returns the session state as of the last completed turn.
func (m Model) State() chat.State {
	return m.state
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if !m.loading {
				return m.submit()
			}
			return m, nil
		}
		if !m.loading {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		const chrome = 6
		m.width = msg.Width
		if !m.ready {
			m.viewport = viewport.New(msg.Width-2, msg.Height-chrome)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 2
			m.viewport.Height = msg.Height - chrome
		}
		m.input.Width = msg.Width - 4
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(msg.Width-6),
		)
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case turnMsg:
		m.loading = false
		m.state = msg.state
		m.history = append(m.history, message{role: "tai", content: msg.turn.Response.Visible})
		if m.saver != nil {
			m.saver.Save(m.ctx, msg.state)
		}
		m.refresh()

	case errMsg:
		m.loading = false
		m.log.Error("turn failed", zap.Error(msg.err))
		m.history = append(m.history, message{role: "error", content: msg.err.Error()})
		m.refresh()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()
	m.history = append(m.history, message{role: "user", content: text})
	m.loading = true
	m.refresh()

	ctx, turner, state := m.ctx, m.turner, m.state
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		next, turn, err := turner.Turn(ctx, state, text)
		if err != nil {
			return errMsg{err}
		}
		return turnMsg{state: next, turn: turn}
	})
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) renderHistory() string {
	var b strings.Builder
	for _, msg := range m.history {
		switch msg.role {
		case "user":
			fmt.Fprintf(&b, "%s %s\n\n", m.styles.User.Render("User:"), msg.content)
		case "tai":
			body := msg.content
			if m.renderer != nil {
				if out, err := m.renderer.Render(msg.content); err == nil {
					body = strings.TrimSpace(out)
				}
			}
			fmt.Fprintf(&b, "%s %s\n\n", m.styles.Tai.Render("Tai:"), body)
		case "error":
			fmt.Fprintf(&b, "%s\n\n", m.styles.Error.Render("error: "+msg.content))
		}
	}
	return b.String()
}

func (m Model) View() string {
	status := m.styles.Status.Render("Enter to send · Esc to quit")
	if m.loading {
		status = m.spinner.View() + " " + m.styles.Status.Render("Tai is thinking...")
	}
	return fmt.Sprintf("%s\n%s\n%s\n%s",
		m.styles.Title.Render("Tai AI Chat"),
		m.viewport.View(),
		m.input.View(),
		status,
	)
}

// Run starts the chat and blocks until the user quits. It returns the final
// session state.
func Run(ctx context.Context, turner Turner, saver Saver, state chat.State, log *zap.Logger) (chat.State, error) {
	p := tea.NewProgram(New(ctx, turner, saver, state, log), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return state, err
	}
	return final.(Model).State(), nil
}
