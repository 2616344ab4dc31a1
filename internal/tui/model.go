// Package tui implements the terminal chat client.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/leocavalcante/leochat/internal/client"
	"github.com/leocavalcante/leochat/internal/config"
	"github.com/leocavalcante/leochat/internal/session"
)

// Model is the chat TUI model.
type Model struct {
	width  int
	height int
	ready  bool

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	styles   Styles
	keyMap   KeyMap
	renderer *glamour.TermRenderer

	cfg   *config.Config
	cli   *client.Client
	store session.Store

	sess     *session.Session
	messages []session.Message

	// One in-flight exchange per session; input stays disabled until it
	// finalizes or fails.
	streaming   bool
	liveDisplay string
	cancel      context.CancelFunc
	updates     chan tea.Msg

	err      error
	quitting bool
}

type streamUpdateMsg struct {
	display string
}

type exchangeDoneMsg struct {
	content    string
	tokenCount int
	err        error
}

// New builds the chat model over an existing session and its messages.
func New(cfg *config.Config, cli *client.Client, store session.Store, sess *session.Session, messages []session.Message) *Model {
	ta := textarea.New()
	ta.Placeholder = "Ask anything..."
	ta.Prompt = "┃ "
	ta.SetHeight(3)
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		textarea: ta,
		spinner:  sp,
		styles:   DefaultStyles(),
		keyMap:   DefaultKeyMap(),
		cfg:      cfg,
		cli:      cli,
		store:    store,
		sess:     sess,
		messages: messages,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentHeight := m.height - m.textarea.Height() - 2
		if contentHeight < 1 {
			contentHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, contentHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = contentHeight
		}
		m.textarea.SetWidth(m.width)
		m.renderer = newMarkdownRenderer(m.width - 2)
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			if m.cancel != nil {
				m.cancel()
			}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.Cancel):
			if m.streaming && m.cancel != nil {
				m.cancel()
			}
			return m, nil

		case key.Matches(msg, m.keyMap.Clear):
			if m.streaming {
				return m, nil
			}
			return m, m.newSession()

		case key.Matches(msg, m.keyMap.Send):
			if m.streaming {
				return m, nil
			}
			content := strings.TrimSpace(m.textarea.Value())
			if content == "" {
				return m, nil
			}
			m.textarea.Reset()
			return m, m.sendMessage(content)
		}

	case streamUpdateMsg:
		m.liveDisplay = msg.display
		m.refreshViewport()
		return m, m.waitForUpdate()

	case exchangeDoneMsg:
		m.streaming = false
		m.cancel = nil
		m.liveDisplay = ""
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.commitAssistant(msg.content, msg.tokenCount)
		}
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if !m.streaming {
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// sendMessage stores the user turn and starts the exchange.
func (m *Model) sendMessage(content string) tea.Cmd {
	userMsg := session.Message{Role: "user", Content: content, Sequence: -1}
	m.messages = append(m.messages, userMsg)
	if m.store != nil && m.sess != nil {
		_ = m.store.AddMessage(context.Background(), m.sess.ID, &userMsg)
		if m.sess.Title == "" {
			m.sess.Title = session.TitleFromContent(content)
			_ = m.store.Rename(context.Background(), m.sess.ID, m.sess.Title)
		}
	}
	m.err = nil
	m.refreshViewport()
	return m.startExchange()
}

// startExchange runs the SSE exchange on a goroutine and bridges consumer
// updates into bubbletea messages.
func (m *Model) startExchange() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.streaming = true
	m.updates = make(chan tea.Msg, 64)

	history := make([]client.Message, 0, len(m.messages))
	for _, msg := range m.messages {
		history = append(history, client.Message{Role: msg.Role, Content: msg.Content})
	}
	system := m.cfg.Chat.Instructions
	updates := m.updates

	consumer := client.NewConsumer(func(display string) {
		// Each update carries the full display; dropping intermediate
		// frames under backpressure loses nothing.
		select {
		case updates <- streamUpdateMsg{display: display}:
		default:
		}
	})

	go func() {
		err := m.cli.Exchange(ctx, history, system, consumer)
		updates <- exchangeDoneMsg{
			content:    consumer.Content(),
			tokenCount: consumer.TokenCount(),
			err:        err,
		}
	}()

	return tea.Batch(m.spinner.Tick, m.waitForUpdate())
}

func (m *Model) waitForUpdate() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		return <-updates
	}
}

// commitAssistant stores the finalized assistant turn. A failed exchange
// still commits its partial content with the error appended.
func (m *Model) commitAssistant(content string, tokenCount int) {
	if content == "" {
		return
	}
	assistantMsg := session.Message{Role: "assistant", Content: content, Sequence: -1}
	m.messages = append(m.messages, assistantMsg)
	if m.store != nil && m.sess != nil {
		_ = m.store.AddMessage(context.Background(), m.sess.ID, &assistantMsg)
		// The done event carries the whole exchange's total, so it replaces
		// the session count. A failed exchange reports zero and leaves the
		// last known total in place.
		if tokenCount > 0 {
			m.sess.TokenCount = tokenCount
			_ = m.store.SetTokens(context.Background(), m.sess.ID, tokenCount)
		}
	}
}

// newSession clears the conversation and starts a fresh session.
func (m *Model) newSession() tea.Cmd {
	m.messages = nil
	m.err = nil
	sess := &session.Session{}
	if m.store != nil {
		if err := m.store.Create(context.Background(), sess); err == nil {
			_ = m.store.SetCurrent(context.Background(), sess.ID)
		}
	}
	m.sess = sess
	m.refreshViewport()
	return nil
}

// refreshViewport rebuilds the scrollback from history plus any live
// streaming display.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for _, msg := range m.messages {
		if msg.Role == "user" {
			b.WriteString(m.styles.Prompt.Render("❯ "))
			b.WriteString(m.styles.User.Render(msg.Content))
			b.WriteString("\n\n")
			continue
		}
		b.WriteString(m.renderMarkdown(msg.Content))
		b.WriteString("\n")
	}
	if m.streaming && m.liveDisplay != "" {
		b.WriteString(m.styles.Assistant.Render(m.liveDisplay))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return m.styles.Assistant.Render(content)
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return m.styles.Assistant.Render(content)
	}
	return out
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}

	var status string
	switch {
	case m.streaming:
		status = m.spinner.View() + m.styles.Status.Render(" streaming... (esc to cancel)")
	case m.err != nil:
		status = m.styles.Error.Render(fmt.Sprintf("error: %v", m.err))
	default:
		tokens := 0
		if m.sess != nil {
			tokens = m.sess.TokenCount
		}
		status = m.styles.Status.Render(fmt.Sprintf("%d tokens", tokens))
	}

	return m.viewport.View() + "\n" + status + "\n" + m.textarea.View()
}

// Run starts the bubbletea program for the model.
func Run(m *Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
