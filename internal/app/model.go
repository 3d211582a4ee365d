package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"yui/internal/dialogue"
	"yui/internal/logging"
	"yui/internal/types"
)

const (
	minListWidth      = 20
	maxListWidth      = 36
	minViewportWidth  = 20
	minContentHeight  = 3
	chromeHeight      = 5
	maxPromptHistory  = 50
	languageJapanese  = "ja"
	languageEnglish   = "en"
	newSessionPrompt  = "New session title"
	defaultPromptHint = "Ask the agents something"
)

type focusArea int

const (
	focusList focusArea = iota
	focusInput
)

type inputMode int

const (
	inputPrompt inputMode = iota
	inputNewSession
)

type Options struct {
	Language string
	Logger   logging.Logger
	// Cache is read when the server cannot list sessions.
	Cache SessionCache
}

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	api    SessionAPI
	thread Thread
	store  StateStore
	cache  SessionCache
	logger logging.Logger
	feed   *snapshotFeed

	list     SessionList
	viewport viewport.Model
	scroll   *AutoScroll
	input    textinput.Model
	focus    focusArea
	mode     inputMode

	agents       []types.Agent
	snap         dialogue.Snapshot
	openingID    string
	state        types.AppState
	language     string
	historyIndex int
	status       string
	statusErr    bool
	width        int
	height       int
}

func NewModel(ctx context.Context, api SessionAPI, thread Thread, store StateStore, opts Options) *Model {
	ctx, cancel := context.WithCancel(ctx)
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	language := strings.TrimSpace(opts.Language)
	if language == "" {
		language = dialogue.DefaultLanguage
	}
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = defaultPromptHint
	input.SetWidth(minViewportWidth)

	feed := newSnapshotFeed()
	thread.Subscribe(feed.publish)

	return &Model{
		ctx:          ctx,
		cancel:       cancel,
		api:          api,
		thread:       thread,
		store:        store,
		cache:        opts.Cache,
		logger:       logger,
		feed:         feed,
		viewport:     viewport.New(viewport.WithWidth(minViewportWidth), viewport.WithHeight(minContentHeight)),
		scroll:       NewAutoScroll(),
		input:        input,
		language:     language,
		historyIndex: -1,
		status:       "loading",
	}
}

// Run starts the terminal UI and blocks until the user quits.
func Run(ctx context.Context, api SessionAPI, thread Thread, store StateStore, opts Options) error {
	model := NewModel(ctx, api, thread, store, opts)
	defer model.cancel()
	_, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(loadCmd(m.ctx, m.api, m.store, m.cache), waitSnapshotCmd(m.feed))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case loadedMsg:
		return m, m.onLoaded(msg)
	case sessionsMsg:
		if msg.err != nil {
			m.setError("refresh sessions", msg.err)
			return m, nil
		}
		m.list.Merge(msg.sessions)
		return m, nil
	case snapshotMsg:
		m.applySnapshot(msg.snap)
		return m, waitSnapshotCmd(m.feed)
	case openedMsg:
		if msg.id != m.openingID {
			return m, nil
		}
		m.openingID = ""
		if msg.err != nil {
			m.setError("bind session", msg.err)
			return m, nil
		}
		m.setStatus("session ready")
		return m, nil
	case runDoneMsg:
		return m, m.onRunDone(msg)
	case sessionCreatedMsg:
		if msg.err != nil {
			m.setError("create session", msg.err)
			return m, nil
		}
		m.list.Upsert(msg.session)
		m.list.Select(msg.session.ID)
		m.exitNewSession()
		return m, m.openSession(msg.session)
	case stateSavedMsg:
		if msg.err != nil {
			m.logger.Warn("app state save failed", logging.Err(msg.err))
		}
		return m, nil
	case tea.MouseWheelMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.scroll.Scrolled(&m.viewport)
		return m, cmd
	case tea.KeyPressMsg:
		return m, m.onKey(msg)
	}
	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) onLoaded(msg loadedMsg) tea.Cmd {
	if msg.err != nil {
		m.setError("load", msg.err)
	}
	m.agents = msg.agents
	m.list.SetSessions(msg.sessions)
	if msg.state != nil {
		m.state = *msg.state
	}
	if m.state.Language != "" {
		m.language = m.state.Language
	}
	switch {
	case msg.err != nil:
	case msg.offline:
		m.setStatusError(fmt.Sprintf("server unavailable, showing %d cached sessions: %v", len(msg.sessions), msg.listErr))
	default:
		m.setStatus(fmt.Sprintf("%d sessions, %d agents", len(msg.sessions), len(msg.agents)))
	}
	if m.state.ActiveSessionID != "" && m.list.Select(m.state.ActiveSessionID) {
		return m.openSession(m.list.Selected())
	}
	return nil
}

func (m *Model) onRunDone(msg runDoneMsg) tea.Cmd {
	if msg.id != m.activeID() {
		return nil
	}
	switch {
	case errors.Is(msg.err, dialogue.ErrStaleBinding), errors.Is(msg.err, context.Canceled):
		return nil
	case msg.err != nil:
		m.setError("run", msg.err)
	case len(msg.result.Failed) > 0:
		m.setStatusError(fmt.Sprintf("%d of %d stages failed", len(msg.result.Failed), len(msg.result.Plan.Stages)))
	default:
		m.setStatus(fmt.Sprintf("%d stages completed", len(msg.result.Completed)))
	}
	return refreshSessionsCmd(m.ctx, m.api)
}

func (m *Model) onKey(msg tea.KeyPressMsg) tea.Cmd {
	key := msg.String()
	switch key {
	case "ctrl+c":
		m.cancel()
		return tea.Quit
	case "ctrl+n":
		return m.enterNewSession()
	case "ctrl+l":
		return m.toggleLanguage()
	case "tab":
		return m.toggleFocus()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.scroll.Scrolled(&m.viewport)
		return cmd
	}
	if m.focus == focusInput {
		return m.onInputKey(msg)
	}
	switch key {
	case "q":
		m.cancel()
		return tea.Quit
	case "up", "k":
		m.list.Move(-1)
	case "down", "j":
		m.list.Move(1)
	case "enter":
		if session := m.list.Selected(); session != nil {
			return m.openSession(session)
		}
	case "i":
		return m.focusPrompt()
	case "c":
		return m.continueRun()
	case "y":
		m.copyLastMessage()
	case "end", "G":
		m.scroll.Pin(&m.viewport)
	case "home", "g":
		m.viewport.GotoTop()
		m.scroll.Scrolled(&m.viewport)
	case "r":
		return refreshSessionsCmd(m.ctx, m.api)
	}
	return nil
}

func (m *Model) onInputKey(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		if m.mode == inputNewSession {
			m.exitNewSession()
			m.setStatus("new session canceled")
		}
		m.blurPrompt()
		return nil
	case "enter":
		if m.mode == inputNewSession {
			return m.createSession()
		}
		return m.submit()
	case "up":
		m.recallPrompt(1)
		return nil
	case "down":
		m.recallPrompt(-1)
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) openSession(session *types.Session) tea.Cmd {
	if session == nil {
		return nil
	}
	m.openingID = session.ID
	m.list.SetActive(session.ID)
	m.scroll.Pin(&m.viewport)
	m.historyIndex = -1
	m.setStatus("opening " + session.Title)
	m.state.ActiveSessionID = session.ID
	return tea.Batch(openSessionCmd(m.ctx, m.thread, session), saveStateCmd(m.ctx, m.store, m.state))
}

func (m *Model) submit() tea.Cmd {
	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" {
		m.setStatusError("prompt is required")
		return nil
	}
	id := m.activeID()
	if id == "" || !m.snap.Bound {
		m.setStatusError("select a session first")
		return nil
	}
	if m.snap.Processing {
		m.setStatusError("dialogue already running")
		return nil
	}
	m.input.Reset()
	m.historyIndex = -1
	m.rememberPrompt(id, prompt)
	m.scroll.Pin(&m.viewport)
	m.setStatus("running dialogue")
	return tea.Batch(submitCmd(m.ctx, m.thread, id, m.language, prompt), saveStateCmd(m.ctx, m.store, m.state))
}

func (m *Model) continueRun() tea.Cmd {
	id := m.activeID()
	if id == "" || !m.snap.ShowContinue || m.snap.Processing {
		return nil
	}
	m.scroll.Pin(&m.viewport)
	m.setStatus("continuing dialogue")
	return continueCmd(m.ctx, m.thread, id, m.language)
}

func (m *Model) createSession() tea.Cmd {
	title := strings.TrimSpace(m.input.Value())
	if title == "" {
		m.setStatusError("title is required")
		return nil
	}
	m.setStatus("creating session")
	return createSessionCmd(m.ctx, m.api, title, m.language, m.agents)
}

func (m *Model) enterNewSession() tea.Cmd {
	m.mode = inputNewSession
	m.input.Reset()
	m.input.Placeholder = newSessionPrompt
	return m.focusPrompt()
}

func (m *Model) exitNewSession() {
	m.mode = inputPrompt
	m.input.Reset()
	m.input.Placeholder = defaultPromptHint
}

func (m *Model) focusPrompt() tea.Cmd {
	m.focus = focusInput
	return m.input.Focus()
}

func (m *Model) blurPrompt() {
	m.focus = focusList
	m.input.Blur()
}

func (m *Model) toggleFocus() tea.Cmd {
	if m.focus == focusInput {
		m.blurPrompt()
		return nil
	}
	return m.focusPrompt()
}

func (m *Model) toggleLanguage() tea.Cmd {
	if m.language == languageJapanese {
		m.language = languageEnglish
	} else {
		m.language = languageJapanese
	}
	m.state.Language = m.language
	m.setStatus("language: " + m.language)
	return saveStateCmd(m.ctx, m.store, m.state)
}

func (m *Model) rememberPrompt(sessionID, prompt string) {
	if m.state.PromptHistory == nil {
		m.state.PromptHistory = map[string][]string{}
	}
	history := append(m.state.PromptHistory[sessionID], prompt)
	if len(history) > maxPromptHistory {
		history = history[len(history)-maxPromptHistory:]
	}
	m.state.PromptHistory[sessionID] = history
}

// recallPrompt walks the prompt history of the active session; delta 1 goes
// back in time.
func (m *Model) recallPrompt(delta int) {
	if m.mode != inputPrompt {
		return
	}
	history := m.state.PromptHistory[m.activeID()]
	if len(history) == 0 {
		return
	}
	next := m.historyIndex + delta
	if next < 0 {
		m.historyIndex = -1
		m.input.SetValue("")
		return
	}
	if next >= len(history) {
		next = len(history) - 1
	}
	m.historyIndex = next
	m.input.SetValue(history[len(history)-1-next])
	m.input.CursorEnd()
}

func (m *Model) copyLastMessage() {
	text, ok := LastMessageText(m.snap.Messages, m.sessionAgents())
	if !ok {
		m.setStatusError("nothing to copy")
		return
	}
	method, err := CopyText(text)
	if err != nil {
		m.setError("copy", err)
		return
	}
	m.setStatus("copied last message (" + method + ")")
}

func (m *Model) applySnapshot(snap dialogue.Snapshot) {
	if snap.Version < m.snap.Version {
		return
	}
	grew := len(snap.Messages) > len(m.snap.Messages)
	m.snap = snap
	if snap.Session != nil {
		m.list.Upsert(snap.Session)
	}
	m.renderTranscript()
	if grew && snap.Processing {
		m.scroll.Pin(&m.viewport)
	}
}

func (m *Model) renderTranscript() {
	if m.snap.Session == nil {
		m.scroll.SetContent(&m.viewport, helpStyle.Render("Select a session with enter or create one with ctrl+n."))
		return
	}
	groups := BuildTranscript(m.snap.Session, m.snap.Messages)
	content := RenderTranscript(groups, m.sessionAgents(), m.viewport.Width())
	if m.snap.AwaitingFirstResponse {
		content += "\n" + activityStyle.Render("waiting for the first response…")
	}
	m.scroll.SetContent(&m.viewport, content)
}

func (m *Model) sessionAgents() []types.Agent {
	if m.snap.Session != nil && len(m.snap.Session.Agents) > 0 {
		return m.snap.Session.Agents
	}
	return m.agents
}

func (m *Model) activeID() string {
	if m.snap.Session != nil {
		return m.snap.Session.ID
	}
	return ""
}

func (m *Model) listWidth() int {
	return min(max(m.width/4, minListWidth), maxListWidth)
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	contentWidth := max(minViewportWidth, width-m.listWidth()-1)
	m.viewport.SetWidth(contentWidth)
	m.viewport.SetHeight(max(minContentHeight, height-chromeHeight))
	m.input.SetWidth(max(1, contentWidth-3))
	m.renderTranscript()
}

func (m *Model) setStatus(text string) {
	m.status = text
	m.statusErr = false
}

func (m *Model) setStatusError(text string) {
	m.status = text
	m.statusErr = true
}

func (m *Model) setError(action string, err error) {
	m.logger.Error(action+" failed", logging.Err(err))
	m.setStatusError(action + ": " + err.Error())
}

func (m *Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	v.MouseMode = tea.MouseModeCellMotion
	return v
}

func (m *Model) render() string {
	if m.width == 0 || m.height == 0 {
		return "loading…"
	}
	contentWidth := m.viewport.Width()
	title := "Yui Protocol"
	if m.snap.Session != nil {
		title = m.snap.Session.Title
		if m.snap.Session.Round() > 1 {
			title += fmt.Sprintf(" · round %d", m.snap.Session.Round())
		}
	}
	indicator := ""
	if m.snap.Session != nil {
		indicator = RenderStageIndicator(m.snap.Progress, contentWidth)
	}
	right := lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(truncateToWidth(title, contentWidth)),
		indicator,
		m.viewport.View(),
		dividerStyle.Render(strings.Repeat("─", contentWidth)),
		m.input.View(),
		m.statusLine(contentWidth),
	)
	listHeight := max(1, m.height-1)
	left := lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(padToWidth("Sessions", m.listWidth())),
		m.list.View(m.listWidth(), listHeight-1),
	)
	divider := dividerStyle.Render(strings.TrimRight(strings.Repeat("│\n", listHeight), "\n"))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, divider, right)
}

func (m *Model) statusLine(width int) string {
	parts := []string{}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	switch {
	case m.snap.AwaitingFirstResponse:
		parts = append(parts, "waiting")
	case m.snap.Processing:
		parts = append(parts, "running "+string(m.snap.CurrentStage))
	}
	if m.snap.Session != nil {
		parts = append(parts, m.snap.StageCounter)
	}
	if m.snap.ShowContinue && !m.snap.Processing {
		parts = append(parts, "c: continue")
	}
	if !m.scroll.Pinned() {
		parts = append(parts, "end: follow")
	}
	parts = append(parts, m.language)
	line := truncateToWidth(strings.Join(parts, " · "), width)
	if m.statusErr {
		return statusErrorStyle.Render(line)
	}
	return statusStyle.Render(line)
}
