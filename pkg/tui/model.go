package tui

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aretw0/notely/pkg/core"
	"github.com/aretw0/notely/pkg/editor"
)

type mode int

const (
	modeBrowse mode = iota
	modeEdit
	modeConfirm
)

type field int

const (
	fieldCategory field = iota
	fieldTitle
	fieldContent
	fieldCount
)

// Messages.
type (
	loadedMsg struct {
		categories []core.Category
		notes      []core.Note
		err        error
	}
	statusMsg  editor.Status
	doneMsg    struct{ err error }
	deletedMsg struct{ err error }
)

// Model is the bubbletea model of the application.
type Model struct {
	ctx     context.Context
	store   editor.Store
	session *editor.Session
	logger  *slog.Logger

	statusCh chan editor.Status
	status   editor.Status

	categories []core.Category
	notes      []core.Note
	catCursor  int // 0 is "All"
	cursor     int
	openID     int64

	mode    mode
	focus   field
	title   textinput.Model
	content textarea.Model
	confirm *confirmDialog
	preview *previewCache
	err     error

	width, height int
}

// Option configures a Model.
type Option func(*modelOptions)

type modelOptions struct {
	logger      *slog.Logger
	sessionOpts []editor.Option
	openID      int64
	style       string
}

// WithLogger sets the logger handed to the editor session.
func WithLogger(logger *slog.Logger) Option {
	return func(o *modelOptions) { o.logger = logger }
}

// WithSessionOptions passes options to the editor session, e.g. its delay.
func WithSessionOptions(opts ...editor.Option) Option {
	return func(o *modelOptions) { o.sessionOpts = append(o.sessionOpts, opts...) }
}

// WithOpenNote opens the note with id in the editor once the list is loaded.
func WithOpenNote(id int64) Option {
	return func(o *modelOptions) { o.openID = id }
}

// WithPreviewStyle selects the glamour style ("auto", "dark", "light", "notty").
func WithPreviewStyle(style string) Option {
	return func(o *modelOptions) { o.style = style }
}

// New creates the model. ctx bounds every store call made by the UI.
func New(ctx context.Context, store editor.Store, opts ...Option) Model {
	o := &modelOptions{style: "auto"}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	statusCh := make(chan editor.Status, 16)
	sessionOpts := append([]editor.Option{
		editor.WithLogger(o.logger),
		editor.WithStatusHook(func(st editor.Status) {
			select {
			case statusCh <- st:
			default:
			}
		}),
	}, o.sessionOpts...)

	title := textinput.New()
	title.Placeholder = "Note Title"
	title.CharLimit = core.MaxTitleLength
	title.Prompt = ""

	content := textarea.New()
	content.Placeholder = "Pour your heart out..."
	content.ShowLineNumbers = false

	return Model{
		ctx:      ctx,
		store:    store,
		session:  editor.NewSession(store, sessionOpts...),
		logger:   o.logger,
		statusCh: statusCh,
		openID:   o.openID,
		title:    title,
		content:  content,
		confirm:  &confirmDialog{},
		preview:  &previewCache{style: o.style},
		width:    100,
		height:   30,
	}
}

// Session exposes the editor session driven by the model.
func (m Model) Session() *editor.Session {
	return m.session
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), waitForStatus(m.statusCh))
}

func waitForStatus(ch <-chan editor.Status) tea.Cmd {
	return func() tea.Msg {
		return statusMsg(<-ch)
	}
}

// selectedCategory returns the category filter of the sidebar, 0 for all.
func (m Model) selectedCategory() int64 {
	if m.catCursor <= 0 || m.catCursor > len(m.categories) {
		return 0
	}
	return m.categories[m.catCursor-1].ID
}

func (m Model) loadCmd() tea.Cmd {
	ctx, store, categoryID := m.ctx, m.store, m.selectedCategory()
	return func() tea.Msg {
		cats, err := store.ListCategories(ctx)
		if err != nil {
			return loadedMsg{err: fmt.Errorf("load categories: %w", err)}
		}
		notes, err := store.ListNotes(ctx, categoryID)
		if err != nil {
			return loadedMsg{categories: cats, err: fmt.Errorf("load notes: %w", err)}
		}
		return loadedMsg{categories: cats, notes: notes}
	}
}

func (m Model) doneCmd() tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		return doneMsg{err: s.OnDone(ctx)}
	}
}

func (m Model) deleteCmd() tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		return deletedMsg{err: s.OnDelete(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case loadedMsg:
		return m.handleLoaded(msg)

	case statusMsg:
		m.status = m.session.Status()
		return m, waitForStatus(m.statusCh)

	case doneMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.leaveEditor()
		return m, m.loadCmd()

	case deletedMsg:
		m.confirm.Close()
		if msg.err != nil {
			m.err = msg.err
			m.mode = modeEdit
			return m, nil
		}
		m.leaveEditor()
		return m, m.loadCmd()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.session.Stop()
			return m, tea.Quit
		}
		switch m.mode {
		case modeConfirm:
			return m.updateConfirm(msg)
		case modeEdit:
			return m.updateEditor(msg)
		default:
			return m.updateBrowse(msg)
		}
	}

	if m.mode == modeEdit {
		return m.forward(msg)
	}
	return m, nil
}

func (m Model) handleLoaded(msg loadedMsg) (tea.Model, tea.Cmd) {
	if msg.categories != nil {
		m.categories = msg.categories
		m.session.SetCategories(msg.categories)
	}
	if msg.err != nil {
		m.err = msg.err
		return m, nil
	}
	m.notes = msg.notes
	m.err = nil
	if m.catCursor > len(m.categories) {
		m.catCursor = 0
	}
	m.clampCursor()

	if m.openID > 0 {
		id := m.openID
		m.openID = 0
		for i := range m.notes {
			if m.notes[i].ID == id {
				m.cursor = i
				note := m.notes[i]
				cmd := m.openEditor(&note)
				return m, cmd
			}
		}
		m.err = fmt.Errorf("note %d: %w", id, core.ErrNotFound)
	}
	return m, nil
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.notes) {
		m.cursor = len(m.notes) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.session.Stop()
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.notes)-1 {
			m.cursor++
		}
	case "left", "h":
		if m.catCursor > 0 {
			m.catCursor--
			m.cursor = 0
			return m, m.loadCmd()
		}
	case "right", "l":
		if m.catCursor < len(m.categories) {
			m.catCursor++
			m.cursor = 0
			return m, m.loadCmd()
		}
	case "r":
		return m, m.loadCmd()
	case "n":
		cmd := m.openEditor(nil)
		return m, cmd
	case "enter":
		if len(m.notes) == 0 {
			return m, nil
		}
		note := m.notes[m.cursor]
		cmd := m.openEditor(&note)
		return m, cmd
	}
	return m, nil
}

// openEditor opens the session for note (nil for a new one) and loads the form.
func (m *Model) openEditor(note *core.Note) tea.Cmd {
	if err := m.session.Open(m.ctx, note); err != nil {
		m.err = err
		return nil
	}
	m.session.SetCategories(m.categories)
	if note == nil {
		if id := m.selectedCategory(); id > 0 {
			_ = m.session.SetCategory(id)
		}
	}

	form := m.session.Form()
	m.title.SetValue(form.Title)
	m.content.SetValue(form.Content)
	m.mode = modeEdit
	m.err = nil
	m.status = m.session.Status()
	m.resize()
	return m.setFocus(fieldTitle)
}

func (m *Model) leaveEditor() {
	m.mode = modeBrowse
	m.err = nil
	m.title.Blur()
	m.content.Blur()
	m.status = m.session.Status()
}

func (m *Model) setFocus(f field) tea.Cmd {
	m.focus = f
	m.title.Blur()
	m.content.Blur()
	switch f {
	case fieldTitle:
		return m.title.Focus()
	case fieldContent:
		return m.content.Focus()
	}
	return nil
}

// moveFocus leaves the current field, which schedules a debounced save.
func (m *Model) moveFocus(delta int) tea.Cmd {
	m.syncForm()
	m.session.OnFieldBlur()
	next := (int(m.focus) + delta + int(fieldCount)) % int(fieldCount)
	return m.setFocus(field(next))
}

func (m *Model) syncForm() {
	_ = m.session.SetTitle(m.title.Value())
	_ = m.session.SetContent(m.content.Value())
}

func (m *Model) cycleCategory(delta int) {
	if len(m.categories) == 0 {
		return
	}
	current := m.session.Form().CategoryID
	idx := 0
	for i, c := range m.categories {
		if c.ID == current {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(m.categories)) % len(m.categories)
	_ = m.session.SetCategory(m.categories[idx].ID)
	m.session.OnFieldBlur()
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.syncForm()
		m.session.OnClose()
		m.leaveEditor()
		return m, m.loadCmd()
	case "ctrl+s":
		m.syncForm()
		return m, m.doneCmd()
	case "ctrl+d":
		m.syncForm()
		if _, ok := m.session.NoteID(); !ok {
			m.err = editor.ErrNotPersisted
			return m, nil
		}
		title := m.session.Form().Title
		m.confirm.Open(fmt.Sprintf("Delete %q? This cannot be undone.", title))
		m.mode = modeConfirm
		return m, nil
	case "tab":
		cmd := m.moveFocus(1)
		return m, cmd
	case "shift+tab":
		cmd := m.moveFocus(-1)
		return m, cmd
	}

	if m.focus == fieldCategory {
		switch msg.String() {
		case "left", "h", "up", "k":
			m.cycleCategory(-1)
		case "right", "l", "down", "j", " ":
			m.cycleCategory(1)
		}
		return m, nil
	}
	return m.forward(msg)
}

// forward hands msg to the focused input and mirrors its value into the session.
func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case fieldTitle:
		m.title, cmd = m.title.Update(msg)
		_ = m.session.SetTitle(m.title.Value())
	case fieldContent:
		m.content, cmd = m.content.Update(msg)
		_ = m.session.SetContent(m.content.Value())
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.confirm.HandleKey(msg) {
	case confirmChoiceConfirm:
		return m, m.deleteCmd()
	case confirmChoiceCancel:
		m.confirm.Close()
		m.mode = modeEdit
	}
	return m, nil
}

func (m *Model) resize() {
	w := m.width - 8
	if w < 20 {
		w = 20
	}
	m.title.Width = w - labelStyle.GetWidth()
	m.content.SetWidth(w)
	h := m.height - 12
	if h < 3 {
		h = 3
	}
	m.content.SetHeight(h)
}
