package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/notely/pkg/core"
	"github.com/aretw0/notely/pkg/debounce"
)

const (
	// DefaultDelay is the quiet period between the last blur and the save.
	DefaultDelay = 500 * time.Millisecond
	// DefaultFallbackCategory is used for new notes when no category list is loaded.
	DefaultFallbackCategory int64 = 1
)

// State is the lifecycle phase of a session.
type State int

const (
	StateClosed State = iota
	StateOpenNew
	StateOpenExisting
	// StateSaving is reported while a write is in flight over either open state.
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpenNew:
		return "open-new"
	case StateOpenExisting:
		return "open-existing"
	case StateSaving:
		return "saving"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Form is the working copy of the editable fields.
type Form struct {
	Title      string
	Content    string
	CategoryID int64
}

// Input converts the form into a create payload.
func (f Form) Input() core.NoteInput {
	return core.NoteInput{Title: f.Title, Content: f.Content, CategoryID: f.CategoryID}
}

// Blank reports whether the trimmed title is empty. Blank forms are never saved.
func (f Form) Blank() bool {
	return strings.TrimSpace(f.Title) == ""
}

// Status is a snapshot published to the status hook after every transition.
type Status struct {
	State    State
	NoteID   int64
	Saving   bool
	Degraded bool
	Err      error
}

type saveRequest struct {
	epoch uint64
	form  Form
}

// Session is one note editing session. It is safe for concurrent use: the
// debounce timer fires on its own goroutine while the UI calls the setters.
type Session struct {
	store            Store
	logger           *slog.Logger
	tracker          *IdentityTracker
	writer           *debounce.Debouncer[saveRequest]
	flushOnClose     bool
	fallbackCategory int64
	onStatus         func(Status)

	// saveMu serializes writes so a debounced save and Done can never both create.
	saveMu sync.Mutex

	mu              sync.Mutex
	state           State
	form            Form
	openedID        int64
	epoch           uint64
	saving          bool
	lastErr         error
	categories      []core.Category
	categoryTouched bool
	ctx             context.Context
	cancel          context.CancelFunc
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	logger           *slog.Logger
	delay            time.Duration
	timerFunc        debounce.TimerFunc
	flushOnClose     bool
	fallbackCategory int64
	onStatus         func(Status)
	tracker          *IdentityTracker
}

// WithLogger sets the logger used to report failed saves.
func WithLogger(logger *slog.Logger) Option {
	return func(o *sessionOptions) {
		o.logger = logger
	}
}

// WithDelay sets the debounce delay. Zero means DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(o *sessionOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithTimerFunc replaces the timer used by the debounced writer.
func WithTimerFunc(fn debounce.TimerFunc) Option {
	return func(o *sessionOptions) {
		o.timerFunc = fn
	}
}

// WithFlushOnClose makes OnClose run a pending debounced save instead of dropping it.
func WithFlushOnClose(flush bool) Option {
	return func(o *sessionOptions) {
		o.flushOnClose = flush
	}
}

// WithFallbackCategory sets the category for new notes when no list is loaded.
func WithFallbackCategory(id int64) Option {
	return func(o *sessionOptions) {
		o.fallbackCategory = id
	}
}

// WithStatusHook registers fn to receive a Status after every transition.
// fn runs outside the session lock and may call read-only methods.
func WithStatusHook(fn func(Status)) Option {
	return func(o *sessionOptions) {
		o.onStatus = fn
	}
}

// WithTracker shares an existing IdentityTracker with the session.
func WithTracker(t *IdentityTracker) Option {
	return func(o *sessionOptions) {
		o.tracker = t
	}
}

// NewSession creates a closed session writing to store.
func NewSession(store Store, opts ...Option) *Session {
	o := &sessionOptions{
		delay:            DefaultDelay,
		fallbackCategory: DefaultFallbackCategory,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracker == nil {
		o.tracker = NewIdentityTracker()
	}

	s := &Session{
		store:            store,
		logger:           o.logger,
		tracker:          o.tracker,
		flushOnClose:     o.flushOnClose,
		fallbackCategory: o.fallbackCategory,
		onStatus:         o.onStatus,
		state:            StateClosed,
	}

	var dopts []debounce.Option
	if o.timerFunc != nil {
		dopts = append(dopts, debounce.WithTimerFunc(o.timerFunc))
	}
	s.writer = debounce.New(o.delay, s.autosave, dopts...)
	return s
}

// Tracker returns the identity tracker of the session.
func (s *Session) Tracker() *IdentityTracker {
	return s.tracker
}

// Open starts a session for note, or for a new note when note is nil.
//
// On an already open session, Open(nil) resets the form only while no ID has
// been assigned, and Open with the note already being edited is a no-op.
// Opening a different note requires closing first.
func (s *Session) Open(ctx context.Context, note *core.Note) error {
	s.mu.Lock()

	if s.state != StateClosed {
		err := s.reopenLocked(note)
		s.mu.Unlock()
		if err == nil {
			s.notify()
		}
		return err
	}

	s.epoch++
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.tracker.OpenFor(note)
	s.lastErr = nil
	s.saving = false
	s.categoryTouched = false

	if note != nil {
		s.form = Form{Title: note.Title, Content: note.Content, CategoryID: note.CategoryID}
		s.openedID = note.ID
		s.categoryTouched = note.CategoryID > 0
	} else {
		s.form = Form{CategoryID: s.defaultCategoryLocked()}
		s.openedID = 0
	}

	if s.openedID > 0 {
		s.state = StateOpenExisting
	} else {
		s.state = StateOpenNew
	}
	s.logger.Debug("editor opened", "state", s.state, "id", s.openedID)
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Session) reopenLocked(note *core.Note) error {
	current, bound := s.tracker.Current()
	if note == nil {
		if bound {
			return nil
		}
		s.tracker.OpenFor(nil)
		s.form = Form{CategoryID: s.defaultCategoryLocked()}
		s.categoryTouched = false
		return nil
	}
	if bound && note.ID == current {
		return nil
	}
	return ErrAlreadyOpen
}

func (s *Session) defaultCategoryLocked() int64 {
	if len(s.categories) > 0 {
		return s.categories[0].ID
	}
	return s.fallbackCategory
}

// SetCategories supplies the category list, which may arrive after Open.
// A new note that has not picked a category moves to the first one.
func (s *Session) SetCategories(categories []core.Category) {
	s.mu.Lock()
	s.categories = append([]core.Category(nil), categories...)
	if s.state == StateOpenNew && !s.categoryTouched {
		s.form.CategoryID = s.defaultCategoryLocked()
	}
	s.mu.Unlock()

	s.notify()
}

// Categories returns the last list given to SetCategories.
func (s *Session) Categories() []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.categories...)
}

// SetTitle updates the working title.
func (s *Session) SetTitle(title string) error {
	return s.edit(func(f *Form) { f.Title = title })
}

// SetContent updates the working content.
func (s *Session) SetContent(content string) error {
	return s.edit(func(f *Form) { f.Content = content })
}

// SetCategory updates the working category.
func (s *Session) SetCategory(id int64) error {
	return s.edit(func(f *Form) {
		f.CategoryID = id
		s.categoryTouched = true
	})
}

func (s *Session) edit(fn func(*Form)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrClosed
	}
	fn(&s.form)
	return nil
}

// Form returns a copy of the working fields.
func (s *Session) Form() Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// NoteID returns the ID the session writes to, if any.
func (s *Session) NoteID() (int64, bool) {
	s.mu.Lock()
	opened := s.openedID
	s.mu.Unlock()
	return s.tracker.ResolveSaveTarget(opened)
}

// IsSaving reports whether a write is in flight.
func (s *Session) IsSaving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// LastError returns the error of the most recent save or delete, or nil.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SavePending reports whether a debounced save is waiting for its timer.
func (s *Session) SavePending() bool {
	return s.writer.Pending()
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	st := s.state
	if s.saving && st != StateClosed {
		st = StateSaving
	}
	id, _ := s.tracker.ResolveSaveTarget(s.openedID)
	if st == StateClosed {
		id = 0
	}
	return Status{
		State:    st,
		NoteID:   id,
		Saving:   s.saving,
		Degraded: len(s.categories) == 0,
		Err:      s.lastErr,
	}
}

func (s *Session) notify() {
	if s.onStatus == nil {
		return
	}
	s.onStatus(s.Status())
}

// OnFieldBlur schedules a debounced save of the current form.
func (s *Session) OnFieldBlur() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	req := saveRequest{epoch: s.epoch, form: s.form}
	s.mu.Unlock()

	s.writer.Schedule(req)
}

// Save writes the current form now, superseding any pending debounced save.
func (s *Session) Save(ctx context.Context) error {
	req, err := s.snapshot()
	if err != nil {
		return err
	}
	s.writer.Cancel()
	return s.performSave(ctx, req)
}

// OnDone saves the current form immediately and closes the session once the
// write completes. A failed save leaves the session open with the error.
func (s *Session) OnDone(ctx context.Context) error {
	if err := s.Save(ctx); err != nil {
		return err
	}
	s.teardown()
	return nil
}

// OnDelete deletes the bound note and closes the session. Confirmation is
// the caller's concern. A failed delete leaves the session open.
func (s *Session) OnDelete(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	s.writer.Cancel()

	// Wait for an in-flight create so its ID is known.
	s.saveMu.Lock()
	s.mu.Lock()
	id, ok := s.tracker.ResolveSaveTarget(s.openedID)
	s.mu.Unlock()
	if !ok {
		s.saveMu.Unlock()
		return ErrNotPersisted
	}

	err := s.store.DeleteNote(ctx, id)
	s.saveMu.Unlock()

	if err != nil {
		s.logger.Error("failed to delete note", "id", id, "error", err)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("delete note %d: %w", id, err)
	}

	s.logger.Debug("note deleted", "id", id)
	s.teardown()
	return nil
}

// OnClose ends the session. A pending debounced save is dropped, or run
// first when the session was built WithFlushOnClose. A save already in
// flight completes before the session resets.
func (s *Session) OnClose() {
	if s.flushOnClose {
		s.writer.Flush()
	} else if s.writer.Cancel() {
		s.logger.Debug("pending save dropped on close")
	}
	s.teardown()
}

// Stop closes the session and permanently disables its writer.
func (s *Session) Stop() {
	s.OnClose()
	s.writer.Stop()
}

func (s *Session) teardown() {
	s.saveMu.Lock()
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		s.saveMu.Unlock()
		return
	}
	s.epoch++
	s.state = StateClosed
	s.form = Form{}
	s.openedID = 0
	s.saving = false
	s.categoryTouched = false
	s.tracker.Reset()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.saveMu.Unlock()

	s.logger.Debug("editor closed")
	s.notify()
}

func (s *Session) snapshot() (saveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return saveRequest{}, ErrClosed
	}
	return saveRequest{epoch: s.epoch, form: s.form}, nil
}

// autosave is the debounced callback. Errors are recorded, never retried.
func (s *Session) autosave(req saveRequest) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}

	if err := s.performSave(ctx, req); err != nil && !errors.Is(err, ErrClosed) {
		s.logger.Error("autosave failed", "error", err)
	}
}

// performSave creates the note on the first save of a new session and
// updates it on every save after that.
func (s *Session) performSave(ctx context.Context, req saveRequest) error {
	if req.form.Blank() {
		return nil
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if req.epoch != s.epoch || s.state == StateClosed {
		// Scheduled by a session that has since closed.
		s.mu.Unlock()
		return ErrClosed
	}
	s.saving = true
	opened := s.openedID
	s.mu.Unlock()
	s.notify()

	err := s.write(ctx, opened, req.form)

	s.mu.Lock()
	s.saving = false
	s.lastErr = err
	if err == nil && s.state == StateOpenNew {
		s.state = StateOpenExisting
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.logger.Error("failed to save note", "title", req.form.Title, "error", err)
	}
	return err
}

func (s *Session) write(ctx context.Context, opened int64, form Form) error {
	if id, ok := s.tracker.ResolveSaveTarget(opened); ok {
		if _, err := s.store.UpdateNote(ctx, id, core.FullPatch(form.Input())); err != nil {
			return fmt.Errorf("update note %d: %w", id, err)
		}
		s.logger.Debug("note updated", "id", id)
		return nil
	}

	n, err := s.store.CreateNote(ctx, form.Input())
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	if err := s.tracker.Assign(n.ID); err != nil {
		return err
	}
	s.logger.Debug("note created", "id", n.ID)
	return nil
}
