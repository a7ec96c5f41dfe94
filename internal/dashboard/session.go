// ABOUTME: Per-view session: admin unlock, login prompt, edit draft, and delete confirmation
// ABOUTME: Edit and delete are independent sub-machines; writes are issued optimistically

package dashboard

import (
	"context"
	"sync"
	"time"
)

// EditMode says whether a draft creates a new entry or updates an existing one
type EditMode int

const (
	// EditCreate inserts the draft as a new entry
	EditCreate EditMode = iota
	// EditUpdate writes the draft over an existing entry
	EditUpdate
)

func (m EditMode) String() string {
	if m == EditUpdate {
		return "update"
	}
	return "create"
}

// Draft holds the in-progress field values of the edit form
type Draft struct {
	Name  string
	URL   string
	Icon  string
	Color string
}

// DraftFields is a partial draft edit. Nil fields are left unchanged.
type DraftFields struct {
	Name  *string
	URL   *string
	Icon  *string
	Color *string
}

// SessionState is a copy of a session's state for rendering
type SessionState struct {
	Admin     bool
	LoginOpen bool
	Password  string

	Editing  bool
	EditMode EditMode
	EditID   string
	Draft    Draft

	Deleting bool
	DeleteID string

	Notice string
}

// Session is the UI state of one open page. It is never persisted; a reload
// starts a new one.
type Session struct {
	gate   *Gate
	writer Writer
	now    func() time.Time

	mu    sync.Mutex
	state SessionState
}

// NewSession creates a locked session with nothing open.
func NewSession(gate *Gate, writer Writer) *Session {
	return &Session{
		gate:   gate,
		writer: writer,
		now:    time.Now,
	}
}

// State returns a snapshot of the session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Admin reports whether the admin mode is unlocked.
func (s *Session) Admin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Admin
}

// OpenLogin shows the password prompt.
func (s *Session) OpenLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LoginOpen = true
}

// CloseLogin hides the password prompt. The typed value is kept.
func (s *Session) CloseLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LoginOpen = false
}

// SetPassword records the value typed into the prompt.
func (s *Session) SetPassword(password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Password = password
}

// AttemptLogin checks candidate against the gate. On success the admin mode
// unlocks, the prompt closes and the typed value is cleared. On failure a
// notice is raised and the prompt stays open with its value.
func (s *Session) AttemptLogin(candidate string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.gate.Check(candidate) {
		s.state.Password = candidate
		s.state.Notice = LoginFailedNotice
		return false
	}

	s.state.Admin = true
	s.state.LoginOpen = false
	s.state.Password = ""
	return true
}

// Lock returns to the locked state. No password is needed. Open edit and
// delete modals close with it since their actions need admin mode.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Admin = false
	s.clearEdit()
	s.state.Deleting = false
	s.state.DeleteID = ""
}

// StartEdit opens the edit form. A nil entry starts a blank create draft;
// otherwise the draft is seeded from entry and will update it.
func (s *Session) StartEdit(entry *AppEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Editing = true
	if entry == nil {
		s.state.EditMode = EditCreate
		s.state.EditID = ""
		s.state.Draft = Draft{URL: DraftURL, Icon: DefaultIcon, Color: DefaultColor}
		return
	}
	s.state.EditMode = EditUpdate
	s.state.EditID = entry.ID
	s.state.Draft = Draft{Name: entry.Name, URL: entry.URL, Icon: entry.Icon, Color: entry.Color}
}

// UpdateDraft applies the non-nil fields to the draft without validation.
func (s *Session) UpdateDraft(f DraftFields) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Editing {
		return
	}
	if f.Name != nil {
		s.state.Draft.Name = *f.Name
	}
	if f.URL != nil {
		s.state.Draft.URL = *f.URL
	}
	if f.Icon != nil {
		s.state.Draft.Icon = *f.Icon
	}
	if f.Color != nil {
		s.state.Draft.Color = *f.Color
	}
}

// SaveDraft issues the draft's write and closes the form. It does nothing and
// returns false when no form is open or the name or URL is empty. Values are
// not trimmed, so whitespace counts as content.
func (s *Session) SaveDraft(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Editing {
		return false
	}
	d := s.state.Draft
	if d.Name == "" || d.URL == "" {
		return false
	}

	entry := AppEntry{Name: d.Name, URL: d.URL, Icon: d.Icon, Color: d.Color}
	if s.state.EditMode == EditCreate {
		entry.CreatedAt = s.now()
		s.writer.Insert(ctx, entry)
	} else {
		s.writer.Update(ctx, s.state.EditID, entry)
	}

	s.clearEdit()
	return true
}

// CancelEdit discards the draft.
func (s *Session) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearEdit()
}

func (s *Session) clearEdit() {
	s.state.Editing = false
	s.state.EditMode = EditCreate
	s.state.EditID = ""
	s.state.Draft = Draft{}
}

// StartDelete opens the confirmation for id.
func (s *Session) StartDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Deleting = true
	s.state.DeleteID = id
}

// ConfirmDelete issues one delete for the pending target and closes the
// confirmation. Returns false when nothing is pending.
func (s *Session) ConfirmDelete(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Deleting {
		return false
	}
	s.writer.Delete(ctx, s.state.DeleteID)
	s.state.Deleting = false
	s.state.DeleteID = ""
	return true
}

// CancelDelete closes the confirmation without deleting.
func (s *Session) CancelDelete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Deleting = false
	s.state.DeleteID = ""
}

// TakeNotice returns the pending notice and clears it.
func (s *Session) TakeNotice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.state.Notice
	s.state.Notice = ""
	return n
}
