package editor

import (
	"github.com/aretw0/introspection"
)

// SessionState exposes internal state for observability.
type SessionState struct {
	State       string `json:"state"`
	NoteID      int64  `json:"note_id,omitempty"`
	Saving      bool   `json:"saving"`
	SavePending bool   `json:"save_pending"`
	Degraded    bool   `json:"degraded"`
	LastError   string `json:"last_error,omitempty"`
	Delay       string `json:"delay"`
}

// State implements introspection.Introspectable.
func (s *Session) State() any {
	st := s.Status()
	out := SessionState{
		State:       st.State.String(),
		NoteID:      st.NoteID,
		Saving:      st.Saving,
		SavePending: s.writer.Pending(),
		Degraded:    st.Degraded,
		Delay:       s.writer.Delay().String(),
	}
	if st.Err != nil {
		out.LastError = st.Err.Error()
	}
	return out
}

// ComponentType implements introspection.Component.
func (s *Session) ComponentType() string {
	return "editor-session"
}

var _ introspection.Introspectable = (*Session)(nil)
var _ introspection.Component = (*Session)(nil)
