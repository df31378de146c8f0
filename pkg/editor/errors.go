package editor

import "errors"

var (
	// ErrIdentityConflict means a second, different ID was assigned to a session.
	ErrIdentityConflict = errors.New("editor: session already bound to a different note")
	// ErrNotPersisted is returned when deleting a note that was never saved.
	ErrNotPersisted = errors.New("editor: note has not been saved")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("editor: session is closed")
	// ErrAlreadyOpen is returned when opening a different note on an open session.
	ErrAlreadyOpen = errors.New("editor: session is already open")
)
