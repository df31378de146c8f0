package core

import (
	"strings"
	"time"
	"unicode"
)

// MaxTitleLength is the longest title a note may carry, counted in runes.
const MaxTitleLength = 255

// Note is the central entity of the domain.
// A Note with ID 0 has never been persisted.
type Note struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CategoryID int64     `json:"category"`
	OwnerID    int64     `json:"owner"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Read-time joins. Never persisted.
	CategoryDetail *Category `json:"category_detail,omitempty"`
	OwnerUsername  string    `json:"owner_username,omitempty"`
}

// Persisted reports whether the note has been assigned an identity by a store.
func (n Note) Persisted() bool {
	return n.ID > 0
}

// Category groups notes. Notes reference categories by ID only.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ColorHex  string    `json:"color_hex"`
	Slug      string    `json:"slug"`
	NoteCount int       `json:"note_count"`
	CreatedAt time.Time `json:"created_at"`
}

// User owns notes.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// NoteInput carries the client-editable fields of a new note.
type NoteInput struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	CategoryID int64  `json:"category"`
}

// NotePatch is a partial update. Nil fields are left untouched.
type NotePatch struct {
	Title      *string `json:"title,omitempty"`
	Content    *string `json:"content,omitempty"`
	CategoryID *int64  `json:"category,omitempty"`
}

// FullPatch builds a patch that overwrites every editable field.
func FullPatch(in NoteInput) NotePatch {
	return NotePatch{
		Title:      &in.Title,
		Content:    &in.Content,
		CategoryID: &in.CategoryID,
	}
}

// Empty reports whether the patch changes nothing.
func (p NotePatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.CategoryID == nil
}

// Apply writes the non-nil fields of the patch onto n.
func (p NotePatch) Apply(n *Note) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.CategoryID != nil {
		n.CategoryID = *p.CategoryID
	}
}

// Slugify lowercases s and joins its alphanumeric runs with hyphens.
// "Random Thoughts" becomes "random-thoughts".
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}
	return b.String()
}
