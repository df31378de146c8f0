package fs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/notely/pkg/core"
)

// Serializer defines how a note is read from and written to a file.
type Serializer interface {
	Parse(r io.Reader) (core.Note, error)
	Serialize(n core.Note) ([]byte, error)
}

// frontmatter is the YAML header of a note file. The body is the content.
type frontmatter struct {
	ID        int64     `yaml:"id"`
	Title     string    `yaml:"title"`
	Category  int64     `yaml:"category"`
	Owner     int64     `yaml:"owner"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// MarkdownSerializer stores a note as YAML frontmatter followed by its content.
type MarkdownSerializer struct{}

// NewMarkdownSerializer creates a new Markdown serializer.
func NewMarkdownSerializer() *MarkdownSerializer {
	return &MarkdownSerializer{}
}

func (s *MarkdownSerializer) Parse(r io.Reader) (core.Note, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Note{}, err
	}
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))

	// A file without frontmatter is all content. Its identity comes from the filename.
	if !bytes.HasPrefix(data, []byte("---\n")) {
		return core.Note{Content: string(data)}, nil
	}

	rest := data[len("---\n"):]
	var header, body []byte
	switch {
	case bytes.HasPrefix(rest, []byte("---\n")):
		body = rest[len("---\n"):]
	case bytes.Equal(rest, []byte("---")):
	default:
		idx := bytes.Index(rest, []byte("\n---\n"))
		if idx < 0 {
			if !bytes.HasSuffix(rest, []byte("\n---")) {
				return core.Note{}, errors.New("frontmatter started but no closing delimiter found")
			}
			idx = len(rest) - len("\n---")
			header = rest[:idx]
		} else {
			header = rest[:idx]
			body = rest[idx+len("\n---\n"):]
		}
	}

	var fm frontmatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return core.Note{}, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	return core.Note{
		ID:         fm.ID,
		Title:      fm.Title,
		Content:    string(body),
		CategoryID: fm.Category,
		OwnerID:    fm.Owner,
		CreatedAt:  fm.CreatedAt,
		UpdatedAt:  fm.UpdatedAt,
	}, nil
}

func (s *MarkdownSerializer) Serialize(n core.Note) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(frontmatter{
		ID:        n.ID,
		Title:     n.Title,
		Category:  n.CategoryID,
		Owner:     n.OwnerID,
		CreatedAt: n.CreatedAt.UTC(),
		UpdatedAt: n.UpdatedAt.UTC(),
	}); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}

	buf.WriteString("---\n")
	buf.WriteString(n.Content)
	return buf.Bytes(), nil
}

// categoryRecord and userRecord mirror the persisted fields in the YAML tables.
type categoryRecord struct {
	ID        int64     `yaml:"id"`
	Name      string    `yaml:"name"`
	ColorHex  string    `yaml:"color_hex"`
	Slug      string    `yaml:"slug"`
	CreatedAt time.Time `yaml:"created_at"`
}

type userRecord struct {
	ID           int64     `yaml:"id"`
	Username     string    `yaml:"username"`
	Email        string    `yaml:"email,omitempty"`
	PasswordHash string    `yaml:"password_hash"`
	CreatedAt    time.Time `yaml:"created_at"`
}

func decodeYAMLList[T any](data []byte) ([]T, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var out []T
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeYAMLList[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(items); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
