package fs

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notely/pkg/core"
)

func TestMarkdownSerializer_RoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	note := core.Note{
		ID:         12,
		Title:      "Groceries: eggs, milk",
		Content:    "# List\n\n- eggs\n- milk\n",
		CategoryID: 2,
		OwnerID:    1,
		CreatedAt:  created,
		UpdatedAt:  created.Add(time.Hour),
	}

	s := NewMarkdownSerializer()
	data, err := s.Serialize(note)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("---\n")))

	parsed, err := s.Parse(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, note.ID, parsed.ID)
	assert.Equal(t, note.Title, parsed.Title)
	assert.Equal(t, note.Content, parsed.Content)
	assert.Equal(t, note.CategoryID, parsed.CategoryID)
	assert.Equal(t, note.OwnerID, parsed.OwnerID)
	assert.True(t, note.CreatedAt.Equal(parsed.CreatedAt))
	assert.True(t, note.UpdatedAt.Equal(parsed.UpdatedAt))
}

func TestMarkdownSerializer_Parse(t *testing.T) {
	s := NewMarkdownSerializer()

	tests := []struct {
		name        string
		input       string
		wantTitle   string
		wantContent string
		wantErr     bool
	}{
		{
			name:        "no frontmatter",
			input:       "just text\n",
			wantContent: "just text\n",
		},
		{
			name:        "crlf line endings",
			input:       "---\r\ntitle: Windows\r\n---\r\nbody\r\n",
			wantTitle:   "Windows",
			wantContent: "body\n",
		},
		{
			name:        "empty header",
			input:       "---\n---\nbody",
			wantContent: "body",
		},
		{
			name:      "header without body",
			input:     "---\ntitle: Only\n---",
			wantTitle: "Only",
		},
		{
			name:        "delimiter inside body",
			input:       "---\ntitle: T\n---\nabove\n---\nbelow",
			wantTitle:   "T",
			wantContent: "above\n---\nbelow",
		},
		{
			name:    "unterminated header",
			input:   "---\ntitle: T\nbody",
			wantErr: true,
		},
		{
			name:    "invalid yaml",
			input:   "---\ntitle: [unclosed\n---\n",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n, err := s.Parse(strings.NewReader(tc.input))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantTitle, n.Title)
			assert.Equal(t, tc.wantContent, n.Content)
		})
	}
}

func TestYAMLTables(t *testing.T) {
	records := []categoryRecord{
		{ID: 1, Name: "School", ColorHex: "#FFD966", Slug: "school"},
		{ID: 2, Name: "Personal", ColorHex: "#7DD3C0", Slug: "personal"},
	}

	data, err := encodeYAMLList(records)
	require.NoError(t, err)

	decoded, err := decodeYAMLList[categoryRecord](data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, "School", decoded[0].Name)
	assert.Equal(t, "personal", decoded[1].Slug)

	empty, err := decodeYAMLList[userRecord]([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}
