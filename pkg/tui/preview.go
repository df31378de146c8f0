package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/notely/pkg/core"
)

// previewCache keeps the last rendered note so View does not re-render
// Markdown on every frame.
type previewCache struct {
	style string
	key   string
	out   string
}

func (p *previewCache) render(n core.Note, width int) string {
	if width < 20 {
		width = 20
	}
	key := fmt.Sprintf("%d/%d/%d", n.ID, n.UpdatedAt.UnixNano(), width)
	if key == p.key {
		return p.out
	}

	out, err := renderMarkdown(n.Content, width, p.style)
	if err != nil {
		out = n.Content
	}
	p.key, p.out = key, strings.TrimRight(out, "\n")
	return p.out
}

func renderMarkdown(md string, width int, style string) (string, error) {
	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOpt = glamour.WithStandardStyle(style)
	}

	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
