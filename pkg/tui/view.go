package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const sidebarWidth = 24

func (m Model) View() string {
	var body string
	switch m.mode {
	case modeEdit:
		body = m.editorView()
	case modeConfirm:
		body = lipgloss.JoinVertical(lipgloss.Left, m.editorView(), m.confirm.View())
	default:
		body = m.browseView()
	}
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("notely"), body, m.footer())
}

func (m Model) browseView() string {
	listWidth := (m.width - sidebarWidth) / 3
	if listWidth < 24 {
		listWidth = 24
	}
	previewWidth := m.width - sidebarWidth - listWidth - 12
	if previewWidth < 20 {
		previewWidth = 20
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		paneStyle.Width(sidebarWidth).Render(m.sidebarView()),
		activePane.Width(listWidth).Render(m.listView()),
		paneStyle.Width(previewWidth).Render(m.previewView(previewWidth)),
	)
}

func (m Model) sidebarView() string {
	total := 0
	for _, c := range m.categories {
		total += c.NoteCount
	}

	lines := []string{line(m.catCursor == 0, fmt.Sprintf("  All Categories %d", total))}
	for i, c := range m.categories {
		label := fmt.Sprintf("%s %s %d", swatch(c.ColorHex), c.Name, c.NoteCount)
		lines = append(lines, line(m.catCursor == i+1, label))
	}
	return strings.Join(lines, "\n")
}

func (m Model) listView() string {
	if len(m.notes) == 0 {
		return mutedStyle.Render("I'm just here waiting for your charming notes...")
	}
	var lines []string
	for i, n := range m.notes {
		date := mutedStyle.Render(n.UpdatedAt.Local().Format("Jan 2"))
		lines = append(lines, line(i == m.cursor, fmt.Sprintf("%s %s %s", swatch(m.colorOf(n.CategoryID)), n.Title, date)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) previewView(width int) string {
	if len(m.notes) == 0 || m.cursor >= len(m.notes) {
		return ""
	}
	n := m.notes[m.cursor]
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(n.Title), m.preview.render(n, width))
}

func (m Model) editorView() string {
	form := m.session.Form()

	category := "none"
	for _, c := range m.categories {
		if c.ID == form.CategoryID {
			category = swatch(c.ColorHex) + " " + c.Name
		}
	}
	if m.focus == fieldCategory {
		category = "< " + category + " >"
	}

	rows := []string{
		labelStyle.Render("Category") + category,
		labelStyle.Render("Title") + m.title.View(),
		m.content.View(),
		m.statusLine(),
	}
	return activePane.Render(strings.Join(rows, "\n"))
}

// statusLine shows the save indicator and the last error of the session.
func (m Model) statusLine() string {
	st := m.status
	var parts []string
	switch {
	case st.Saving:
		parts = append(parts, savingStyle.Render("Saving..."))
	case st.NoteID > 0:
		parts = append(parts, mutedStyle.Render(fmt.Sprintf("Saved as #%d", st.NoteID)))
	default:
		parts = append(parts, mutedStyle.Render("Not saved yet"))
	}
	if st.Degraded {
		parts = append(parts, mutedStyle.Render("categories unavailable"))
	}
	if st.Err != nil {
		parts = append(parts, errorStyle.Render("Save failed: "+st.Err.Error()))
	}
	return strings.Join(parts, "  ")
}

func (m Model) footer() string {
	var help string
	switch m.mode {
	case modeEdit:
		help = "tab next field • ctrl+s done • ctrl+d delete • esc close"
	case modeConfirm:
		help = "y confirm • n cancel"
	default:
		help = "←/→ category • ↑/↓ note • enter edit • n new • r reload • q quit"
	}
	out := mutedStyle.Render(help)
	if m.err != nil {
		out = errorStyle.Render("Error: "+m.err.Error()) + "\n" + out
	}
	return out
}

func (m Model) colorOf(categoryID int64) string {
	for _, c := range m.categories {
		if c.ID == categoryID {
			return c.ColorHex
		}
	}
	return ""
}

func line(selected bool, s string) string {
	if selected {
		return selectedStyle.Render(s)
	}
	return s
}
