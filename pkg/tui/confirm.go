package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type confirmChoice int

const (
	confirmChoiceNone confirmChoice = iota
	confirmChoiceConfirm
	confirmChoiceCancel
)

// confirmDialog is a modal yes/no prompt.
type confirmDialog struct {
	active  bool
	message string
}

func (c *confirmDialog) Open(message string) {
	c.active = true
	c.message = strings.TrimSpace(message)
}

func (c *confirmDialog) Close() {
	c.active = false
	c.message = ""
}

func (c *confirmDialog) IsOpen() bool {
	return c.active
}

func (c *confirmDialog) HandleKey(msg tea.KeyMsg) confirmChoice {
	if !c.active {
		return confirmChoiceNone
	}
	switch msg.String() {
	case "y", "Y", "enter":
		return confirmChoiceConfirm
	case "n", "N", "esc", "q":
		return confirmChoiceCancel
	}
	return confirmChoiceNone
}

func (c *confirmDialog) View() string {
	if !c.active {
		return ""
	}
	return dialogStyle.Render(c.message + "\n\n" + mutedStyle.Render("[y] delete   [n] cancel"))
}
