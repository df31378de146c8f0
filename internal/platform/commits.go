package platform

import (
	"context"
	"strings"

	"github.com/aretw0/notely/pkg/core"
)

// Commit types for vault commit messages.
const (
	CommitTypeFeat     = "feat"
	CommitTypeFix      = "fix"
	CommitTypeDocs     = "docs"
	CommitTypeRefactor = "refactor"
	CommitTypeChore    = "chore"
)

const footer = "Powered-by: Notely"

// FormatChangeReason builds a conventional commit message:
//
//	<type>(<scope>): <subject>
//
//	<body>
//
//	Powered-by: Notely
func FormatChangeReason(ctype, scope, subject, body string) string {
	var sb strings.Builder

	if ctype == "" {
		ctype = CommitTypeChore
	}
	sb.WriteString(ctype)
	if scope != "" {
		sb.WriteString("(")
		sb.WriteString(scope)
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(subject)

	if body != "" {
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(body))
	}

	sb.WriteString("\n\n")
	sb.WriteString(footer)
	return sb.String()
}

// AppendFooter adds the footer to a free-form message unless present.
func AppendFooter(msg string) string {
	if strings.Contains(msg, footer) {
		return msg
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	if !strings.HasSuffix(msg, "\n\n") {
		msg += "\n"
	}
	return msg + footer
}

// WithChangeReason attaches a commit message to ctx. Versioned vaults use it
// for the commit of the next write made with ctx.
func WithChangeReason(ctx context.Context, reason string) context.Context {
	return context.WithValue(ctx, core.ChangeReasonKey, reason)
}
