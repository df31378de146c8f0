package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/notely/pkg/core"
)

func TestFormatChangeReason(t *testing.T) {
	tests := []struct {
		name                         string
		ctype, scope, subject, body string
		want                         string
	}{
		{
			name: "full", ctype: CommitTypeFeat, scope: "notes", subject: "add groceries", body: " two items ",
			want: "feat(notes): add groceries\n\ntwo items\n\nPowered-by: Notely",
		},
		{
			name: "defaults to chore", subject: "seed",
			want: "chore: seed\n\nPowered-by: Notely",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatChangeReason(tt.ctype, tt.scope, tt.subject, tt.body))
		})
	}
}

func TestAppendFooter(t *testing.T) {
	assert.Equal(t, "edit\n\nPowered-by: Notely", AppendFooter("edit"))
	assert.Equal(t, "edit\n\nPowered-by: Notely", AppendFooter("edit\n"))
	already := "edit\n\nPowered-by: Notely"
	assert.Equal(t, already, AppendFooter(already))
}

func TestWithChangeReason(t *testing.T) {
	ctx := WithChangeReason(context.Background(), "autosave")
	assert.Equal(t, "autosave", ctx.Value(core.ChangeReasonKey))
}
