package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	notelylifecycle "github.com/aretw0/notely/pkg/adapters/lifecycle"
	"github.com/aretw0/notely/pkg/core"
)

func TestSource_FiltersAndCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan core.Event, 4)
	src := notelylifecycle.NewSource(in,
		notelylifecycle.WithKinds(core.KindNote),
		notelylifecycle.WithOwner(1),
	)
	require.NoError(t, src.Start(ctx))

	in <- core.Event{Type: core.EventCreate, Kind: core.KindCategory, ID: 1}
	in <- core.Event{Type: core.EventCreate, Kind: core.KindNote, ID: 2, OwnerID: 2}
	in <- core.Event{Type: core.EventModify, Kind: core.KindNote, ID: 3, OwnerID: 1}
	close(in)

	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-src.Events():
			if !ok {
				assert.Equal(t, []string{"MODIFY note 3"}, got)
				return
			}
			got = append(got, e.String())
		case <-timeout:
			t.Fatal("source did not close")
		}
	}
}
