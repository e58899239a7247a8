package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "checkin/pkg/platform/audit"
)

func TestListRecent(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	for _, reason := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, audit.Event{Action: string(audit.EventProofRejected), Reason: reason}))
	}

	recent, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].Reason)
	assert.Equal(t, "c", recent[1].Reason)

	all, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListAllReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.Append(ctx, audit.Event{Action: string(audit.EventProofIssued)}))

	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	events[0].Action = "tampered"

	again, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(audit.EventProofIssued), again[0].Action)

	store.Clear()
	again, err = store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}
