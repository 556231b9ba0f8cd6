package auditlog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stocksync/internal/store"
)

func TestAppendDefaults(t *testing.T) {
	ctx := context.Background()
	log := New(store.NewMemoryRepository())

	entry, err := log.Append(ctx, Entry{Action: "import"})
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.At.IsZero())
	require.Equal(t, StatusSuccess, entry.Status)

	_, err = log.Append(ctx, Entry{})
	require.ErrorIs(t, err, ErrActionRequired)
}

func TestLogIsBounded(t *testing.T) {
	ctx := context.Background()
	log := New(store.NewMemoryRepository())

	const n = 130
	for i := 1; i <= n; i++ {
		_, err := log.Append(ctx, Entry{Action: "delta", Details: fmt.Sprintf("run %d", i)})
		require.NoError(t, err)
	}

	all, err := log.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, DefaultCapacity)
	require.Equal(t, fmt.Sprintf("run %d", n-99), all[0].Details)
	require.Equal(t, fmt.Sprintf("run %d", n), all[len(all)-1].Details)
}

func TestRecent(t *testing.T) {
	ctx := context.Background()
	log := New(store.NewMemoryRepository()).WithCapacity(5)

	for i := 1; i <= 7; i++ {
		_, err := log.Append(ctx, Entry{Action: "export", Details: fmt.Sprintf("%d", i)})
		require.NoError(t, err)
	}

	recent, err := log.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "6", recent[0].Details)
	require.Equal(t, "7", recent[1].Details)

	recent, err = log.Recent(ctx, 50)
	require.NoError(t, err)
	require.Len(t, recent, 5)

	recent, err = log.Recent(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, recent)
}
