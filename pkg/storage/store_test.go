package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type estimates struct {
	Fast    string `json:"fast"`
	Average string `json:"average"`
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := Open(BackendFile, filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	boltStore, err := Open(BackendBolt, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		fileStore.Close()
		boltStore.Close()
	})

	return map[string]Store{BackendFile: fileStore, BackendBolt: boltStore}
}

func Test_StoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			var got estimates
			found, err := store.Load(ctx, "gas-price-estimates", &got)
			require.NoError(t, err)
			assert.False(t, found)

			want := estimates{Fast: "40", Average: "30"}
			require.NoError(t, store.Save(ctx, "gas-price-estimates", want))

			found, err = store.Load(ctx, "gas-price-estimates", &got)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, want, got)

			require.NoError(t, store.Delete(ctx, "gas-price-estimates"))
			require.NoError(t, store.Delete(ctx, "gas-price-estimates"))

			found, err = store.Load(ctx, "gas-price-estimates", &got)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func Test_StoreRejectsEmptyKey(t *testing.T) {
	ctx := context.Background()

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, store.Save(ctx, "", 1), ErrKeyRequired)
			_, err := store.Load(ctx, "", new(int))
			assert.ErrorIs(t, err, ErrKeyRequired)
		})
	}
}

func Test_FileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "gas-price-estimates-last-retrieved", int64(1700000000000)))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	var last int64
	found, err := reopened.Load(ctx, "gas-price-estimates-last-retrieved", &last)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1700000000000), last)
}

func Test_OpenUnknownBackend(t *testing.T) {
	_, err := Open("redis", "")
	require.Error(t, err)
}
