// Package storagetest is a conformance suite for storage.Store
// implementations, runnable against any backend (postgres or sqlite).
// It checks the Store contract only; the storage worker's
// retry/reconnect logic is tested separately in package storage.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorgateway/gateway/internal/sensor"
	"github.com/sensorgateway/gateway/internal/storage"
)

// Factory constructs a fresh, unconnected Store for each subtest.
type Factory func(t *testing.T) storage.Store

// Run exercises the common behavior every storage.Store implementation
// must provide: connect, insert, reject an insert before Connect, and
// reconnect after Close.
func Run(t *testing.T, newStore Factory) {
	t.Run("ConnectCreatesSchemaAndInsertSucceeds", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Connect(ctx))
		defer store.Close()

		err := store.Insert(ctx, sensor.New(42, 21.5, 1_700_000_000))
		assert.NoError(t, err)
	})

	t.Run("InsertMultipleReadings", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Connect(ctx))
		defer store.Close()

		for i := uint16(1); i <= 5; i++ {
			require.NoError(t, store.Insert(ctx, sensor.New(i, float64(i)*10, 1_700_000_000+int64(i))))
		}
	})

	t.Run("InsertBeforeConnectFails", func(t *testing.T) {
		store := newStore(t)
		err := store.Insert(context.Background(), sensor.New(1, 1, 0))
		assert.Error(t, err)
	})

	t.Run("CloseThenReconnect", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Connect(ctx))
		require.NoError(t, store.Close())

		require.NoError(t, store.Connect(ctx))
		defer store.Close()
		assert.NoError(t, store.Insert(ctx, sensor.New(1, 1, 0)))
	})
}
