// internal/storage/memstore_test.go
package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "n1")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, s.Create(ctx, "n1", 10))
	assert.ErrorIs(t, s.Create(ctx, "n1", 10), ErrRecordExists)

	now := time.Now()
	require.NoError(t, s.Update(ctx, "n1", 42, now))
	rec, err := s.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, BalanceRecord{NodeID: "n1", Value: 42, ModifiedDate: now}, rec)

	assert.ErrorIs(t, s.Update(ctx, "n2", 1, now), ErrRecordNotFound)
	assert.NoError(t, s.Close())
}
