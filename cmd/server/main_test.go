// cmd/server/main_test.go
//
// 測試目標：伺服器結束（正常關閉或啟動失敗）時一定會寫回記憶體中的 budget。
package main

import (
	"context"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"transactions/internal/storage"
	"transactions/internal/transaction"
)

// newDeferredSystem 建立延遲寫入模式的系統，並讓記憶體領先儲存層 25。
func newDeferredSystem(t *testing.T) (*transaction.System, *storage.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Create(ctx, "me", 100))
	sys, err := transaction.New(ctx, "me", store, transaction.Config{PriceBase: 1000, DeferredPersistence: true})
	require.NoError(t, err)

	require.NoError(t, sys.TaskRewardPaymentFailure(ctx, "t1", 25))
	rec, err := store.Get(ctx, "me")
	require.NoError(t, err)
	require.Equal(t, int64(100), rec.Value)
	return sys, store
}

func TestServeFlushesWhenListenFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	sys, store := newDeferredSystem(t)
	srv := &http.Server{Addr: ln.Addr().String(), Handler: http.NotFoundHandler()}

	err = serve(context.Background(), srv, sys, zap.NewNop())
	require.Error(t, err)

	rec, err := store.Get(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, int64(125), rec.Value)
}

func TestServeFlushesOnShutdown(t *testing.T) {
	sys, store := newDeferredSystem(t)
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, serve(ctx, srv, sys, zap.NewNop()))

	rec, err := store.Get(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, int64(125), rec.Value)
}
