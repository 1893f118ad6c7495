// cmd/server/main.go

// 本服務提供節點帳務（預算、應付款、收入）的 HTTP API。
// 此檔案負責依設定組裝各模組（config, logging, storage, transaction, events, server），
// 並以 errgroup 管理 HTTP 伺服器與訊號監聽，收到 SIGINT/SIGTERM 時優雅關閉。

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"transactions/internal/config"
	"transactions/internal/events"
	"transactions/internal/logging"
	"transactions/internal/server"
	"transactions/internal/storage"
	"transactions/internal/transaction"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// 餘額紀錄需在交易系統啟動前存在；PROVISION_BALANCE 提供首次佈建
	if cfg.ProvisionBalance != nil {
		err := store.Create(ctx, cfg.NodeID, *cfg.ProvisionBalance)
		switch {
		case errors.Is(err, storage.ErrRecordExists):
			logger.Info("balance record already provisioned", zap.String("node_id", cfg.NodeID))
		case err != nil:
			return fmt.Errorf("provision balance: %w", err)
		}
	}

	sys, err := transaction.New(ctx, cfg.NodeID, store, transaction.Config{
		PriceBase:           cfg.PriceBase,
		DeferredPersistence: cfg.DeferredPersistence,
	}, transaction.WithLogger(logger))
	if err != nil {
		return err
	}

	var pub events.Publisher = events.NopPublisher{}
	if cfg.NATSURL != "" {
		np, err := events.Connect(events.Options{
			URL:           cfg.NATSURL,
			Name:          "transactions-" + cfg.NodeID,
			ReconnectWait: time.Second,
			MaxReconnects: 5,
			Timeout:       5 * time.Second,
		})
		if err != nil {
			return err
		}
		pub = np
	}
	defer pub.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewServer(sys, pub, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("transaction server running",
		zap.String("addr", srv.Addr),
		zap.String("node_id", cfg.NodeID),
		zap.String("store", cfg.StoreBackend),
		zap.Int64("budget", sys.Budget()))
	return serve(ctx, srv, sys, logger)
}

// serve 執行 HTTP 伺服器直到 ctx 結束或伺服器啟動失敗。
// 不論結果如何，返回前都會將 budget 寫回一次，涵蓋延遲寫入模式下尚未保存的變更。
func serve(ctx context.Context, srv *http.Server, sys *transaction.System, logger *zap.Logger) (err error) {
	defer func() {
		if ferr := sys.Flush(context.Background()); ferr != nil {
			logger.Error("final balance flush failed", zap.Error(ferr))
			err = errors.Join(err, ferr)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return storage.OpenPostgres(ctx, cfg.DatabaseURL)
	case config.BackendRedis:
		return storage.OpenRedis(ctx, cfg.RedisURL)
	case config.BackendMemory:
		return storage.NewMemoryStore(), nil
	default:
		return storage.OpenJSONStore(cfg.DataFile)
	}
}
