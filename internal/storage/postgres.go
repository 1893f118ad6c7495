// internal/storage/postgres.go
//
// PostgreSQL 後端：一個節點一列，資料表名稱沿用 bank。
// 更新為單一 UPDATE ... WHERE node_id = $n，由資料庫保證原子性。
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const createBankTable = `CREATE TABLE IF NOT EXISTS bank (
	node_id       TEXT PRIMARY KEY,
	val           BIGINT NOT NULL,
	modified_date TIMESTAMPTZ NOT NULL
)`

// uniqueViolation 為 PostgreSQL 的 unique_violation 錯誤碼。
const uniqueViolation = "23505"

// PostgresStore 以 database/sql + lib/pq 實作 Store。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 包裝既有連線。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres 開啟連線、確認可連通並建立資料表。
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := NewPostgresStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema 建立 bank 資料表（若不存在）。
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createBankTable); err != nil {
		return fmt.Errorf("failed to create bank table: %w", err)
	}
	return nil
}

// Get 依 node_id 查詢 bank 資料表。
func (s *PostgresStore) Get(ctx context.Context, nodeID string) (BalanceRecord, error) {
	rec := BalanceRecord{NodeID: nodeID}
	err := s.db.QueryRowContext(ctx,
		`SELECT val, modified_date FROM bank WHERE node_id = $1`,
		nodeID,
	).Scan(&rec.Value, &rec.ModifiedDate)
	if errors.Is(err, sql.ErrNoRows) {
		return BalanceRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return BalanceRecord{}, fmt.Errorf("failed to get balance: %w", err)
	}
	return rec, nil
}

// Update 以單一 UPDATE 覆寫數值與時間；沒有任何列被更新時回傳 ErrRecordNotFound。
func (s *PostgresStore) Update(ctx context.Context, nodeID string, value int64, modified time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE bank SET val = $1, modified_date = $2 WHERE node_id = $3`,
		value, modified, nodeID,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Create 插入新列；主鍵衝突時回傳 ErrRecordExists。
func (s *PostgresStore) Create(ctx context.Context, nodeID string, value int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bank (node_id, val, modified_date) VALUES ($1, $2, $3)`,
		nodeID, value, time.Now(),
	)
	if isUniqueViolation(err) {
		return ErrRecordExists
	}
	if err != nil {
		return fmt.Errorf("failed to create balance: %w", err)
	}
	return nil
}

// Close 關閉資料庫連線池。
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
