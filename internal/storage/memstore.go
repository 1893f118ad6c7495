// internal/storage/memstore.go

package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore 為純記憶體後端，供本機開發與測試使用；程序結束即遺失。
type MemoryStore struct {
	mu       sync.Mutex
	balances map[string]BalanceRecord
}

// NewMemoryStore 建立空白的記憶體後端。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{balances: make(map[string]BalanceRecord)}
}

// Get 依 node_id 讀取餘額紀錄。
func (s *MemoryStore) Get(_ context.Context, nodeID string) (BalanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.balances[nodeID]
	if !ok {
		return BalanceRecord{}, ErrRecordNotFound
	}
	return rec, nil
}

// Update 覆寫既有紀錄；不存在時回傳 ErrRecordNotFound。
func (s *MemoryStore) Update(_ context.Context, nodeID string, value int64, modified time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[nodeID]; !ok {
		return ErrRecordNotFound
	}
	s.balances[nodeID] = BalanceRecord{NodeID: nodeID, Value: value, ModifiedDate: modified}
	return nil
}

// Create 佈建新紀錄；已存在時回傳 ErrRecordExists。
func (s *MemoryStore) Create(_ context.Context, nodeID string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[nodeID]; ok {
		return ErrRecordExists
	}
	s.balances[nodeID] = BalanceRecord{NodeID: nodeID, Value: value, ModifiedDate: time.Now()}
	return nil
}

// Close 無需釋放資源。
func (s *MemoryStore) Close() error { return nil }
