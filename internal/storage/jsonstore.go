// internal/storage/jsonstore.go
//
// 以 JSON 快照檔保存所有節點的餘額紀錄。
// 寫入採「原子寫入」策略：先寫入 .tmp 檔，再以 rename() 取代原檔，
// 避免中途失敗導致檔案損壞。
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"
)

// JSONStore 將餘額紀錄保存於單一 JSON 檔案。
// 記憶體中保留一份索引表，每次變更後整份寫回檔案。
type JSONStore struct {
	mu       sync.Mutex
	path     string
	balances map[string]BalanceRecord
}

// OpenJSONStore 開啟（或初始化）指定路徑的 JSON 餘額檔。
// 檔案不存在時以空白狀態啟動，第一次寫入時才建立檔案。
func OpenJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{path: path, balances: make(map[string]BalanceRecord)}
	snap, err := LoadSnapshot(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load balance snapshot: %w", err)
	}
	for _, rec := range snap.Balances {
		s.balances[rec.NodeID] = rec
	}
	return s, nil
}

// Get 依 node_id 讀取餘額紀錄。
func (s *JSONStore) Get(_ context.Context, nodeID string) (BalanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.balances[nodeID]
	if !ok {
		return BalanceRecord{}, ErrRecordNotFound
	}
	return rec, nil
}

// Update 覆寫既有紀錄並寫回檔案；寫檔失敗時記憶體狀態不變。
func (s *JSONStore) Update(_ context.Context, nodeID string, value int64, modified time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.balances[nodeID]
	if !ok {
		return ErrRecordNotFound
	}
	s.balances[nodeID] = BalanceRecord{NodeID: nodeID, Value: value, ModifiedDate: modified}
	if err := s.flush(); err != nil {
		s.balances[nodeID] = prev
		return err
	}
	return nil
}

// Create 佈建新紀錄。
func (s *JSONStore) Create(_ context.Context, nodeID string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[nodeID]; ok {
		return ErrRecordExists
	}
	s.balances[nodeID] = BalanceRecord{NodeID: nodeID, Value: value, ModifiedDate: time.Now()}
	if err := s.flush(); err != nil {
		delete(s.balances, nodeID)
		return err
	}
	return nil
}

// Close 無需釋放資源。
func (s *JSONStore) Close() error { return nil }

// flush 需在持有 mu 時呼叫。
func (s *JSONStore) flush() error {
	snap := Snapshot{Meta: Meta{Version: 1}}
	for _, rec := range s.balances {
		snap.Balances = append(snap.Balances, rec)
	}
	if err := SaveSnapshot(s.path, snap); err != nil {
		return fmt.Errorf("save balance snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot 讀取指定路徑的 JSON 快照。
// 檔案不存在時回傳的錯誤可用 errors.Is(err, fs.ErrNotExist) 判斷。
func LoadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()
	err = json.NewDecoder(f).Decode(&snap)
	return snap, err
}

// SaveSnapshot 將 Snapshot 序列化為 JSON，先寫入 path+".tmp" 再 rename 取代正式檔案。
func SaveSnapshot(path string, snap Snapshot) error {
	snap.Meta.Storage = "json_snapshot"
	snap.Meta.Timestamp = time.Now()
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	// 原子替換
	return os.Rename(tmp, path)
}
