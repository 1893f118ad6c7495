// internal/storage/model.go
//
// 定義「資料持久化層 (storage layer)」的結構模型。
// 每個節點 (node) 僅有一筆餘額紀錄 (balance record)，以 node_id 為鍵，
// 保存目前數值與最後修改時間。所有後端 (JSON / Postgres / Redis / memory)
// 共用同一組模型與錯誤定義。
package storage

import (
	"context"
	"time"
)

// BalanceRecord 為單一節點的餘額紀錄。
// Value 以最小貨幣單位保存（int64），避免浮點誤差。
type BalanceRecord struct {
	NodeID       string    `json:"node_id"`
	Value        int64     `json:"val"`
	ModifiedDate time.Time `json:"modified_date"`
}

// Store 為所有餘額後端需實作的介面。
//   - Get：依 node_id 讀取；不存在時回傳 ErrRecordNotFound。
//   - Update：依 node_id 原子更新數值與時間；不存在時回傳 ErrRecordNotFound。
//   - Create：建立新紀錄（供啟動前佈建使用）；已存在時回傳 ErrRecordExists。
type Store interface {
	Get(ctx context.Context, nodeID string) (BalanceRecord, error)
	Update(ctx context.Context, nodeID string, value int64, modified time.Time) error
	Create(ctx context.Context, nodeID string, value int64) error
	Close() error
}

// Meta 為 JSON 快照的中繼資料。
type Meta struct {
	Storage   string    `json:"storage"`        // 儲存類型，例如 "json_snapshot"
	Version   int       `json:"version"`        // 結構版本號
	Timestamp time.Time `json:"timestamp"`      // 快照建立時間
	Note      string    `json:"note,omitempty"` // 備註欄
}

// Snapshot 為 JSON 後端的完整檔案內容。
type Snapshot struct {
	Meta     Meta            `json:"_meta"`
	Balances []BalanceRecord `json:"balances"`
}
