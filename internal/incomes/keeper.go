// internal/incomes/keeper.go
//
// Keeper 為預設的收入管理器（in-memory），以 task_id 為鍵追蹤預期收入：
// waiting（等待對方付款）→ finished（已收到）或 timeout（逾時）。
package incomes

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State 為收入紀錄的狀態。
type State string

const (
	StateWaiting  State = "waiting"
	StateTimeout  State = "timeout"
	StateFinished State = "finished"
)

// Record 為單一任務的收入紀錄。
type Record struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	NodeID    string    `json:"node_id"`
	Value     int64     `json:"value"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Keeper 管理單一節點的收入紀錄。
type Keeper struct {
	mu      sync.Mutex
	nodeID  string
	incomes map[string]*Record
	order   []string
	now     func() time.Time
}

// NewKeeper 為指定節點建立空白的收入管理器。
func NewKeeper(nodeID string) *Keeper {
	return &Keeper{
		nodeID:  nodeID,
		incomes: make(map[string]*Record),
		now:     time.Now,
	}
}

// NodeID 回傳擁有此 Keeper 的節點 ID。
func (k *Keeper) NodeID() string { return k.nodeID }

// AddIncome 記錄已收到的報酬；沒有等待紀錄時直接建立 finished 紀錄。
func (k *Keeper) AddIncome(taskID, nodeID string, reward int64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	rec := k.getOrCreate(taskID, nodeID)
	rec.NodeID = nodeID
	rec.Value = reward
	rec.State = StateFinished
	rec.UpdatedAt = k.now()
}

// AddWaitingPayment 建立（或重設）等待付款的紀錄並回傳其快照。
func (k *Keeper) AddWaitingPayment(taskID, nodeID string) Record {
	k.mu.Lock()
	defer k.mu.Unlock()

	rec := k.getOrCreate(taskID, nodeID)
	rec.NodeID = nodeID
	rec.Value = 0
	rec.State = StateWaiting
	rec.UpdatedAt = k.now()
	return *rec
}

// AddTimeoutedPayment 將等待中的紀錄標記為逾時。
// 未知任務回傳 ErrUnknownTask；已收到款項的紀錄回傳 ErrAlreadyPaid。
func (k *Keeper) AddTimeoutedPayment(taskID string) (Record, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	rec, ok := k.incomes[taskID]
	if !ok {
		return Record{}, ErrUnknownTask
	}
	if rec.State == StateFinished {
		return *rec, ErrAlreadyPaid
	}
	rec.State = StateTimeout
	rec.UpdatedAt = k.now()
	return *rec, nil
}

// ListAllIncomes 依建立順序回傳所有收入紀錄的快照。
func (k *Keeper) ListAllIncomes() []Record {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]Record, 0, len(k.order))
	for _, id := range k.order {
		out = append(out, *k.incomes[id])
	}
	return out
}

// getOrCreate 需在持有 mu 時呼叫。
func (k *Keeper) getOrCreate(taskID, nodeID string) *Record {
	if rec, ok := k.incomes[taskID]; ok {
		return rec
	}
	now := k.now()
	rec := &Record{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		NodeID:    nodeID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	k.incomes[taskID] = rec
	k.order = append(k.order, taskID)
	return rec
}
