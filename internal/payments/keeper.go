// internal/payments/keeper.go
//
// Keeper 為預設的付款義務管理器（in-memory）：
//   - FinishedSubtasks 累積每個任務的子任務應付款。
//   - TaskFinished 將任務標記為可結算，依完成順序排隊 (FIFO)。
//   - GetNewPaymentsTask 依可用預算挑出下一個可結算的任務。
//   - Requeue 將結算中的任務退回待結算佇列的最前端。
//   - PaymentFailure 丟棄某任務的所有付款義務。
//
// 所有狀態變更皆在 mu 保護下完成。
package payments

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	id        string
	info      PaymentInfo
	createdAt time.Time
}

type taskPayments struct {
	state   State
	value   int64
	entries []entry
}

// Keeper 管理單一節點的對外付款義務。
type Keeper struct {
	mu     sync.Mutex
	nodeID string
	tasks  map[string]*taskPayments
	order  []string // 任務建立順序
	ready  []string // 已完成、等待結算的任務（FIFO）
	now    func() time.Time
}

// NewKeeper 為指定節點建立空白的付款管理器。
func NewKeeper(nodeID string) *Keeper {
	return &Keeper{
		nodeID: nodeID,
		tasks:  make(map[string]*taskPayments),
		now:    time.Now,
	}
}

// NodeID 回傳擁有此 Keeper 的節點 ID。
func (k *Keeper) NodeID() string { return k.nodeID }

// FinishedSubtasks 登記一筆子任務付款。
// 任務已交出結算時拒絕（ErrTaskSettling）；同一子任務重複登記回傳 ErrDuplicateSubtask；
// 總額溢位回傳 ErrValueOverflow。
func (k *Keeper) FinishedSubtasks(info PaymentInfo) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	tp, ok := k.tasks[info.TaskID]
	if !ok {
		tp = &taskPayments{state: StateComputing}
		k.tasks[info.TaskID] = tp
		k.order = append(k.order, info.TaskID)
	}
	if tp.state == StateSettling {
		return ErrTaskSettling
	}
	for _, e := range tp.entries {
		if e.info.SubtaskID == info.SubtaskID {
			return ErrDuplicateSubtask
		}
	}
	if info.Value > 0 && tp.value > math.MaxInt64-info.Value {
		return ErrValueOverflow
	}
	tp.entries = append(tp.entries, entry{id: uuid.NewString(), info: info, createdAt: k.now()})
	tp.value += info.Value
	return nil
}

// TaskFinished 將計算中的任務移入待結算佇列；未知或非 computing 狀態的任務忽略。
func (k *Keeper) TaskFinished(taskID string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	tp, ok := k.tasks[taskID]
	if !ok || tp.state != StateComputing {
		return
	}
	tp.state = StateFinished
	k.ready = append(k.ready, taskID)
}

// GetNewPaymentsTask 回傳下一個待結算的任務與其付款清單。
// 優先挑選第一個總額不超過 budget 的任務；若皆超過，回傳最早完成的任務，
// 由呼叫端決定取消。沒有待結算任務時回傳 (nil, nil)。
// 被回傳的任務轉為 settling 狀態。
func (k *Keeper) GetNewPaymentsTask(budget int64) (*Task, []PaymentInfo) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(k.ready) == 0 {
		return nil, nil
	}
	idx := 0
	for i, id := range k.ready {
		if k.tasks[id].value <= budget {
			idx = i
			break
		}
	}
	taskID := k.ready[idx]
	k.ready = append(k.ready[:idx], k.ready[idx+1:]...)

	tp := k.tasks[taskID]
	tp.state = StateSettling
	out := make([]PaymentInfo, len(tp.entries))
	for i, e := range tp.entries {
		out[i] = e.info
	}
	return &Task{TaskID: taskID, Value: tp.value}, out
}

// Requeue 將 settling 狀態的任務改回 finished，並放回待結算佇列最前端；其他狀態忽略。
func (k *Keeper) Requeue(taskID string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	tp, ok := k.tasks[taskID]
	if !ok || tp.state != StateSettling {
		return
	}
	tp.state = StateFinished
	k.ready = append([]string{taskID}, k.ready...)
}

// PaymentFailure 丟棄指定任務的所有付款義務（不論狀態）。
func (k *Keeper) PaymentFailure(taskID string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.tasks[taskID]; !ok {
		return
	}
	delete(k.tasks, taskID)
	k.order = removeID(k.order, taskID)
	k.ready = removeID(k.ready, taskID)
}

// ListAllPayments 依任務建立順序、再依登記順序列出所有付款紀錄。
func (k *Keeper) ListAllPayments() []Record {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]Record, 0, len(k.order))
	for _, taskID := range k.order {
		tp := k.tasks[taskID]
		for _, e := range tp.entries {
			out = append(out, Record{
				ID:        e.id,
				TaskID:    taskID,
				SubtaskID: e.info.SubtaskID,
				Payee:     e.info.Account.KeyID,
				Value:     e.info.Value,
				State:     tp.state,
				CreatedAt: e.createdAt,
			})
		}
	}
	return out
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
