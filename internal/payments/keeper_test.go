// internal/payments/keeper_test.go
//
// 驗證預設付款管理器的狀態流轉：computing → finished → settling，
// 以及預算挑選、失敗丟棄與列表順序。
package payments

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pay(task, subtask string, value int64, payee string) PaymentInfo {
	return PaymentInfo{TaskID: task, SubtaskID: subtask, Value: value, Account: AccountInfo{KeyID: payee}}
}

func TestNoReadyTask(t *testing.T) {
	k := NewKeeper("me")
	task, list := k.GetNewPaymentsTask(1000)
	assert.Nil(t, task)
	assert.Nil(t, list)

	// 計算中的任務不可結算
	require.NoError(t, k.FinishedSubtasks(pay("t1", "s1", 10, "a")))
	task, list = k.GetNewPaymentsTask(1000)
	assert.Nil(t, task)
	assert.Nil(t, list)
}

func TestTaskLifecycle(t *testing.T) {
	k := NewKeeper("me")
	assert.Equal(t, "me", k.NodeID())

	require.NoError(t, k.FinishedSubtasks(pay("t1", "s1", 10, "a")))
	require.NoError(t, k.FinishedSubtasks(pay("t1", "s2", 15, "b")))
	k.TaskFinished("t1")

	task, list := k.GetNewPaymentsTask(100)
	require.NotNil(t, task)
	assert.Equal(t, Task{TaskID: "t1", Value: 25}, *task)
	assert.Equal(t, []PaymentInfo{pay("t1", "s1", 10, "a"), pay("t1", "s2", 15, "b")}, list)

	// 已交出的任務不會再次出現
	task, _ = k.GetNewPaymentsTask(100)
	assert.Nil(t, task)

	for _, r := range k.ListAllPayments() {
		assert.Equal(t, StateSettling, r.State)
	}

	// settling 後不再接受新的子任務
	assert.ErrorIs(t, k.FinishedSubtasks(pay("t1", "s3", 1, "c")), ErrTaskSettling)
}

func TestDuplicateSubtask(t *testing.T) {
	k := NewKeeper("me")
	require.NoError(t, k.FinishedSubtasks(pay("t1", "s1", 10, "a")))
	assert.ErrorIs(t, k.FinishedSubtasks(pay("t1", "s1", 10, "a")), ErrDuplicateSubtask)
}

func TestValueOverflow(t *testing.T) {
	k := NewKeeper("me")
	require.NoError(t, k.FinishedSubtasks(pay("t1", "s1", math.MaxInt64-5, "a")))
	assert.ErrorIs(t, k.FinishedSubtasks(pay("t1", "s2", 6, "a")), ErrValueOverflow)
	require.NoError(t, k.FinishedSubtasks(pay("t1", "s3", 5, "a")))

	k.TaskFinished("t1")
	task, list := k.GetNewPaymentsTask(math.MaxInt64)
	require.NotNil(t, task)
	assert.Equal(t, int64(math.MaxInt64), task.Value)
	assert.Len(t, list, 2)
}

func TestRequeue(t *testing.T) {
	k := NewKeeper("me")
	require.NoError(t, k.FinishedSubtasks(pay("t1", "s1", 10, "a")))
	require.NoError(t, k.FinishedSubtasks(pay("t2", "s1", 10, "a")))
	k.TaskFinished("t1")
	k.TaskFinished("t2")

	task, _ := k.GetNewPaymentsTask(100)
	require.NotNil(t, task)
	assert.Equal(t, "t1", task.TaskID)

	// 退回後排在佇列最前端，且可再接受子任務
	k.Requeue("t1")
	require.NoError(t, k.FinishedSubtasks(pay("t1", "s2", 5, "b")))
	task, list := k.GetNewPaymentsTask(100)
	require.NotNil(t, task)
	assert.Equal(t, Task{TaskID: "t1", Value: 15}, *task)
	assert.Len(t, list, 2)

	// 非 settling 狀態或未知任務不受影響
	k.Requeue("t2")
	k.Requeue("missing")
	task, _ = k.GetNewPaymentsTask(100)
	require.NotNil(t, task)
	assert.Equal(t, "t2", task.TaskID)
	task, _ = k.GetNewPaymentsTask(100)
	assert.Nil(t, task)
}

func TestTaskFinishedUnknownIsNoop(t *testing.T) {
	k := NewKeeper("me")
	k.TaskFinished("missing")
	task, _ := k.GetNewPaymentsTask(10)
	assert.Nil(t, task)
}

func TestBudgetSelection(t *testing.T) {
	t.Run("prefers first task that fits", func(t *testing.T) {
		k := NewKeeper("me")
		require.NoError(t, k.FinishedSubtasks(pay("big", "s1", 500, "a")))
		require.NoError(t, k.FinishedSubtasks(pay("small", "s1", 20, "b")))
		k.TaskFinished("big")
		k.TaskFinished("small")

		task, _ := k.GetNewPaymentsTask(100)
		require.NotNil(t, task)
		assert.Equal(t, "small", task.TaskID)
	})

	t.Run("falls back to oldest when nothing fits", func(t *testing.T) {
		k := NewKeeper("me")
		require.NoError(t, k.FinishedSubtasks(pay("t1", "s1", 500, "a")))
		require.NoError(t, k.FinishedSubtasks(pay("t2", "s1", 300, "b")))
		k.TaskFinished("t1")
		k.TaskFinished("t2")

		task, _ := k.GetNewPaymentsTask(100)
		require.NotNil(t, task)
		assert.Equal(t, "t1", task.TaskID)
		assert.Equal(t, int64(500), task.Value)
	})

	t.Run("value equal to budget fits", func(t *testing.T) {
		k := NewKeeper("me")
		require.NoError(t, k.FinishedSubtasks(pay("t1", "s1", 400, "a")))
		require.NoError(t, k.FinishedSubtasks(pay("t2", "s1", 100, "b")))
		k.TaskFinished("t1")
		k.TaskFinished("t2")

		task, _ := k.GetNewPaymentsTask(100)
		require.NotNil(t, task)
		assert.Equal(t, "t2", task.TaskID)
	})
}

func TestPaymentFailureDiscards(t *testing.T) {
	k := NewKeeper("me")
	require.NoError(t, k.FinishedSubtasks(pay("t1", "s1", 10, "a")))
	require.NoError(t, k.FinishedSubtasks(pay("t2", "s1", 20, "b")))
	k.TaskFinished("t1")
	k.TaskFinished("t2")

	k.PaymentFailure("t1")
	k.PaymentFailure("unknown")

	records := k.ListAllPayments()
	require.Len(t, records, 1)
	assert.Equal(t, "t2", records[0].TaskID)

	task, _ := k.GetNewPaymentsTask(100)
	require.NotNil(t, task)
	assert.Equal(t, "t2", task.TaskID)

	// 丟棄後同一任務 ID 可重新開始
	require.NoError(t, k.FinishedSubtasks(pay("t1", "s1", 10, "a")))
	assert.Len(t, k.ListAllPayments(), 2)
}

func TestListAllPaymentsOrder(t *testing.T) {
	k := NewKeeper("me")
	require.NoError(t, k.FinishedSubtasks(pay("t1", "s1", 1, "a")))
	require.NoError(t, k.FinishedSubtasks(pay("t2", "s1", 2, "b")))
	require.NoError(t, k.FinishedSubtasks(pay("t1", "s2", 3, "c")))
	k.TaskFinished("t2")

	records := k.ListAllPayments()
	require.Len(t, records, 3)
	assert.Equal(t, []string{"t1", "t1", "t2"}, []string{records[0].TaskID, records[1].TaskID, records[2].TaskID})
	assert.Equal(t, "c", records[1].Payee)
	assert.Equal(t, StateComputing, records[0].State)
	assert.Equal(t, StateFinished, records[2].State)
	for _, r := range records {
		assert.NotEmpty(t, r.ID)
		assert.False(t, r.CreatedAt.IsZero())
	}
}

func TestConcurrentSubtasks(t *testing.T) {
	k := NewKeeper("me")
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			assert.NoError(t, k.FinishedSubtasks(pay("t1", fmt.Sprintf("s%d", i), 1, "a")))
		}()
	}
	wg.Wait()
	k.TaskFinished("t1")

	task, list := k.GetNewPaymentsTask(n)
	require.NotNil(t, task)
	assert.Equal(t, int64(n), task.Value)
	assert.Len(t, list, n)
}
