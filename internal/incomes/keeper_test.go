// internal/incomes/keeper_test.go
//
// 測試目標：收入紀錄的狀態轉換（waiting / timeout / finished）與排序。
package incomes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(k *Keeper) *time.Time {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return now }
	return &now
}

func TestWaitingThenIncome(t *testing.T) {
	k := NewKeeper("me")
	assert.Equal(t, "me", k.NodeID())
	fixedClock(k)

	rec := k.AddWaitingPayment("t1", "n1")
	assert.Equal(t, StateWaiting, rec.State)
	assert.Equal(t, "n1", rec.NodeID)
	assert.NotEmpty(t, rec.ID)

	k.AddIncome("t1", "n1", 30)

	all := k.ListAllIncomes()
	require.Len(t, all, 1)
	assert.Equal(t, StateFinished, all[0].State)
	assert.Equal(t, int64(30), all[0].Value)
	assert.Equal(t, rec.ID, all[0].ID)
}

func TestIncomeWithoutWaiting(t *testing.T) {
	k := NewKeeper("me")
	k.AddIncome("t1", "n1", 30)

	all := k.ListAllIncomes()
	require.Len(t, all, 1)
	assert.Equal(t, Record{
		ID:        all[0].ID,
		TaskID:    "t1",
		NodeID:    "n1",
		Value:     30,
		State:     StateFinished,
		CreatedAt: all[0].CreatedAt,
		UpdatedAt: all[0].UpdatedAt,
	}, all[0])
}

func TestTimeout(t *testing.T) {
	t.Run("waiting becomes timeout", func(t *testing.T) {
		k := NewKeeper("me")
		now := fixedClock(k)
		k.AddWaitingPayment("t1", "n1")

		*now = now.Add(time.Minute)
		rec, err := k.AddTimeoutedPayment("t1")
		require.NoError(t, err)
		assert.Equal(t, StateTimeout, rec.State)
		assert.True(t, rec.UpdatedAt.After(rec.CreatedAt))
	})

	t.Run("unknown task", func(t *testing.T) {
		k := NewKeeper("me")
		_, err := k.AddTimeoutedPayment("missing")
		assert.ErrorIs(t, err, ErrUnknownTask)
	})

	t.Run("already paid", func(t *testing.T) {
		k := NewKeeper("me")
		k.AddIncome("t1", "n1", 5)
		rec, err := k.AddTimeoutedPayment("t1")
		assert.ErrorIs(t, err, ErrAlreadyPaid)
		assert.Equal(t, StateFinished, rec.State)
	})

	t.Run("late payment after timeout", func(t *testing.T) {
		k := NewKeeper("me")
		k.AddWaitingPayment("t1", "n1")
		_, err := k.AddTimeoutedPayment("t1")
		require.NoError(t, err)

		k.AddIncome("t1", "n1", 7)
		all := k.ListAllIncomes()
		require.Len(t, all, 1)
		assert.Equal(t, StateFinished, all[0].State)
	})
}

func TestListOrder(t *testing.T) {
	k := NewKeeper("me")
	k.AddWaitingPayment("t2", "n2")
	k.AddIncome("t1", "n1", 1)
	k.AddWaitingPayment("t3", "n3")

	all := k.ListAllIncomes()
	require.Len(t, all, 3)
	assert.Equal(t, "t2", all[0].TaskID)
	assert.Equal(t, "t1", all[1].TaskID)
	assert.Equal(t, "t3", all[2].TaskID)
}
