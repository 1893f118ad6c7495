// internal/transaction/keepers.go
//
// 本檔定義 System 依賴的外部協作者介面（capability sets）。
// 預設實作分別為 payments.Keeper 與 incomes.Keeper，測試時可替換為 test double。

package transaction

import (
	"context"
	"time"

	"transactions/internal/incomes"
	"transactions/internal/payments"
	"transactions/internal/storage"
)

// PaymentsKeeper 追蹤對外付款義務，並決定哪個任務可以結算。
type PaymentsKeeper interface {
	PaymentFailure(taskID string)
	FinishedSubtasks(info payments.PaymentInfo) error
	TaskFinished(taskID string)
	GetNewPaymentsTask(budget int64) (*payments.Task, []payments.PaymentInfo)
	Requeue(taskID string)
	ListAllPayments() []payments.Record
}

// IncomesKeeper 追蹤預期與已收到的收入。
type IncomesKeeper interface {
	AddIncome(taskID, nodeID string, reward int64)
	ListAllIncomes() []incomes.Record
	AddWaitingPayment(taskID, nodeID string) incomes.Record
	AddTimeoutedPayment(taskID string) (incomes.Record, error)
}

// BalanceStore 為餘額紀錄的讀寫介面；storage 套件內的所有後端皆滿足此介面。
type BalanceStore interface {
	Get(ctx context.Context, nodeID string) (storage.BalanceRecord, error)
	Update(ctx context.Context, nodeID string, value int64, modified time.Time) error
}

var (
	_ PaymentsKeeper = (*payments.Keeper)(nil)
	_ IncomesKeeper  = (*incomes.Keeper)(nil)
	_ BalanceStore   = (storage.Store)(nil)
)
