// internal/transaction/system.go

// Package transaction 為節點的帳務核心：維護可用預算 (budget)、
// 將子任務的應付款交給付款管理器、記錄收到的報酬，並把餘額寫回儲存層。
//
// budget 為儲存層餘額紀錄的記憶體鏡像。預設每次變更都立即寫回；
// Config.DeferredPersistence 可改回「付款失敗與結算只改記憶體、
// 由下一次寫入一併保存」的行為。寫回失敗時記憶體可能暫時領先儲存層，
// 由下一次寫入或 Flush 補齊。
// 單一互斥鎖 mu 序列化所有預算的讀取、比較、變更與寫回，避免超額支付。
package transaction

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transactions/internal/incomes"
	"transactions/internal/payments"
)

// Config 為建構時注入、之後不可變的設定。
type Config struct {
	// PriceBase 為價格基數；子任務價格 = round(priceMod * PriceBase)。
	PriceBase float64
	// DeferredPersistence 為 true 時，TaskRewardPaymentFailure 與
	// GetNewPaymentsTasks 只更新記憶體中的 budget。
	DeferredPersistence bool
}

// Option 調整 System 的協作者。
type Option func(*System)

// WithPaymentsKeeper 替換預設的付款管理器。
func WithPaymentsKeeper(k PaymentsKeeper) Option {
	return func(s *System) { s.payments = k }
}

// WithIncomesKeeper 替換預設的收入管理器。
func WithIncomesKeeper(k IncomesKeeper) Option {
	return func(s *System) { s.incomes = k }
}

// WithLogger 設定 logger；預設不輸出。
func WithLogger(l *zap.Logger) Option {
	return func(s *System) { s.log = l }
}

// WithClock 替換寫入 modified_date 時使用的時鐘。
func WithClock(now func() time.Time) Option {
	return func(s *System) { s.now = now }
}

// System 為單一節點的交易系統。
// - nodeID、priceBase 於建構後不可變。
// - budget 僅在持有 mu 時讀寫。
type System struct {
	mu        sync.Mutex
	nodeID    string
	budget    int64
	priceBase decimal.Decimal
	deferred  bool

	store    BalanceStore
	payments PaymentsKeeper
	incomes  IncomesKeeper
	log      *zap.Logger
	now      func() time.Time
}

// New 載入 nodeID 的餘額紀錄並建立交易系統。
// 餘額紀錄必須事先佈建；不存在時回傳包裝後的 storage.ErrRecordNotFound。
func New(ctx context.Context, nodeID string, store BalanceStore, cfg Config, opts ...Option) (*System, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if cfg.PriceBase <= 0 {
		return nil, ErrInvalidPriceBase
	}
	s := &System{
		nodeID:    nodeID,
		priceBase: decimal.NewFromFloat(cfg.PriceBase),
		deferred:  cfg.DeferredPersistence,
		store:     store,
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.payments == nil {
		s.payments = payments.NewKeeper(nodeID)
	}
	if s.incomes == nil {
		s.incomes = incomes.NewKeeper(nodeID)
	}

	rec, err := store.Get(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("load balance for node %s: %w", nodeID, err)
	}
	s.budget = rec.Value
	s.log = s.log.With(zap.String("node_id", nodeID))
	return s, nil
}

// NodeID 回傳此系統所屬節點。
func (s *System) NodeID() string { return s.nodeID }

// Budget 回傳目前記憶體中的預算。
func (s *System) Budget() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

// TaskRewardPaid 通知某筆對外付款已確認送出，將目前的 budget 寫回儲存層。
// price 不參與任何計算：結算時已扣除，這裡只負責保存。
func (s *System) TaskRewardPaid(ctx context.Context, taskID string, price int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Debug("task reward paid", zap.String("task_id", taskID), zap.Int64("price", price))
	return s.persist(ctx)
}

// TaskRewardPaymentFailure 通知某筆對外付款送出失敗：price 退回 budget，
// 並要求付款管理器丟棄該任務的付款義務。兩者皆無條件執行；
// 寫回失敗只回傳錯誤，退款保留在記憶體中。
// 退款會使 budget 超出 int64 時不入帳，回傳 ErrBudgetOverflow。
func (s *System) TaskRewardPaymentFailure(ctx context.Context, taskID string, price int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payments.PaymentFailure(taskID)
	if err := s.credit(price); err != nil {
		return err
	}
	if s.deferred {
		return nil
	}
	return s.persist(ctx)
}

// GetReward 記錄從 nodeID 收到 taskID 的報酬：增加 budget、寫回儲存層、
// 再交給收入管理器，並回傳入帳後的 budget。
// 寫回失敗時 budget 還原，收入不會被記錄。
func (s *System) GetReward(ctx context.Context, taskID, nodeID string, reward int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.credit(reward); err != nil {
		return s.budget, err
	}
	if err := s.persist(ctx); err != nil {
		s.budget -= reward
		return s.budget, err
	}
	s.incomes.AddIncome(taskID, nodeID, reward)
	return s.budget, nil
}

// AddPaymentInfo 計算子任務價格並將新的付款義務交給付款管理器。
// 價格無法計算或為負時回傳錯誤，付款管理器不會收到任何資料。
func (s *System) AddPaymentInfo(taskID, subtaskID string, priceMod float64, account payments.AccountInfo) error {
	price, err := s.CountPrice(priceMod)
	if err != nil {
		return err
	}
	if price < 0 {
		return fmt.Errorf("%w: negative price %d", ErrPriceOutOfRange, price)
	}
	return s.payments.FinishedSubtasks(payments.PaymentInfo{
		TaskID:    taskID,
		SubtaskID: subtaskID,
		Value:     price,
		Account:   account,
	})
}

// TaskFinished 通知付款管理器該任務已完成，其付款可進入結算。
func (s *System) TaskFinished(taskID string) {
	s.payments.TaskFinished(taskID)
}

// Settlement 為一次結算的結果；TaskID 為空代表沒有任務被結算。
// Budget 為扣款後（或未扣款時）的 budget，與結算在同一臨界區內取得。
type Settlement struct {
	TaskID   string
	Payments []payments.PaymentInfo
	Budget   int64
}

// GetNewPaymentsTasks 取得下一個可結算的任務。
//   - 沒有待結算任務：回傳 ("", nil, nil)。
//   - 任務總額 <= budget：扣除總額，回傳任務 ID 與付款清單。
//   - 任務總額 > budget：取消該任務的付款義務、記錄警告，回傳 ("", nil, nil)。
//
// 扣除後寫回失敗時，扣款還原、任務退回付款管理器的待結算佇列，錯誤回傳給呼叫端。
func (s *System) GetNewPaymentsTasks(ctx context.Context) (string, []payments.PaymentInfo, error) {
	st, err := s.SettleNext(ctx)
	if err != nil {
		return "", nil, err
	}
	return st.TaskID, st.Payments, nil
}

// SettleNext 與 GetNewPaymentsTasks 相同，另回傳結算當下的 budget。
func (s *System) SettleNext(ctx context.Context) (Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, list := s.payments.GetNewPaymentsTask(s.budget)
	if task == nil {
		return Settlement{Budget: s.budget}, nil
	}
	if task.Value > s.budget {
		s.payments.PaymentFailure(task.TaskID)
		s.log.Warn("can't pay for the task, not enough money",
			zap.String("task_id", task.TaskID),
			zap.Int64("value", task.Value),
			zap.Int64("budget", s.budget))
		return Settlement{Budget: s.budget}, nil
	}

	s.budget -= task.Value
	if !s.deferred {
		if err := s.persist(ctx); err != nil {
			s.budget += task.Value
			s.payments.Requeue(task.TaskID)
			s.log.Error("failed to persist settlement, task requeued",
				zap.String("task_id", task.TaskID), zap.Error(err))
			return Settlement{Budget: s.budget}, err
		}
	}
	return Settlement{TaskID: task.TaskID, Payments: list, Budget: s.budget}, nil
}

var (
	maxPrice = decimal.NewFromInt(math.MaxInt64)
	minPrice = decimal.NewFromInt(math.MinInt64)
)

// CountPrice 回傳 round(priceMod * priceBase)，以十進位運算避免浮點誤差，
// 0.5 時遠離零進位。不讀寫任何可變狀態。
// priceMod 非有限數時回傳 ErrInvalidPriceMod；結果超出 int64 時回傳 ErrPriceOutOfRange。
func (s *System) CountPrice(priceMod float64) (int64, error) {
	if math.IsNaN(priceMod) || math.IsInf(priceMod, 0) {
		return 0, ErrInvalidPriceMod
	}
	p := decimal.NewFromFloat(priceMod).Mul(s.priceBase).Round(0)
	if p.GreaterThan(maxPrice) || p.LessThan(minPrice) {
		return 0, fmt.Errorf("%w: %s", ErrPriceOutOfRange, p.String())
	}
	return p.IntPart(), nil
}

// PaymentsList 回傳所有規劃中與已結算的付款。
func (s *System) PaymentsList() []payments.Record {
	return s.payments.ListAllPayments()
}

// IncomesList 回傳所有預期與已收到的收入。
func (s *System) IncomesList() []incomes.Record {
	return s.incomes.ListAllIncomes()
}

// AddToWaitingPayments 登記正在等待 nodeID 為 taskID 付款。
func (s *System) AddToWaitingPayments(taskID, nodeID string) incomes.Record {
	return s.incomes.AddWaitingPayment(taskID, nodeID)
}

// AddToTimeoutedPayments 將 taskID 的等待付款標記為逾時。
func (s *System) AddToTimeoutedPayments(taskID string) (incomes.Record, error) {
	return s.incomes.AddTimeoutedPayment(taskID)
}

// Flush 將目前的 budget 寫回儲存層；延遲寫入模式下於關閉前呼叫。
func (s *System) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(ctx)
}

// credit 需在持有 mu 時呼叫；正值入帳時檢查溢位。
func (s *System) credit(amount int64) error {
	if amount > 0 && s.budget > math.MaxInt64-amount {
		return ErrBudgetOverflow
	}
	s.budget += amount
	return nil
}

// persist 需在持有 mu 時呼叫。
func (s *System) persist(ctx context.Context) error {
	if err := s.store.Update(ctx, s.nodeID, s.budget, s.now()); err != nil {
		return fmt.Errorf("persist balance for node %s: %w", s.nodeID, err)
	}
	return nil
}
