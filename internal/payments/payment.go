// internal/payments/payment.go
//
// 本檔定義付款相關的值型別：PaymentInfo（單一子任務的應付款）、
// Task（某任務彙總後的應付總額）與 Record（列表查詢用的快照）。
package payments

import "time"

// AccountInfo 描述收款節點的帳務資訊。
type AccountInfo struct {
	KeyID    string `json:"key_id"`
	NodeName string `json:"node_name"`
	Addr     string `json:"addr"`
	Port     int    `json:"port"`
}

// PaymentInfo 為單一子任務的付款義務，建立後交由 Keeper 持有。
type PaymentInfo struct {
	TaskID    string      `json:"task_id"`
	SubtaskID string      `json:"subtask_id"`
	Value     int64       `json:"value"`
	Account   AccountInfo `json:"account"`
}

// Task 為一個任務的付款彙總；Value 為所有 PaymentInfo 價格總和。
type Task struct {
	TaskID string `json:"task_id"`
	Value  int64  `json:"value"`
}

// State 為付款義務所處的階段。
type State string

const (
	StateComputing State = "computing" // 子任務仍在回報
	StateFinished  State = "finished"  // 任務完成，等待結算
	StateSettling  State = "settling"  // 已交出結算，等待送出結果
)

// Record 為 ListAllPayments 回傳的單筆付款紀錄。
type Record struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	SubtaskID string    `json:"subtask_id"`
	Payee     string    `json:"payee"`
	Value     int64     `json:"value"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}
