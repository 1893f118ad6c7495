// internal/incomes/errors.go

package incomes

import "errors"

var (
	// ErrUnknownTask 代表該任務沒有任何收入紀錄。
	ErrUnknownTask = errors.New("no income expected for task")

	// ErrAlreadyPaid 代表款項已收到，不能再標記為逾時。
	ErrAlreadyPaid = errors.New("income already received")
)
