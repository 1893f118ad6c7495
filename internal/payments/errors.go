// internal/payments/errors.go

package payments

import "errors"

var (
	// ErrTaskSettling 代表任務已交出結算，不再接受新的子任務付款。
	ErrTaskSettling = errors.New("task payments already settling")

	// ErrDuplicateSubtask 代表同一子任務已登記過付款。
	ErrDuplicateSubtask = errors.New("subtask payment already recorded")

	// ErrValueOverflow 代表加入此筆付款後任務總額將超出 int64。
	ErrValueOverflow = errors.New("task payments value would overflow")
)
