// internal/transaction/errors.go
//
// 建構期的設定錯誤與價格、預算的範圍錯誤。執行期的儲存錯誤一律以 %w 包裝後原樣回傳，
// 呼叫端可用 errors.Is(err, storage.ErrRecordNotFound) 等方式判斷。

package transaction

import "errors"

var (
	// ErrNilStore 代表未提供餘額儲存後端。
	ErrNilStore = errors.New("balance store is required")

	// ErrInvalidPriceBase 代表 price base 非正數。
	ErrInvalidPriceBase = errors.New("price base must be > 0")

	// ErrInvalidPriceMod 代表 price modifier 為 NaN 或無限大。
	ErrInvalidPriceMod = errors.New("price modifier must be a finite number")

	// ErrPriceOutOfRange 代表計算出的價格為負或超出 int64。
	ErrPriceOutOfRange = errors.New("price out of range")

	// ErrBudgetOverflow 代表入帳後預算將超出 int64。
	ErrBudgetOverflow = errors.New("budget would overflow")
)
