// internal/server/response.go
//
// 本檔負責統一錯誤回應格式與「領域錯誤 → HTTP 狀態碼」的對應。
// 所有錯誤皆輸出為 {"error": "..."}。
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"transactions/internal/incomes"
	"transactions/internal/payments"
	"transactions/internal/transaction"
)

// writeErr 以指定狀態碼輸出錯誤。
func writeErr(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

// writeDomainErr 依錯誤類別決定狀態碼：
//   - incomes.ErrUnknownTask                      → 404
//   - 價格無法計算或超出範圍                       → 400
//   - incomes.ErrAlreadyPaid / payments.Err*       → 409
//   - 其他（多為儲存層失敗）                       → 500
func writeDomainErr(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, transaction.ErrInvalidPriceMod),
		errors.Is(err, transaction.ErrPriceOutOfRange):
		code = http.StatusBadRequest
	case errors.Is(err, incomes.ErrUnknownTask):
		code = http.StatusNotFound
	case errors.Is(err, incomes.ErrAlreadyPaid),
		errors.Is(err, payments.ErrTaskSettling),
		errors.Is(err, payments.ErrDuplicateSubtask),
		errors.Is(err, payments.ErrValueOverflow),
		errors.Is(err, transaction.ErrBudgetOverflow):
		code = http.StatusConflict
	}
	writeErr(c, code, err)
}
