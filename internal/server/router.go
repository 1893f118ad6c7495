// internal/server/router.go
//
// 本檔負責 HTTP 路由註冊。
//   - handler.go 定義「如何處理請求」
//   - router.go 定義「請求如何被導向」
//   - main.go 組裝整體應用（注入 System、Store、Publisher）
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Router 建立並回傳整個 HTTP 處理鏈。
// 所有端點同時掛在根路徑與 /api/v1 下。
func (s *Server) Router() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	s.register(r)
	s.register(r.Group("/api/v1"))
	return r
}

func (s *Server) register(g gin.IRoutes) {
	g.GET("/health", s.health)
	g.GET("/balance", s.balance)
	g.GET("/price", s.price)

	// 收入：
	//   - POST /rewards
	//   - GET  /incomes
	//   - POST /incomes/:id/waiting
	//   - POST /incomes/:id/timeout
	g.POST("/rewards", s.reward)
	g.GET("/incomes", s.listIncomes)
	g.POST("/incomes/:id/waiting", s.waitingIncome)
	g.POST("/incomes/:id/timeout", s.timeoutIncome)

	// 付款：
	//   - POST /payments
	//   - GET  /payments
	//   - POST /payments/next
	g.POST("/payments", s.addPayment)
	g.GET("/payments", s.listPayments)
	g.POST("/payments/next", s.nextPayments)

	// 任務生命週期：
	//   - POST /tasks/:id/finished
	//   - POST /tasks/:id/paid
	//   - POST /tasks/:id/failed
	g.POST("/tasks/:id/finished", s.taskFinished)
	g.POST("/tasks/:id/paid", s.taskPaid)
	g.POST("/tasks/:id/failed", s.taskFailed)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
