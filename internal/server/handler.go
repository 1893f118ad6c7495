// internal/server/handler.go
//
// Package server
// ─────────────────────────────────────────────
// 提供 HTTP 介面，作為 transaction 模組的應用層。
// 每個 handler 僅負責：
//  1. 接收與驗證 HTTP 請求
//  2. 呼叫 transaction.System 執行帳務邏輯
//  3. 回傳標準化 JSON 回應
//  4. 成功變更後發佈事件（payments.ready / rewards.received）
//
// 事件發佈失敗只記錄警告：帳務狀態已變更並寫回，不因通知失敗而回滾。
package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"transactions/internal/events"
	"transactions/internal/payments"
	"transactions/internal/transaction"
)

// Server 為 HTTP 層核心結構：
// - System：注入帳務核心。
// - publisher：事件出口，未設定時為 NopPublisher。
type Server struct {
	System    *transaction.System
	publisher events.Publisher
	log       *zap.Logger
}

// NewServer 建立新的 HTTP 伺服器；pub 與 log 可為 nil。
func NewServer(sys *transaction.System, pub events.Publisher, log *zap.Logger) *Server {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{System: sys, publisher: pub, log: log}
}

// health 提供健康檢查端點：GET /health。
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// balance 回傳目前預算：GET /balance。
func (s *Server) balance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"node_id": s.System.NodeID(), "budget": s.System.Budget()})
}

// price 試算價格：GET /price?mod=0.05。
func (s *Server) price(c *gin.Context) {
	mod, err := strconv.ParseFloat(c.Query("mod"), 64)
	if err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	price, err := s.System.CountPrice(mod)
	if err != nil {
		writeDomainErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"price_mod": mod, "price": price})
}

// reward 記錄收到的報酬：POST /rewards  → JSON {task_id, node_id, reward}
func (s *Server) reward(c *gin.Context) {
	var req struct {
		TaskID string `json:"task_id" binding:"required"`
		NodeID string `json:"node_id" binding:"required"`
		Reward int64  `json:"reward" binding:"gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	budget, err := s.System.GetReward(c.Request.Context(), req.TaskID, req.NodeID, req.Reward)
	if err != nil {
		writeDomainErr(c, err)
		return
	}
	s.publish(c, events.SubjectRewardsReceived, events.RewardReceived{
		NodeID: s.System.NodeID(),
		TaskID: req.TaskID,
		From:   req.NodeID,
		Reward: req.Reward,
		Budget: budget,
	})
	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// addPayment 登記子任務應付款：POST /payments
func (s *Server) addPayment(c *gin.Context) {
	var req struct {
		TaskID    string               `json:"task_id" binding:"required"`
		SubtaskID string               `json:"subtask_id" binding:"required"`
		PriceMod  float64              `json:"price_mod" binding:"gte=0"`
		Account   payments.AccountInfo `json:"account"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	price, err := s.System.CountPrice(req.PriceMod)
	if err != nil {
		writeDomainErr(c, err)
		return
	}
	if err := s.System.AddPaymentInfo(req.TaskID, req.SubtaskID, req.PriceMod, req.Account); err != nil {
		writeDomainErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"task_id":    req.TaskID,
		"subtask_id": req.SubtaskID,
		"price":      price,
	})
}

// listPayments：GET /payments
func (s *Server) listPayments(c *gin.Context) {
	c.JSON(http.StatusOK, s.System.PaymentsList())
}

// nextPayments 取出下一個可結算任務：POST /payments/next
// 沒有可結算任務（或因預算不足被取消）時回傳 204。
func (s *Server) nextPayments(c *gin.Context) {
	st, err := s.System.SettleNext(c.Request.Context())
	if err != nil {
		writeDomainErr(c, err)
		return
	}
	if st.TaskID == "" {
		c.Status(http.StatusNoContent)
		return
	}
	s.publish(c, events.SubjectPaymentsReady, events.PaymentsReady{
		NodeID:   s.System.NodeID(),
		TaskID:   st.TaskID,
		Payments: st.Payments,
		Budget:   st.Budget,
	})
	c.JSON(http.StatusOK, gin.H{"task_id": st.TaskID, "payments": st.Payments, "budget": st.Budget})
}

// taskFinished：POST /tasks/:id/finished
func (s *Server) taskFinished(c *gin.Context) {
	taskID := c.Param("id")
	s.System.TaskFinished(taskID)
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID})
}

type priceRequest struct {
	Price int64 `json:"price" binding:"gte=0"`
}

// taskPaid：POST /tasks/:id/paid → JSON {price}
func (s *Server) taskPaid(c *gin.Context) {
	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	if err := s.System.TaskRewardPaid(c.Request.Context(), c.Param("id"), req.Price); err != nil {
		writeDomainErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": s.System.Budget()})
}

// taskFailed：POST /tasks/:id/failed → JSON {price}
func (s *Server) taskFailed(c *gin.Context) {
	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	if err := s.System.TaskRewardPaymentFailure(c.Request.Context(), c.Param("id"), req.Price); err != nil {
		writeDomainErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": s.System.Budget()})
}

// listIncomes：GET /incomes
func (s *Server) listIncomes(c *gin.Context) {
	c.JSON(http.StatusOK, s.System.IncomesList())
}

// waitingIncome：POST /incomes/:id/waiting → JSON {node_id}
func (s *Server) waitingIncome(c *gin.Context) {
	var req struct {
		NodeID string `json:"node_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusCreated, s.System.AddToWaitingPayments(c.Param("id"), req.NodeID))
}

// timeoutIncome：POST /incomes/:id/timeout
func (s *Server) timeoutIncome(c *gin.Context) {
	rec, err := s.System.AddToTimeoutedPayments(c.Param("id"))
	if err != nil {
		writeDomainErr(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) publish(c *gin.Context, subject string, data interface{}) {
	if err := s.publisher.Publish(c.Request.Context(), subject, data); err != nil {
		s.log.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
