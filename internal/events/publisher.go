// internal/events/publisher.go

// Package events 將帳務事件發佈到訊息匯流排，供付款送出端與監控服務訂閱。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"transactions/internal/payments"
)

// 事件主題。
const (
	SubjectPaymentsReady   = "payments.ready"
	SubjectRewardsReceived = "rewards.received"
)

// PaymentsReady 於某任務的付款完成結算、等待送出時發佈。
type PaymentsReady struct {
	NodeID   string                 `json:"node_id"`
	TaskID   string                 `json:"task_id"`
	Payments []payments.PaymentInfo `json:"payments"`
	Budget   int64                  `json:"budget"`
}

// RewardReceived 於收到報酬並寫回餘額後發佈。
type RewardReceived struct {
	NodeID string `json:"node_id"`
	TaskID string `json:"task_id"`
	From   string `json:"from"`
	Reward int64  `json:"reward"`
	Budget int64  `json:"budget"`
}

// Publisher 發佈事件。
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close()
}

// Options 為 NATS 連線設定。
type Options struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int
	Timeout       time.Duration
}

// NATSPublisher 以 JSON 將事件發佈到 NATS。
type NATSPublisher struct {
	conn *nats.Conn
}

// Connect 建立 NATS 連線。
func Connect(opts Options) (*NATSPublisher, error) {
	conn, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.Timeout(opts.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

// Publish 將 data 序列化為 JSON 後發佈到 subject；ctx 已結束時不發佈。
func (p *NATSPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// Close 送出緩衝中的訊息後關閉連線。
func (p *NATSPublisher) Close() {
	_ = p.conn.Drain()
}

// NopPublisher 丟棄所有事件；未設定 NATS_URL 時使用。
type NopPublisher struct{}

// Publish 不做任何事。
func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }

// Close 不做任何事。
func (NopPublisher) Close() {}
