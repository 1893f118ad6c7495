// internal/storage/redis.go
//
// Redis 後端：每個節點一個 hash（bank:<node_id>），欄位 val 與 modified_date。
// 「僅在存在時更新」與「僅在不存在時建立」以 Lua script 在伺服器端原子完成。
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "bank:"

var updateIfExists = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'val', ARGV[1], 'modified_date', ARGV[2])
return 1
`)

var createIfAbsent = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'val', ARGV[1], 'modified_date', ARGV[2])
return 1
`)

// RedisStore 以 go-redis 實作 Store。
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 包裝既有 client。
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// OpenRedis 解析 redis:// URL 並確認連線。
func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStore(client), nil
}

func balanceKey(nodeID string) string {
	return redisKeyPrefix + nodeID
}

// Get 讀取 bank:<node_id> hash。
func (s *RedisStore) Get(ctx context.Context, nodeID string) (BalanceRecord, error) {
	fields, err := s.client.HGetAll(ctx, balanceKey(nodeID)).Result()
	if err != nil {
		return BalanceRecord{}, fmt.Errorf("failed to get balance: %w", err)
	}
	if len(fields) == 0 {
		return BalanceRecord{}, ErrRecordNotFound
	}
	return decodeBalance(nodeID, fields)
}

// Update 以 updateIfExists script 原子更新；key 不存在時回傳 ErrRecordNotFound。
func (s *RedisStore) Update(ctx context.Context, nodeID string, value int64, modified time.Time) error {
	n, err := updateIfExists.Run(ctx, s.client, []string{balanceKey(nodeID)},
		value, modified.UTC().Format(time.RFC3339Nano)).Int()
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Create 以 createIfAbsent script 原子建立；key 已存在時回傳 ErrRecordExists。
func (s *RedisStore) Create(ctx context.Context, nodeID string, value int64) error {
	n, err := createIfAbsent.Run(ctx, s.client, []string{balanceKey(nodeID)},
		value, time.Now().UTC().Format(time.RFC3339Nano)).Int()
	if err != nil {
		return fmt.Errorf("failed to create balance: %w", err)
	}
	if n == 0 {
		return ErrRecordExists
	}
	return nil
}

// Close 關閉 Redis client。
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeBalance(nodeID string, fields map[string]string) (BalanceRecord, error) {
	val, ok := fields["val"]
	if !ok {
		return BalanceRecord{}, errors.New("balance hash missing val field")
	}
	v, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return BalanceRecord{}, fmt.Errorf("invalid balance value %q: %w", val, err)
	}
	rec := BalanceRecord{NodeID: nodeID, Value: v}
	if ts := fields["modified_date"]; ts != "" {
		rec.ModifiedDate, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return BalanceRecord{}, fmt.Errorf("invalid modified_date %q: %w", ts, err)
		}
	}
	return rec, nil
}
