// Package events publishes inventory events to Redis pub/sub
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/nemonet1337/nexinventory/pkg/inventory"
)

// DefaultChannel is the pub/sub channel used when none is configured
const DefaultChannel = "nex.inventory.events"

// Event type names carried in the envelope
const (
	TypeStockChanged       = "stock_changed"
	TypeLowStockAlert      = "low_stock_alert"
	TypeOperationProcessed = "operation_processed"
)

// Envelope wraps every published event
// 発行されるイベントの共通形式
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RedisPublisher implements inventory.EventPublisher over Redis PUBLISH
// Redis PUBLISHによるEventPublisherの実装
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

var _ inventory.EventPublisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher on the given channel
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// PublishStockChanged publishes a stock change
func (p *RedisPublisher) PublishStockChanged(ctx context.Context, event inventory.StockChangedEvent) error {
	return p.publish(ctx, TypeStockChanged, event)
}

// PublishLowStockAlert publishes a low stock alert
func (p *RedisPublisher) PublishLowStockAlert(ctx context.Context, event inventory.LowStockAlertEvent) error {
	return p.publish(ctx, TypeLowStockAlert, event)
}

// PublishOperationProcessed publishes an operation completion
func (p *RedisPublisher) PublishOperationProcessed(ctx context.Context, event inventory.OperationProcessedEvent) error {
	return p.publish(ctx, TypeOperationProcessed, event)
}

func (p *RedisPublisher) publish(ctx context.Context, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗しました: %w", err)
	}
	msg, err := json.Marshal(Envelope{Type: eventType, Payload: raw})
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗しました: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
		return fmt.Errorf("イベント発行に失敗しました (%s): %w", eventType, err)
	}
	return nil
}
