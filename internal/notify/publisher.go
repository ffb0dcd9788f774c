package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher appends messages to a Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(client *redis.Client, stream string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":    string(msg.Type),
			"user_id": msg.UserID.String(),
			"payload": payload,
		},
	}

	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("adding notification to stream %s: %w", p.stream, err)
	}

	return nil
}

// LogPublisher writes messages to the log. Used when Redis is disabled.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, msg Message) error {
	slog.Info("notification",
		"type", msg.Type,
		"user_id", msg.UserID,
		"event_id", msg.EventID,
		"expense_id", msg.ExpenseID,
		"debt_id", msg.DebtID,
		"amount", msg.Amount.StringFixed(2),
	)

	return nil
}
