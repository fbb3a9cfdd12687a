// Package stream publishes prediction output to a Redis stream.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"stationcast/internal/config"
	"stationcast/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultMaxLen is the approximate number of entries kept in the stream.
const DefaultMaxLen = 500

// Adder is the subset of the Redis client the publisher needs.
type Adder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

type Publisher struct {
	client Adder
	stream string
	maxLen int64
	logger *zap.Logger
}

func NewPublisher(client Adder, stream string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, stream: stream, maxLen: DefaultMaxLen, logger: logger}
}

// Dial connects to the configured Redis server.
func Dial(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Publish appends the serialized prediction to the stream and returns the
// entry id.
func (p *Publisher) Publish(ctx context.Context, pred *models.Prediction) (string, error) {
	data, err := json.Marshal(pred)
	if err != nil {
		return "", fmt.Errorf("failed to serialize prediction: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"ts":    strconv.FormatInt(pred.TS, 10),
			"runId": pred.ModelInfo.RunID,
			"data":  string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to redis stream %s: %w", p.stream, err)
	}

	p.logger.Info("Published prediction",
		zap.String("stream", p.stream),
		zap.String("id", id),
		zap.Int64("ts", pred.TS))
	return id, nil
}
