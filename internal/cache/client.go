// Package cache stores finished analyses in Redis, keyed by the SHA-256 of
// the uploaded image, so a repeated upload skips both detectors.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

type Client struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewClient(ctx context.Context, addr, password string, db int, ttl time.Duration, logger *zap.SugaredLogger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Infof("Connected to Redis: %s", addr)

	return &Client{rdb: rdb, ttl: ttl, logger: logger}, nil
}

// Key returns the redis key holding the analysis for an image hash.
func Key(imageHash string) string {
	return fmt.Sprintf("analysis:image:%s", imageHash)
}

// GetAnalysis returns the cached analysis for imageHash, or ok=false on a miss.
func (c *Client) GetAnalysis(ctx context.Context, imageHash string) (*models.Analysis, bool, error) {
	data, err := c.rdb.Get(ctx, Key(imageHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached analysis: %w", err)
	}

	var analysis models.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the next save.
		c.logger.Warnw("Discarding unreadable cache entry", "key", Key(imageHash), "error", err)
		return nil, false, nil
	}

	return &analysis, true, nil
}

func (c *Client) SetAnalysis(ctx context.Context, imageHash string, analysis *models.Analysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	if err := c.rdb.Set(ctx, Key(imageHash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache analysis: %w", err)
	}

	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) GetClient() *redis.Client {
	return c.rdb
}
