package redisdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ParseURL разбирает REDIS_URL. Адрес в docker-формате host:port принимается без схемы.
func ParseURL(rawURL string) (*redis.Options, error) {
	if strings.Count(rawURL, ":") == 1 && !strings.Contains(rawURL, "@") && !strings.Contains(rawURL, "//") {
		return &redis.Options{Addr: rawURL}, nil
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redis: некорректный REDIS_URL: %w", err)
	}
	return opts, nil
}

// New создаёт клиент и проверяет соединение.
func New(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: не удалось подключиться: %w", err)
	}

	return client, nil
}
