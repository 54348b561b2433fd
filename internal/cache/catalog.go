// Package cache содержит read-through кэш каталога поверх Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mmeshcher/ticket-booking/internal/model"
)

const keyPrefix = "booking:event_date:"

// EventDateSource — источник дат мероприятий, который кэшируется.
type EventDateSource interface {
	GetEventDate(ctx context.Context, eventDateID, eventID string) (*model.EventDate, error)
}

// CatalogCache кэширует даты мероприятий. Даты не изменяются процессом бронирования,
// поэтому устаревание ограничено только TTL.
// Без клиента Redis все запросы проходят напрямую в источник.
type CatalogCache struct {
	client redis.Cmdable
	source EventDateSource
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisClient подключается к Redis по адресу addr. Пустой адрес отключает кэш.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewCatalogCache создаёт кэш. client может быть nil.
func NewCatalogCache(client redis.Cmdable, source EventDateSource, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogCache{client: client, source: source, ttl: ttl, logger: logger}
}

// GetEventDate возвращает дату мероприятия из кэша или из источника.
// Ошибки Redis не прерывают запрос, а только логируются.
func (c *CatalogCache) GetEventDate(ctx context.Context, eventDateID, eventID string) (*model.EventDate, error) {
	if c.client == nil || c.ttl <= 0 {
		return c.source.GetEventDate(ctx, eventDateID, eventID)
	}

	key := eventDateKey(eventID, eventDateID)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var d model.EventDate
		if err := json.Unmarshal(raw, &d); err == nil {
			return &d, nil
		}
		c.logger.Warn("drop malformed cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}

	d, err := c.source.GetEventDate(ctx, eventDateID, eventID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(d); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}

	return d, nil
}

func eventDateKey(eventID, eventDateID string) string {
	return keyPrefix + eventID + ":" + eventDateID
}
