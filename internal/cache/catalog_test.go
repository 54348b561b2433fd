package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/ticket-booking/internal/apperror"
	"github.com/mmeshcher/ticket-booking/internal/model"
)

type stubSource struct {
	calls int
	date  *model.EventDate
	err   error
}

func (s *stubSource) GetEventDate(ctx context.Context, eventDateID, eventID string) (*model.EventDate, error) {
	s.calls++
	return s.date, s.err
}

func TestCatalogCache_NoClientPassThrough(t *testing.T) {
	src := &stubSource{date: &model.EventDate{ID: "d1", Event: model.Event{ID: "e1"}}}
	c := NewCatalogCache(nil, src, time.Minute, nil)

	for range 2 {
		d, err := c.GetEventDate(context.Background(), "d1", "e1")
		require.NoError(t, err)
		assert.Equal(t, "d1", d.ID)
	}
	assert.Equal(t, 2, src.calls)
}

func TestCatalogCache_SourceErrorPropagates(t *testing.T) {
	src := &stubSource{err: apperror.ErrEventDateNotFound}
	c := NewCatalogCache(nil, src, time.Minute, nil)

	_, err := c.GetEventDate(context.Background(), "d1", "e1")
	assert.True(t, errors.Is(err, apperror.ErrEventDateNotFound))
}

func TestCatalogCache_UnavailableRedisFallsBack(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	src := &stubSource{date: &model.EventDate{ID: "d1", Event: model.Event{ID: "e1"}}}
	c := NewCatalogCache(client, src, time.Minute, nil)

	d, err := c.GetEventDate(context.Background(), "d1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "d1", d.ID)
	assert.Equal(t, 1, src.calls)
}

func TestNewRedisClient_EmptyAddrDisablesCache(t *testing.T) {
	client, err := NewRedisClient(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestEventDateKey(t *testing.T) {
	assert.Equal(t, "booking:event_date:e1:d1", eventDateKey("e1", "d1"))
}
