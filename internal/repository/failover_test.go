package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, key string, payload []byte) error {
	args := m.Called(ctx, key, payload)
	return args.Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func TestFailoverSettingsCache(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()
	payload := []byte(`{"mode":"flat"}`)

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary := new(mockCache)
		fallback := new(mockCache)
		cache := NewFailoverSettingsCache(primary, fallback, &logger)

		primary.On("Get", ctx, "capacity").Return(payload, nil).Once()

		got, err := cache.Get(ctx, "capacity")
		assert.NoError(t, err)
		assert.Equal(t, payload, got)
		assert.False(t, cache.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("MissDoesNotTripFailover", func(t *testing.T) {
		primary := new(mockCache)
		fallback := new(mockCache)
		cache := NewFailoverSettingsCache(primary, fallback, &logger)

		primary.On("Get", ctx, "closure").Return(nil, ErrCacheMiss).Once()

		_, err := cache.Get(ctx, "closure")
		assert.True(t, errors.Is(err, ErrCacheMiss))
		assert.False(t, cache.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackServes", func(t *testing.T) {
		primary := new(mockCache)
		fallback := new(mockCache)
		cache := NewFailoverSettingsCache(primary, fallback, &logger)

		primary.On("Get", ctx, "capacity").Return(nil, errors.New("connection refused")).Once()
		fallback.On("Get", ctx, "capacity").Return(payload, nil).Once()

		got, err := cache.Get(ctx, "capacity")
		assert.NoError(t, err)
		assert.Equal(t, payload, got)
		assert.True(t, cache.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("DownSkipsPrimaryBeforeProbeWindow", func(t *testing.T) {
		primary := new(mockCache)
		fallback := new(mockCache)
		cache := NewFailoverSettingsCache(primary, fallback, &logger)
		cache.isDown.Store(true)
		cache.lastCheck.Store(time.Now().UnixNano())

		fallback.On("Get", ctx, "capacity").Return(payload, nil).Once()

		got, err := cache.Get(ctx, "capacity")
		assert.NoError(t, err)
		assert.Equal(t, payload, got)
		primary.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryProbeRestoresPrimary", func(t *testing.T) {
		primary := new(mockCache)
		fallback := new(mockCache)
		cache := NewFailoverSettingsCache(primary, fallback, &logger)
		cache.isDown.Store(true)
		cache.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		primary.On("Get", ctx, "capacity").Return(payload, nil).Once()

		got, err := cache.Get(ctx, "capacity")
		assert.NoError(t, err)
		assert.Equal(t, payload, got)
		assert.False(t, cache.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("SetWritesBothCaches", func(t *testing.T) {
		primary := new(mockCache)
		fallback := new(mockCache)
		cache := NewFailoverSettingsCache(primary, fallback, &logger)

		primary.On("Set", ctx, "closure", payload).Return(nil).Once()
		fallback.On("Set", ctx, "closure", payload).Return(nil).Once()

		assert.NoError(t, cache.Set(ctx, "closure", payload))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("InvalidateFailureTripsFailover", func(t *testing.T) {
		primary := new(mockCache)
		fallback := new(mockCache)
		cache := NewFailoverSettingsCache(primary, fallback, &logger)

		primary.On("Invalidate", ctx, "closure").Return(errors.New("down")).Once()
		fallback.On("Invalidate", ctx, "closure").Return(nil).Once()

		assert.NoError(t, cache.Invalidate(ctx, "closure"))
		assert.True(t, cache.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
