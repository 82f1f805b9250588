package sem

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphorePostAndWait(t *testing.T) {
	s := New("im1", 4)

	s.Post()
	s.Post()

	assert.Equal(t, 2, s.Value())
	assert.Equal(t, uint64(2), s.Counter())

	require.NoError(t, s.Wait(context.Background()))
	require.NoError(t, s.Wait(context.Background()))
	assert.Equal(t, 0, s.Value())
	assert.Equal(t, uint64(2), s.Counter())
}

func TestSemaphoreDropsBeyondMaxValue(t *testing.T) {
	s := New("im1", 3)

	for i := 0; i < 10; i++ {
		s.Post()
	}

	assert.Equal(t, 3, s.Value())
	assert.Equal(t, 3, s.MaxValue())
	assert.Equal(t, uint64(10), s.Counter())
	assert.Equal(t, uint64(7), s.Dropped())
}

func TestSemaphoreDefaultMaxValue(t *testing.T) {
	s := New("im1", 0)

	assert.Equal(t, DefaultMaxValue, s.MaxValue())
	assert.Equal(t, "im1", s.Name())
}

func TestSemaphoreWaitHonoursContext(t *testing.T) {
	s := New("im1", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Wait(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSemaphoreCloseReleasesWaiters(t *testing.T) {
	s := New("im1", 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Wait(context.Background())
	}()

	s.Close()
	s.Close()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, ErrClosed))
	case <-time.After(time.Second):
		t.Fatal("waiter not released by Close")
	}

	s.Post()
	assert.Equal(t, uint64(0), s.Counter())
}

func TestSemaphoreDrainsPendingBeforeClosed(t *testing.T) {
	s := New("im1", 2)
	s.Post()
	s.Close()

	require.NoError(t, s.Wait(context.Background()))
	assert.ErrorIs(t, s.Wait(context.Background()), ErrClosed)
}
