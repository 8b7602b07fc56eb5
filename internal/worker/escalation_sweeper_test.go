package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/touripk/support-desk/internal/persistence"
)

type stubEscalator struct {
	batches []int
	calls   int
	err     error
}

func (s *stubEscalator) EscalateOverdue(_ context.Context, _ int) (int, error) {
	if s.calls >= len(s.batches) {
		return 0, s.err
	}
	n := s.batches[s.calls]
	s.calls++
	return n, nil
}

func newRedisLocker(t *testing.T) (*persistence.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &persistence.Redis{Client: client}, mr
}

func TestSweepOnceDrainsBatches(t *testing.T) {
	esc := &stubEscalator{batches: []int{2, 2, 1}}
	locker, mr := newRedisLocker(t)
	s := NewEscalationSweeper(esc, locker, zap.NewNop(), time.Minute, time.Minute, 2)

	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 3, esc.calls)
	assert.False(t, mr.Exists(sweepLockKey), "lock is released after the sweep")
}

func TestSweepOnceSkipsWhenLocked(t *testing.T) {
	esc := &stubEscalator{batches: []int{1}}
	locker, _ := newRedisLocker(t)
	ok, err := locker.TryLock(context.Background(), sweepLockKey, "other-replica", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	s := NewEscalationSweeper(esc, locker, zap.NewNop(), time.Minute, time.Minute, 10)
	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, esc.calls)
}

func TestSweepOnceReportsErrors(t *testing.T) {
	esc := &stubEscalator{err: errors.New("db down")}
	s := NewEscalationSweeper(esc, nil, zap.NewNop(), time.Minute, time.Minute, 10)
	_, err := s.SweepOnce(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestRunDisabledReturnsImmediately(t *testing.T) {
	s := NewEscalationSweeper(&stubEscalator{}, nil, zap.NewNop(), 0, time.Minute, 10)
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper should not block")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	esc := &stubEscalator{batches: []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0}}
	s := NewEscalationSweeper(esc, nil, zap.NewNop(), 5*time.Millisecond, time.Minute, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
