package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/invopeak/fakturaserie/internal/config"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *logger.Logger {
	log, err := logger.NewLogger(config.GetDefaultConfig())
	require.NoError(t, err)
	return log
}

func TestSchedulerRunsRegisteredJobs(t *testing.T) {
	leaseStore := testutil.NewInMemoryLeaseStore()
	s := New(leaseStore, time.Second, newTestLogger(t))

	var runs atomic.Int32
	s.Register(Job{
		Name:     "billing_dispatch",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	s.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	assert.Greater(t, runs.Load(), int32(0))
}

func TestSchedulerSkipsWhenLeaseHeldElsewhere(t *testing.T) {
	leaseStore := testutil.NewInMemoryLeaseStore()

	acquired, err := leaseStore.Acquire(context.Background(), "billing_dispatch", "other-holder", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	s := New(leaseStore, time.Second, newTestLogger(t))

	var runs atomic.Int32
	job := Job{
		Name:     "billing_dispatch",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}

	s.runJob(context.Background(), job)
	assert.Equal(t, int32(0), runs.Load())

	holder, ok := leaseStore.Holder("billing_dispatch")
	require.True(t, ok)
	assert.Equal(t, "other-holder", holder)
}

func TestSchedulerReleasesLeaseAfterRun(t *testing.T) {
	leaseStore := testutil.NewInMemoryLeaseStore()
	s := New(leaseStore, time.Second, newTestLogger(t))

	job := Job{
		Name:     "crediting_dispatch",
		Interval: time.Hour,
		Run:      func(ctx context.Context) error { return nil },
	}

	s.runJob(context.Background(), job)

	_, held := leaseStore.Holder("crediting_dispatch")
	assert.False(t, held)
}

func TestSchedulerBoundsRunToLeaseTTL(t *testing.T) {
	leaseStore := testutil.NewInMemoryLeaseStore()
	s := New(leaseStore, 20*time.Millisecond, newTestLogger(t))

	done := make(chan struct{})
	job := Job{
		Name:     "billing_dispatch",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			defer close(done)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
				return nil
			}
		},
	}

	start := time.Now()
	s.runJob(context.Background(), job)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job was not cancelled by the lease deadline")
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSchedulerTakesOverExpiredLease(t *testing.T) {
	leaseStore := testutil.NewInMemoryLeaseStore()

	acquired, err := leaseStore.Acquire(context.Background(), "billing_dispatch", "crashed-holder", time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)
	time.Sleep(5 * time.Millisecond)

	s := New(leaseStore, time.Second, newTestLogger(t))

	var runs atomic.Int32
	s.runJob(context.Background(), Job{
		Name:     "billing_dispatch",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	assert.Equal(t, int32(1), runs.Load())
}
