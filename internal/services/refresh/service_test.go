package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestService_TriggerNowRunsPass(t *testing.T) {
	var runs int64
	service := NewService(func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	}, arbor.NewLogger())

	require.Nil(t, service.LastRun())
	require.NoError(t, service.TriggerNow())

	assert.Equal(t, int64(1), atomic.LoadInt64(&runs))
	assert.NotNil(t, service.LastRun())
	assert.Empty(t, service.LastError())
}

func TestService_RecordsPassError(t *testing.T) {
	service := NewService(func(ctx context.Context) error {
		return errors.New("storage closed")
	}, arbor.NewLogger())

	assert.Error(t, service.TriggerNow())
	assert.Equal(t, "storage closed", service.LastError())
}

func TestService_SkipsOverlappingPass(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	service := NewService(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}, arbor.NewLogger())

	done := make(chan error, 1)
	go func() { done <- service.TriggerNow() }()
	<-started

	assert.ErrorIs(t, service.TriggerNow(), ErrPassInProgress)
	assert.Equal(t, 1, service.Skipped())

	close(release)
	require.NoError(t, <-done)
}

func TestService_ScheduledPasses(t *testing.T) {
	var runs int64
	service := NewService(func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	}, arbor.NewLogger())

	require.NoError(t, service.Start("* * * * * *"))
	assert.True(t, service.IsRunning())
	require.Eventually(t, func() bool { return service.NextRun() != nil }, time.Second, 10*time.Millisecond)
	assert.Error(t, service.Start("* * * * * *"))

	require.Eventually(t, func() bool { return atomic.LoadInt64(&runs) >= 1 }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, service.Stop())
	assert.False(t, service.IsRunning())
	assert.Nil(t, service.NextRun())
	require.NoError(t, service.Stop())
}

func TestService_StopCancelsPass(t *testing.T) {
	cancelled := make(chan struct{})
	started := make(chan struct{}, 1)
	service := NewService(func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		select {
		case <-cancelled:
		default:
			close(cancelled)
		}
		return ctx.Err()
	}, arbor.NewLogger())

	require.NoError(t, service.Start("* * * * * *"))
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled pass never started")
	}

	require.NoError(t, service.Stop())
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("pass was not cancelled on stop")
	}
}

func TestService_RejectsBadSchedule(t *testing.T) {
	service := NewService(func(ctx context.Context) error { return nil }, arbor.NewLogger())

	assert.Error(t, service.Start("every thirty seconds"))
	assert.False(t, service.IsRunning())
}
