package status

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/batchmon/internal/models"
)

// slowResolver records how many Resolve calls overlap
type slowResolver struct {
	delay    time.Duration
	inFlight int64
	maxSeen  int64
	calls    int64
	panicOn  string
}

func (r *slowResolver) Resolve(job *models.Job, filterDate time.Time) *models.AnalysisResult {
	atomic.AddInt64(&r.calls, 1)
	current := atomic.AddInt64(&r.inFlight, 1)
	defer atomic.AddInt64(&r.inFlight, -1)
	for {
		seen := atomic.LoadInt64(&r.maxSeen)
		if current <= seen || atomic.CompareAndSwapInt64(&r.maxSeen, seen, current) {
			break
		}
	}
	if job.Name == r.panicOn {
		panic("resolver exploded")
	}
	time.Sleep(r.delay)

	result := models.NewAnalysisResult(job.Name)
	result.Status = models.StatusSuccess
	result.StatusMessage = "ok " + filterDate.Format("2006-01-02")
	return result
}

// stubSchedules answers Info from a map
type stubSchedules struct {
	mu      sync.Mutex
	info    map[string]models.ScheduleInfo
	queried []string
}

func (s *stubSchedules) Schedule(context.Context, string, string, time.Time, models.BatchKind) error {
	return nil
}
func (s *stubSchedules) UpdateSchedule(context.Context, string, time.Time) error { return nil }
func (s *stubSchedules) DeleteSchedule(context.Context, string) error            { return nil }
func (s *stubSchedules) IsScheduled(ctx context.Context, name string) bool {
	return s.Info(ctx, name).IsScheduled
}
func (s *stubSchedules) GetNextRunTime(ctx context.Context, name string) *time.Time {
	return s.Info(ctx, name).NextRun
}
func (s *stubSchedules) Info(_ context.Context, name string) models.ScheduleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queried = append(s.queried, name)
	return s.info[name]
}

func makeJobs(n int) []*models.Job {
	jobs := make([]*models.Job, n)
	for i := range jobs {
		jobs[i] = &models.Job{Name: fmt.Sprintf("job-%02d", i)}
	}
	return jobs
}

var filterDate = time.Date(2025, 7, 15, 0, 0, 0, 0, time.Local)

func TestGate_BoundsHolders(t *testing.T) {
	gate := NewGate(2)
	ctx := context.Background()

	require.NoError(t, gate.Acquire(ctx))
	require.NoError(t, gate.Acquire(ctx))
	assert.Equal(t, 2, gate.InUse())

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, gate.Acquire(timeout), context.DeadlineExceeded)

	gate.Release()
	require.NoError(t, gate.Acquire(ctx))
	assert.Equal(t, 2, gate.Size())
}

func TestGate_DefaultSize(t *testing.T) {
	assert.Equal(t, DefaultConcurrency, NewGate(0).Size())
}

func TestOrchestrator_AtMostFourInFlight(t *testing.T) {
	resolver := &slowResolver{delay: 15 * time.Millisecond}
	orchestrator := NewOrchestrator(resolver, nil, NewGate(4), nil, arbor.NewLogger())

	results := orchestrator.RunAndWait(context.Background(), makeJobs(20), filterDate)

	require.Len(t, results, 20)
	assert.LessOrEqual(t, atomic.LoadInt64(&resolver.maxSeen), int64(4))
	assert.Equal(t, int64(20), atomic.LoadInt64(&resolver.calls))
	for i, result := range results {
		require.NotNil(t, result)
		assert.Equal(t, fmt.Sprintf("job-%02d", i), result.JobName, "results keep input order")
		assert.Equal(t, "ok 2025-07-15", result.StatusMessage)
	}
}

func TestOrchestrator_MergesScheduleInfo(t *testing.T) {
	next := time.Date(2025, 7, 16, 2, 30, 0, 0, time.Local)
	schedules := &stubSchedules{info: map[string]models.ScheduleInfo{
		"job-01": {IsScheduled: true, NextRun: &next},
	}}
	orchestrator := NewOrchestrator(&slowResolver{}, schedules, NewGate(2), nil, arbor.NewLogger())

	results := orchestrator.RunAndWait(context.Background(), makeJobs(3), filterDate)

	assert.False(t, results[0].Schedule.IsScheduled)
	assert.True(t, results[1].Schedule.IsScheduled)
	require.NotNil(t, results[1].Schedule.NextRun)
	assert.True(t, results[1].Schedule.NextRun.Equal(next))
	assert.Len(t, schedules.queried, 3)
}

func TestOrchestrator_CallbackAndCompletionSignal(t *testing.T) {
	orchestrator := NewOrchestrator(&slowResolver{delay: 5 * time.Millisecond}, nil, NewGate(3), nil, arbor.NewLogger())

	seen := map[int]string{}
	pass := orchestrator.Run(context.Background(), makeJobs(7), filterDate, func(index int, result *models.AnalysisResult) {
		seen[index] = result.JobName
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pass.Wait(ctx))

	assert.Len(t, seen, 7)
	assert.Equal(t, 7, pass.Completed())
	assert.NotEmpty(t, pass.ID)
	select {
	case <-pass.Done():
	default:
		t.Fatal("Done should be closed after Wait returns")
	}
}

func TestOrchestrator_EmptyPassCompletes(t *testing.T) {
	orchestrator := NewOrchestrator(&slowResolver{}, nil, nil, nil, arbor.NewLogger())

	pass := orchestrator.Run(context.Background(), nil, filterDate, nil)

	select {
	case <-pass.Done():
	case <-time.After(time.Second):
		t.Fatal("empty pass did not complete")
	}
	assert.Empty(t, pass.Results())
}

func TestOrchestrator_PanicIsContained(t *testing.T) {
	resolver := &slowResolver{panicOn: "job-01"}
	orchestrator := NewOrchestrator(resolver, nil, NewGate(1), nil, arbor.NewLogger())

	results := orchestrator.RunAndWait(context.Background(), makeJobs(3), filterDate)

	assert.Equal(t, models.StatusError, results[1].Status)
	assert.Equal(t, models.StatusSuccess, results[0].Status)
	assert.Equal(t, models.StatusSuccess, results[2].Status)
}

func TestOrchestrator_PanickingCallbackStillCompletes(t *testing.T) {
	state := NewService(arbor.NewLogger())
	orchestrator := NewOrchestrator(&slowResolver{}, nil, NewGate(2), state, arbor.NewLogger())

	var calls int64
	pass := orchestrator.Run(context.Background(), makeJobs(3), filterDate, func(index int, result *models.AnalysisResult) {
		atomic.AddInt64(&calls, 1)
		if index == 1 {
			panic("dashboard update failed")
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pass.Wait(ctx), "pass must complete when the callback panics")

	assert.Equal(t, 3, pass.Completed())
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
	for _, result := range pass.Results() {
		require.NotNil(t, result)
		assert.Equal(t, models.StatusSuccess, result.Status)
	}
	require.Eventually(t, func() bool { return state.GetState() == StateIdle }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, state.GetStatus().Completed)
}

func TestOrchestrator_CancelledBeforeAdmission(t *testing.T) {
	resolver := &slowResolver{}
	orchestrator := NewOrchestrator(resolver, nil, NewGate(1), nil, arbor.NewLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := orchestrator.RunAndWait(ctx, makeJobs(3), filterDate)

	require.Len(t, results, 3)
	for _, result := range results {
		require.NotNil(t, result)
		if result.Status == models.StatusUnknown {
			assert.Contains(t, result.StatusMessage, "Check cancelled")
		}
	}
}

func TestService_TracksPass(t *testing.T) {
	state := NewService(arbor.NewLogger())
	assert.Equal(t, StateIdle, state.GetState())

	orchestrator := NewOrchestrator(&slowResolver{}, nil, NewGate(2), state, arbor.NewLogger())
	pass := orchestrator.Run(context.Background(), makeJobs(4), filterDate, nil)
	<-pass.Done()

	require.Eventually(t, func() bool { return state.GetState() == StateIdle }, time.Second, 5*time.Millisecond)
	snap := state.GetStatus()
	assert.Equal(t, pass.ID, snap.PassID)
	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, 4, snap.Completed)
	assert.NotNil(t, snap.LastPass)
}
