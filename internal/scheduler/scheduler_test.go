package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/model"
)

// memTasks is an in-memory TaskRepository.
type memTasks struct {
	mu    sync.Mutex
	tasks map[string]*model.ScheduledTask
}

func newMemTasks() *memTasks {
	return &memTasks{tasks: make(map[string]*model.ScheduledTask)}
}

func (m *memTasks) Create(_ context.Context, t *model.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTasks) MarkRunning(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return apperror.NotFound("task", id)
	}
	t.Status = model.TaskRunning
	t.Attempts++
	return nil
}

func (m *memTasks) MarkFinished(_ context.Context, id string, status model.TaskStatus, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return apperror.NotFound("task", id)
	}
	t.Status = status
	t.LastError = lastErr
	return nil
}

func (m *memTasks) Unfinished(_ context.Context) ([]model.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ScheduledTask
	for _, t := range m.tasks {
		if t.Status == model.TaskScheduled || t.Status == model.TaskRunning {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTasks) get(id string) model.ScheduledTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.tasks[id]
}

func newTestScheduler(t *testing.T, store *memTasks) *Scheduler {
	t.Helper()
	s := New(store, Config{Workers: 2, QueueSize: 8}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(s.Stop)
	return s
}

// waitStatus polls until the task reaches want or the deadline passes.
func waitStatus(t *testing.T, store *memTasks, id string, want model.TaskStatus) model.ScheduledTask {
	t.Helper()
	var got model.ScheduledTask
	require.Eventually(t, func() bool {
		got = store.get(id)
		return got.Status == want
	}, 2*time.Second, 5*time.Millisecond, "task %s never reached %s", id, want)
	return got
}

type idPayload struct {
	ID string `json:"id"`
}

func TestSchedule_ZeroDelayRunsOffCaller(t *testing.T) {
	store := newMemTasks()
	s := newTestScheduler(t, store)

	release := make(chan struct{})
	ran := make(chan string, 1)
	s.Register("echo", func(ctx context.Context, payload []byte) error {
		<-release
		p, err := Decode[idPayload](payload)
		if err != nil {
			return err
		}
		ran <- p.ID
		return nil
	})
	require.NoError(t, s.Start(context.Background()))

	// Schedule must return while the handler is still blocked.
	id, err := s.Schedule(context.Background(), "echo", idPayload{ID: "doc-1"}, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	close(release)
	select {
	case got := <-ran:
		assert.Equal(t, "doc-1", got)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}

	done := waitStatus(t, store, id, model.TaskDone)
	assert.Equal(t, 1, done.Attempts)
}

func TestSchedule_NotBeforeRunAt(t *testing.T) {
	store := newMemTasks()
	s := newTestScheduler(t, store)

	var mu sync.Mutex
	var ranAt time.Time
	s.Register("late", func(context.Context, []byte) error {
		mu.Lock()
		ranAt = time.Now()
		mu.Unlock()
		return nil
	})
	require.NoError(t, s.Start(context.Background()))

	start := time.Now()
	id, err := s.Schedule(context.Background(), "late", nil, 50*time.Millisecond)
	require.NoError(t, err)

	waitStatus(t, store, id, model.TaskDone)
	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, ranAt.Sub(start), 50*time.Millisecond)
}

func TestSchedule_Rejects(t *testing.T) {
	s := newTestScheduler(t, newMemTasks())
	s.Register("known", func(context.Context, []byte) error { return nil })

	_, err := s.Schedule(context.Background(), "known", nil, -time.Second)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = s.Schedule(context.Background(), "unknown", nil, 0)
	assert.Error(t, err)
}

func TestRun_FailureAndPanicAreAbsorbed(t *testing.T) {
	store := newMemTasks()
	s := newTestScheduler(t, store)

	s.Register("fails", func(context.Context, []byte) error { return errors.New("disk full") })
	s.Register("panics", func(context.Context, []byte) error { panic("nil map") })
	s.Register("ok", func(context.Context, []byte) error { return nil })
	require.NoError(t, s.Start(context.Background()))

	failID, err := s.Schedule(context.Background(), "fails", nil, 0)
	require.NoError(t, err)
	panicID, err := s.Schedule(context.Background(), "panics", nil, 0)
	require.NoError(t, err)
	okID, err := s.Schedule(context.Background(), "ok", nil, 0)
	require.NoError(t, err)

	failed := waitStatus(t, store, failID, model.TaskFailed)
	assert.Equal(t, "disk full", failed.LastError)

	panicked := waitStatus(t, store, panicID, model.TaskFailed)
	assert.Contains(t, panicked.LastError, "nil map")

	// Workers survive both and keep serving.
	waitStatus(t, store, okID, model.TaskDone)
}

func TestStart_RearmsUnfinished(t *testing.T) {
	store := newMemTasks()
	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.Create(context.Background(), &model.ScheduledTask{
		ID: "left-scheduled", Name: "work", Payload: []byte(`{}`), RunAt: past, Status: model.TaskScheduled,
	}))
	require.NoError(t, store.Create(context.Background(), &model.ScheduledTask{
		ID: "left-running", Name: "work", Payload: []byte(`{}`), RunAt: past, Status: model.TaskRunning, Attempts: 1,
	}))
	require.NoError(t, store.Create(context.Background(), &model.ScheduledTask{
		ID: "finished", Name: "work", Payload: []byte(`{}`), RunAt: past, Status: model.TaskDone,
	}))

	var mu sync.Mutex
	runs := map[string]int{}
	s := newTestScheduler(t, store)
	s.Register("work", func(context.Context, []byte) error {
		mu.Lock()
		runs["work"]++
		mu.Unlock()
		return nil
	})
	require.NoError(t, s.Start(context.Background()))

	waitStatus(t, store, "left-scheduled", model.TaskDone)
	rerun := waitStatus(t, store, "left-running", model.TaskDone)
	assert.Equal(t, 2, rerun.Attempts)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, runs["work"])
}

// brokenBacklog fails Unfinished and otherwise behaves like memTasks.
type brokenBacklog struct{ *memTasks }

func (brokenBacklog) Unfinished(context.Context) ([]model.ScheduledTask, error) {
	return nil, errors.New("disk I/O error")
}

func TestStart_BacklogErrorStartsNoWorkers(t *testing.T) {
	store := newMemTasks()
	s := New(brokenBacklog{store}, Config{Workers: 2, QueueSize: 8}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(s.Stop)

	s.Register("work", func(context.Context, []byte) error { return nil })

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading unfinished tasks")

	id, err := s.Schedule(context.Background(), "work", nil, 0)
	require.NoError(t, err)
	assert.Never(t, func() bool {
		return store.get(id).Status != model.TaskScheduled
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestStop_LeavesPendingScheduled(t *testing.T) {
	store := newMemTasks()
	s := New(store, Config{Workers: 1, QueueSize: 1}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Register("later", func(context.Context, []byte) error { return nil })
	require.NoError(t, s.Start(context.Background()))

	id, err := s.Schedule(context.Background(), "later", nil, time.Hour)
	require.NoError(t, err)
	s.Stop()

	assert.Equal(t, model.TaskScheduled, store.get(id).Status)

	// Stop is idempotent.
	s.Stop()
}

func TestDecode(t *testing.T) {
	p, err := Decode[idPayload]([]byte(`{"id":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, "x", p.ID)

	_, err = Decode[idPayload]([]byte(`not json`))
	assert.Error(t, err)
}
