// Package scheduler runs named tasks after a delay on a bounded worker
// pool.
//
// DELIVERY MODEL
//
// A task moves through one row in scheduled_tasks:
//
//	Schedule ──► scheduled ──(timer fires)──► queue ──► running ──► done | failed
//
// Schedule writes the row first and arms an in-process timer second. The
// caller gets the task id back as soon as the row exists; the handler
// never runs on the caller's goroutine, even for a zero delay.
//
// Timers live only in memory. When the process stops, Stop disarms them
// and the rows stay scheduled. The next Start reads every scheduled or
// running row and arms it again, firing at once if run_at has passed. A
// row that was running when the process died runs a second time, so
// delivery is at-least-once and handlers must be idempotent. The story
// and document handlers do this by returning early for completed items.
//
// A handler's error or panic marks the row failed with last_error set.
// Nothing is retried, and the error never reaches whoever scheduled the
// task: handlers record user-visible failure on their own rows.
//
// There is no cancellation. Ordering between tasks is not guaranteed
// beyond run_at; with more than one worker, two due tasks run concurrently.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/metrics"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
)

// HandlerFunc runs one task. A returned error or panic marks the task
// failed; it is never retried or surfaced to the scheduling caller.
type HandlerFunc func(ctx context.Context, payload []byte) error

type Config struct {
	Workers   int
	QueueSize int
}

type Scheduler struct {
	store  repository.TaskRepository
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	timers   map[string]*time.Timer
	armed    map[string]struct{}

	queue    chan model.ScheduledTask
	stopCh   chan struct{}
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	startOne sync.Once
	stopOne  sync.Once
}

func New(store repository.TaskRepository, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		timers:   make(map[string]*time.Timer),
		armed:    make(map[string]struct{}),
		queue:    make(chan model.ScheduledTask, cfg.QueueSize),
		stopCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register binds name to h. Register before Start so recovered tasks find
// their handler.
func (s *Scheduler) Register(name string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = h
}

// Schedule persists a task and arms a timer for it. It returns as soon as
// the row is written; the handler always runs on a worker goroutine, even
// when delay is zero.
func (s *Scheduler) Schedule(ctx context.Context, name string, payload any, delay time.Duration) (string, error) {
	if delay < 0 {
		return "", apperror.ValidationFailed("delay", "delay must not be negative")
	}

	s.mu.Lock()
	_, ok := s.handlers[name]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("scheduler: no handler registered for %q", name)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("scheduler: encoding %s payload: %w", name, err)
	}

	task := model.ScheduledTask{
		Name:    name,
		Payload: raw,
		RunAt:   time.Now().UTC().Add(delay),
		Status:  model.TaskScheduled,
	}
	if err := s.store.Create(ctx, &task); err != nil {
		return "", fmt.Errorf("scheduler: persisting %s: %w", name, err)
	}

	metrics.RecordTaskScheduled(name)
	s.logger.Info("task scheduled",
		slog.String("task", name),
		slog.String("taskID", task.ID),
		slog.Duration("delay", delay),
	)

	s.arm(task)
	return task.ID, nil
}

// Start re-arms tasks left unfinished by a previous process and then
// launches the workers. Tasks that were running when it stopped run again.
// If the backlog cannot be read, no worker starts.
func (s *Scheduler) Start(ctx context.Context) error {
	var err error
	s.startOne.Do(func() {
		var pending []model.ScheduledTask
		pending, err = s.store.Unfinished(ctx)
		if err != nil {
			err = fmt.Errorf("scheduler: loading unfinished tasks: %w", err)
			return
		}
		for _, t := range pending {
			s.arm(t)
		}

		for i := 0; i < s.cfg.Workers; i++ {
			s.wg.Add(1)
			go s.worker()
		}
		s.logger.Info("scheduler started",
			slog.Int("workers", s.cfg.Workers),
			slog.Int("recovered", len(pending)),
		)
	})
	return err
}

// Stop disarms pending timers and waits for running handlers to return.
// Disarmed tasks stay scheduled in the store and are picked up by the
// next Start.
func (s *Scheduler) Stop() {
	s.stopOne.Do(func() {
		s.logger.Info("stopping scheduler")
		close(s.stopCh)

		s.mu.Lock()
		for id, t := range s.timers {
			t.Stop()
			delete(s.timers, id)
		}
		s.mu.Unlock()

		s.wg.Wait()
		s.cancel()
		s.logger.Info("scheduler stopped")
	})
}

func (s *Scheduler) arm(t model.ScheduledTask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.stopCh:
		return
	default:
	}
	if _, ok := s.armed[t.ID]; ok {
		return
	}
	s.armed[t.ID] = struct{}{}

	delay := time.Until(t.RunAt)
	if delay < 0 {
		delay = 0
	}
	s.timers[t.ID] = time.AfterFunc(delay, func() { s.enqueue(t) })
}

func (s *Scheduler) enqueue(t model.ScheduledTask) {
	s.mu.Lock()
	delete(s.timers, t.ID)
	s.mu.Unlock()

	select {
	case s.queue <- t:
	case <-s.stopCh:
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			s.run(t)
		}
	}
}

func (s *Scheduler) run(t model.ScheduledTask) {
	defer func() {
		s.mu.Lock()
		delete(s.armed, t.ID)
		s.mu.Unlock()
	}()

	s.mu.Lock()
	h, ok := s.handlers[t.Name]
	s.mu.Unlock()

	logger := s.logger.With(slog.String("task", t.Name), slog.String("taskID", t.ID))

	if !ok {
		logger.Error("no handler for task")
		s.finish(t, model.TaskFailed, "no handler registered", "failed", 0)
		return
	}

	if err := s.store.MarkRunning(s.ctx, t.ID); err != nil {
		logger.Error("failed to mark task running", slog.String("error", err.Error()))
	}

	start := time.Now()
	err := invoke(s.ctx, h, t.Payload)
	elapsed := time.Since(start)

	var p *panicError
	switch {
	case err == nil:
		logger.Info("task done", slog.Duration("duration", elapsed))
		s.finish(t, model.TaskDone, "", "done", elapsed)
	case errors.As(err, &p):
		logger.Error("task panicked", slog.String("error", err.Error()), slog.String("stack", p.stack))
		s.finish(t, model.TaskFailed, err.Error(), "panic", elapsed)
	default:
		logger.Error("task failed", slog.String("error", err.Error()))
		s.finish(t, model.TaskFailed, err.Error(), "failed", elapsed)
	}
}

func (s *Scheduler) finish(t model.ScheduledTask, status model.TaskStatus, lastErr, outcome string, elapsed time.Duration) {
	if err := s.store.MarkFinished(s.ctx, t.ID, status, lastErr); err != nil {
		s.logger.Error("failed to record task result",
			slog.String("taskID", t.ID),
			slog.String("error", err.Error()),
		)
	}
	metrics.RecordTaskFinished(t.Name, outcome, elapsed)
}

type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func invoke(ctx context.Context, h HandlerFunc, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: string(debug.Stack())}
		}
	}()
	return h(ctx, payload)
}

// Decode unmarshals a task payload into T.
func Decode[T any](payload []byte) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("scheduler: decoding payload: %w", err)
	}
	return v, nil
}
