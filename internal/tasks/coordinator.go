// Package tasks runs background work for the reader: feed refreshes, AI
// generation, exports. A fixed worker pool consumes an unbounded FIFO accept
// queue; submissions sharing a key attach to the execution already in flight
// instead of starting a second one.
//
// Terminal transitions are emitted into the notifier while the coordinator
// lock is held and the in-flight record is removed in the same critical
// section. A later submission for the same key therefore always starts its
// lifecycle after the previous terminal event is already queued, which gives
// per-key event order and exactly-once terminal delivery.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"driftline/pkg/drift"
)

const (
	defaultWorkers     = 3
	defaultTaskTimeout = 60 * time.Second
	defaultRetryDelay  = 500 * time.Millisecond

	// retryAfterCap bounds how long a provider's retry-after hint can stall
	// a worker.
	retryAfterCap = 5 * time.Second

	// maxAttempts is the first execution plus the single automatic retry.
	maxAttempts = 2
)

// RunFunc is one task body. It must honor ctx cancellation; the result
// detail is a short human-readable summary for the terminal notice.
type RunFunc func(ctx context.Context) (string, error)

// TaskSpec describes one submission.
type TaskSpec struct {
	// Key deduplicates concurrent submissions.
	Key drift.TaskKey
	// Run is the task body.
	Run RunFunc
	// Timeout overrides the per-attempt execution timeout when positive.
	Timeout time.Duration
}

// Notifier accepts terminal task events for delivery to the UI. Notify must
// not block; the coordinator calls it with its own lock held.
type Notifier interface {
	Notify(event drift.Event) error
}

// task is the coordinator-internal record of one deduplicated execution.
// All fields except key, run, timeout, submitted, and done are guarded by
// the coordinator mutex. outcome is written before done is closed and never
// after.
type task struct {
	key       drift.TaskKey
	run       RunFunc
	timeout   time.Duration
	submitted time.Time

	status    drift.TaskStatus
	outcome   drift.TaskOutcome
	cancelRun context.CancelFunc
	done      chan struct{}
}

// Handle is the caller's view of a submitted task. Handles obtained for the
// same key while it was in flight share one underlying execution.
type Handle struct {
	c *Coordinator
	t *task
}

// Key returns the task key.
func (h Handle) Key() drift.TaskKey {
	return h.t.key
}

// Done is closed when the task reaches a terminal status.
func (h Handle) Done() <-chan struct{} {
	return h.t.done
}

// Outcome returns the terminal result once available.
func (h Handle) Outcome() (drift.TaskOutcome, bool) {
	select {
	case <-h.t.done:
		return h.t.outcome, true
	default:
		return drift.TaskOutcome{}, false
	}
}

// Status returns the current state of the task.
func (h Handle) Status() drift.TaskStatus {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()

	return h.t.status
}

type config struct {
	workers     int
	taskTimeout time.Duration
	retryDelay  time.Duration
	logger      *slog.Logger
	clock       func() time.Time
}

// Option adjusts coordinator construction.
type Option func(*config)

// WithWorkers sets the worker pool size.
func WithWorkers(workers int) Option {
	return func(cfg *config) {
		if workers > 0 {
			cfg.workers = workers
		}
	}
}

// WithTaskTimeout sets the default per-attempt timeout.
func WithTaskTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		if timeout > 0 {
			cfg.taskTimeout = timeout
		}
	}
}

// WithRetryDelay sets the pause before the automatic retry when the failure
// carries no retry-after hint.
func WithRetryDelay(delay time.Duration) Option {
	return func(cfg *config) {
		if delay > 0 {
			cfg.retryDelay = delay
		}
	}
}

// WithLogger configures the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithClock replaces the wall clock used for timestamps and elapsed times.
func WithClock(clock func() time.Time) Option {
	return func(cfg *config) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// Coordinator owns the accept queue and worker pool.
type Coordinator struct {
	cfg      config
	notifier Notifier

	mu       sync.Mutex
	wake     *sync.Cond
	queue    []*task
	inflight map[drift.TaskKey]*task
	closed   bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
	done       chan struct{}
}

// New creates a coordinator and starts its workers.
func New(notifier Notifier, options ...Option) (*Coordinator, error) {
	if notifier == nil {
		return nil, fmt.Errorf("new coordinator: nil notifier")
	}

	cfg := config{
		workers:     defaultWorkers,
		taskTimeout: defaultTaskTimeout,
		retryDelay:  defaultRetryDelay,
		logger:      slog.Default(),
		clock:       time.Now,
	}
	for _, option := range options {
		option(&cfg)
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:        cfg,
		notifier:   notifier,
		inflight:   make(map[drift.TaskKey]*task),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		done:       make(chan struct{}),
	}
	c.wake = sync.NewCond(&c.mu)

	workerWG := &sync.WaitGroup{}
	for idx := 0; idx < cfg.workers; idx++ {
		workerWG.Add(1)
		go c.runWorker(workerWG, idx)
	}
	go func() {
		workerWG.Wait()
		close(c.done)
	}()

	return c, nil
}

// Submit accepts a task or attaches to the in-flight execution with the same
// key. joined reports attachment; the returned handle is shared either way.
func (c *Coordinator) Submit(ctx context.Context, spec TaskSpec) (Handle, bool, error) {
	if err := spec.Key.Validate(); err != nil {
		return Handle{}, false, fmt.Errorf("submit: %w", err)
	}
	if spec.Run == nil {
		return Handle{}, false, fmt.Errorf("submit %s: nil run func", spec.Key)
	}
	if err := ctx.Err(); err != nil {
		return Handle{}, false, fmt.Errorf("submit %s: %w", spec.Key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Handle{}, false, fmt.Errorf("submit %s: %w", spec.Key, drift.ErrCoordinatorClosed)
	}

	if existing, found := c.inflight[spec.Key]; found {
		c.cfg.logger.Debug("task submission joined in-flight execution", "task", spec.Key.String())
		return Handle{c: c, t: existing}, true, nil
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = c.cfg.taskTimeout
	}
	t := &task{
		key:       spec.Key,
		run:       spec.Run,
		timeout:   timeout,
		submitted: c.cfg.clock(),
		status:    drift.TaskStatusPending,
		done:      make(chan struct{}),
	}
	c.inflight[spec.Key] = t
	c.queue = append(c.queue, t)
	c.wake.Signal()
	c.cfg.logger.Debug("task accepted", "task", spec.Key.String(), "queued", len(c.queue))

	return Handle{c: c, t: t}, false, nil
}

// Cancel removes a pending task before any worker picks it up. Running and
// unknown tasks are left alone and report false.
func (c *Coordinator) Cancel(key drift.TaskKey) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, fmt.Errorf("cancel %s: %w", key, drift.ErrCoordinatorClosed)
	}

	t, found := c.inflight[key]
	if !found || t.status != drift.TaskStatusPending {
		return false, nil
	}

	for idx, queued := range c.queue {
		if queued == t {
			c.queue = append(c.queue[:idx], c.queue[idx+1:]...)
			break
		}
	}
	c.finishLocked(t, drift.TaskOutcome{
		Status:  drift.TaskStatusCanceled,
		Elapsed: c.cfg.clock().Sub(t.submitted),
	})
	c.cfg.logger.Debug("pending task canceled", "task", key.String())

	return true, nil
}

// Status reports the current state of a key's in-flight execution. found is
// false once the task reached a terminal status or was never submitted.
func (c *Coordinator) Status(key drift.TaskKey) (drift.TaskStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, found := c.inflight[key]
	if !found {
		return "", false
	}

	return t.status, true
}

// ActiveCount reports how many tasks are pending or running.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.inflight)
}

// Close rejects further submissions, cancels every pending task, signals
// running task contexts, and waits for workers to finish their current task.
// The context bounds the wait.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		pending := c.queue
		c.queue = nil
		for _, t := range pending {
			c.finishLocked(t, drift.TaskOutcome{
				Status:  drift.TaskStatusCanceled,
				Elapsed: c.cfg.clock().Sub(t.submitted),
			})
		}
		for _, t := range c.inflight {
			if t.cancelRun != nil {
				t.cancelRun()
			}
		}
		c.wake.Broadcast()
	}
	c.mu.Unlock()
	c.baseCancel()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close coordinator: %w", ctx.Err())
	}
}

// runWorker consumes the queue until close, executing one task at a time.
func (c *Coordinator) runWorker(workerWG *sync.WaitGroup, workerID int) {
	defer workerWG.Done()

	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.wake.Wait()
		}
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		t := c.queue[0]
		c.queue = c.queue[1:]
		t.status = drift.TaskStatusRunning
		runCtx, cancelRun := context.WithCancel(c.baseCtx)
		t.cancelRun = cancelRun
		c.mu.Unlock()

		c.cfg.logger.Debug("task started", "task", t.key.String(), "worker", workerID)
		outcome := c.execute(runCtx, t)
		cancelRun()

		c.mu.Lock()
		c.finishLocked(t, outcome)
		c.mu.Unlock()
		c.cfg.logger.Debug("task finished",
			"task", t.key.String(),
			"status", string(outcome.Status),
			"attempts", outcome.Attempts,
			"elapsed", outcome.Elapsed,
		)
	}
}

// execute runs the task body up to maxAttempts times. Only failures
// classified transient or rate limited are retried, each attempt under a
// fresh timeout window.
func (c *Coordinator) execute(runCtx context.Context, t *task) drift.TaskOutcome {
	var lastErr error
	attempts := 0
	for attempts < maxAttempts {
		attempts++
		detail, err := c.runAttempt(runCtx, t)
		if err == nil {
			return drift.TaskOutcome{
				Status:   drift.TaskStatusDone,
				Detail:   detail,
				Attempts: attempts,
				Elapsed:  c.cfg.clock().Sub(t.submitted),
			}
		}
		lastErr = err

		if runCtx.Err() != nil || attempts >= maxAttempts {
			break
		}
		kind := drift.ClassifyError(err)
		if !kind.Retryable() {
			break
		}

		delay := c.retryDelay(err)
		c.cfg.logger.Warn("task attempt failed, retrying",
			"task", t.key.String(),
			"failure_kind", string(kind),
			"delay", delay,
			"error", err,
		)
		select {
		case <-time.After(delay):
		case <-runCtx.Done():
		}
		if runCtx.Err() != nil {
			break
		}
	}

	return drift.TaskOutcome{
		Status:   drift.TaskStatusFailed,
		Failure:  c.failureFor(t, lastErr),
		Attempts: attempts,
		Elapsed:  c.cfg.clock().Sub(t.submitted),
	}
}

// runAttempt executes the body once with its own timeout. The result channel
// is buffered so an attempt that misses the deadline can still finish and
// exit; its late result is discarded here.
func (c *Coordinator) runAttempt(runCtx context.Context, t *task) (string, error) {
	attemptCtx, cancel := context.WithTimeout(runCtx, t.timeout)
	defer cancel()

	type attemptResult struct {
		detail string
		err    error
	}
	results := make(chan attemptResult, 1)
	go func() {
		var detail string
		err := runSafely("task "+t.key.String(), func() error {
			var runErr error
			detail, runErr = t.run(attemptCtx)

			return runErr
		})
		results <- attemptResult{detail: detail, err: err}
	}()

	select {
	case result := <-results:
		return result.detail, result.err
	case <-attemptCtx.Done():
		return "", attemptCtx.Err()
	}
}

// retryDelay picks the pause before the retry, honoring a provider
// retry-after hint up to retryAfterCap.
func (c *Coordinator) retryDelay(err error) time.Duration {
	if hint, ok := drift.RetryAfterHint(err); ok && hint > 0 {
		if hint > retryAfterCap {
			return retryAfterCap
		}

		return hint
	}

	return c.cfg.retryDelay
}

// failureFor normalizes the attempt error into a classified task error.
func (c *Coordinator) failureFor(t *task, err error) *drift.TaskError {
	if failure, ok := drift.AsTaskError(err); ok {
		return failure
	}

	return &drift.TaskError{
		Op:    t.key.String(),
		Kind:  drift.ClassifyError(err),
		Cause: err,
	}
}

// finishLocked records the terminal outcome, emits the terminal event, and
// retires the in-flight record, all under the coordinator lock. Emit before
// delete is what makes per-key event order provable.
func (c *Coordinator) finishLocked(t *task, outcome drift.TaskOutcome) {
	t.status = outcome.Status
	t.outcome = outcome

	kind, err := drift.TaskEventKind(outcome.Status)
	if err != nil {
		c.cfg.logger.Error("task finished in non-terminal status", "task", t.key.String(), "error", err)
	} else {
		event := drift.Event{
			ID:         uuid.NewString(),
			Kind:       kind,
			OccurredAt: c.cfg.clock(),
			Task:       &drift.TaskNotice{Key: t.key, Outcome: outcome},
		}
		if err := c.notifier.Notify(event); err != nil {
			c.cfg.logger.Error("terminal task event lost",
				"task", t.key.String(),
				"status", string(outcome.Status),
				"error", err,
			)
		}
	}

	delete(c.inflight, t.key)
	close(t.done)
}
