package jobexec

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Default scheduler configuration.
const (
	DefaultWorkers      = 4
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = time.Second
	DefaultMaxBackoff   = time.Minute
)

// Common scheduler errors.
var (
	ErrUnknownDefinition = errors.New("unknown job definition")
	ErrUnknownKind       = errors.New("no handler registered for job kind")
	ErrInvalidDefinition = errors.New("job definition id and kind are required")
)

// Options configures a Scheduler. Zero values take the defaults above.
type Options struct {
	Workers      int
	PollInterval time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
	Clock        func() time.Time
	Logger       zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Scheduler holds job definitions and their pending tasks in memory and
// dispatches due tasks to registered handlers through a bounded worker pool.
type Scheduler struct {
	opts Options
	log  zerolog.Logger

	mu       sync.Mutex
	handlers map[Kind]Handler
	defs     map[string]*Definition
	pending  map[string]*Task
	running  map[string]bool // task ids
	busy     map[string]int  // definition id -> running tasks
	dead     []DeadLetter
}

// New returns a scheduler with no definitions.
func New(opts Options) *Scheduler {
	opts = opts.withDefaults()
	return &Scheduler{
		opts:     opts,
		log:      opts.Logger,
		handlers: make(map[Kind]Handler),
		defs:     make(map[string]*Definition),
		pending:  make(map[string]*Task),
		running:  make(map[string]bool),
		busy:     make(map[string]int),
	}
}

// Register installs the handler for a job kind, replacing any previous one.
func (s *Scheduler) Register(kind Kind, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = h
}

// Define adds a job definition. Defining an existing id is a no-op.
func (s *Scheduler) Define(def Definition) error {
	if def.ID == "" || def.Kind == "" {
		return ErrInvalidDefinition
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handlers[def.Kind]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, def.Kind)
	}
	if _, ok := s.defs[def.ID]; ok {
		return nil
	}
	d := def
	s.defs[def.ID] = &d
	return nil
}

// Definition returns a copy of the definition with the given id.
func (s *Scheduler) Definition(id string) (Definition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[id]
	if !ok {
		return Definition{}, false
	}
	return *d, true
}

// HasDefinition reports whether a definition exists.
func (s *Scheduler) HasDefinition(id string) bool {
	_, ok := s.Definition(id)
	return ok
}

// Submit queues a task under its definition and returns the task id.
// A zero RunAt means run now. Submitting an id that is already pending or
// running is a no-op, which keeps resubmission after a partial failure safe.
func (s *Scheduler) Submit(task Task) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.defs[task.DefinitionID]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDefinition, task.DefinitionID)
	}
	if task.ID == "" {
		task.ID = ulid.Make().String()
	}
	if _, ok := s.pending[task.ID]; ok {
		return task.ID, nil
	}
	if s.running[task.ID] {
		return task.ID, nil
	}
	if task.RunAt.IsZero() {
		task.RunAt = s.opts.Clock()
	}

	t := task
	s.pending[t.ID] = &t
	return t.ID, nil
}

// DeleteDefinition removes a definition together with its pending tasks.
// Running tasks finish, but their reschedule decisions are dropped.
func (s *Scheduler) DeleteDefinition(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.defs, id)
	for taskID, t := range s.pending {
		if t.DefinitionID == id {
			delete(s.pending, taskID)
		}
	}
}

// SuspendDefinition stops dispatching tasks of the definition.
func (s *Scheduler) SuspendDefinition(id string) error {
	return s.setSuspended(id, true)
}

// ActivateDefinition resumes dispatching tasks of the definition.
func (s *Scheduler) ActivateDefinition(id string) error {
	return s.setSuspended(id, false)
}

func (s *Scheduler) setSuspended(id string, suspended bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.defs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDefinition, id)
	}
	d.Suspended = suspended
	return nil
}

// PendingTasks returns the number of queued tasks of a definition.
func (s *Scheduler) PendingTasks(definitionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.pending {
		if t.DefinitionID == definitionID {
			n++
		}
	}
	return n
}

// DeadLetters returns the tasks that exhausted their attempts.
func (s *Scheduler) DeadLetters() []DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DeadLetter, len(s.dead))
	copy(out, s.dead)
	return out
}

// Run dispatches due tasks every poll interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	s.log.Info().Int("workers", s.opts.Workers).Dur("poll_interval", s.opts.PollInterval).Msg("scheduler started")
	for {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Drain calls RunOnce until a round dispatches nothing or maxRounds is reached.
// It returns the total number of executed tasks.
func (s *Scheduler) Drain(ctx context.Context, maxRounds int) (int, error) {
	total := 0
	for range maxRounds {
		n, err := s.RunOnce(ctx)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
	return total, nil
}

// RunOnce dispatches every task due now and waits for them to finish.
// Exclusive definitions run at most one task per round and none while another
// task of theirs is still running. Handler failures are retried or
// dead-lettered; only context errors are returned.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	due := s.claimDue()
	if len(due) == 0 {
		return 0, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, c := range due {
		g.Go(func() error {
			decision, err := s.execute(gCtx, c)
			s.finish(c, decision, err)
			return nil
		})
	}

	_ = g.Wait()
	return len(due), ctx.Err()
}

// claimed is a task taken off the pending queue together with its handler.
type claimed struct {
	task    Task
	def     Definition
	handler Handler
}

func (s *Scheduler) claimDue() []claimed {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Clock()
	candidates := make([]*Task, 0, len(s.pending))
	for _, t := range s.pending {
		if !t.RunAt.After(now) {
			candidates = append(candidates, t)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RunAt.Equal(candidates[j].RunAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].RunAt.Before(candidates[j].RunAt)
	})

	out := make([]claimed, 0, len(candidates))
	for _, t := range candidates {
		def, ok := s.defs[t.DefinitionID]
		if !ok {
			delete(s.pending, t.ID)
			continue
		}
		if def.Suspended {
			continue
		}
		if def.Exclusive && s.busy[def.ID] > 0 {
			continue
		}
		h, ok := s.handlers[def.Kind]
		if !ok {
			continue
		}

		delete(s.pending, t.ID)
		s.running[t.ID] = true
		s.busy[def.ID]++
		out = append(out, claimed{task: *t, def: *def, handler: h})
	}
	return out
}

// execute runs the handler, turning panics into errors.
func (s *Scheduler) execute(ctx context.Context, c claimed) (decision Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
			s.log.Error().Str("task_id", c.task.ID).Bytes("stack", debug.Stack()).Msg("job handler panicked")
		}
	}()

	s.log.Debug().
		Str("task_id", c.task.ID).
		Str("definition_id", c.def.ID).
		Str("kind", string(c.def.Kind)).
		Int("attempt", c.task.Attempts+1).
		Msg("dispatching task")

	return c.handler(ctx, c.def, c.task)
}

// finish applies the outcome of one execution.
func (s *Scheduler) finish(c claimed, decision Decision, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, c.task.ID)
	s.busy[c.def.ID]--
	if s.busy[c.def.ID] <= 0 {
		delete(s.busy, c.def.ID)
	}

	// The definition was deleted while the task ran.
	if _, ok := s.defs[c.def.ID]; !ok {
		return
	}

	now := s.opts.Clock()
	task := c.task

	if err != nil {
		task.Attempts++
		task.LastError = err.Error()

		if task.Attempts >= s.opts.MaxAttempts {
			s.dead = append(s.dead, DeadLetter{Task: task, Kind: c.def.Kind, FailedAt: now})
			s.log.Error().Err(err).
				Str("task_id", task.ID).
				Str("definition_id", c.def.ID).
				Int("attempts", task.Attempts).
				Msg("task exhausted retries")
			return
		}

		task.RunAt = now.Add(s.backoff(task.Attempts))
		s.pending[task.ID] = &task
		s.log.Warn().Err(err).
			Str("task_id", task.ID).
			Int("attempts", task.Attempts).
			Time("retry_at", task.RunAt).
			Msg("task failed, retrying")
		return
	}

	if decision.Reschedule {
		task.Attempts = 0
		task.LastError = ""
		task.RunAt = now.Add(decision.Delay)
		s.pending[task.ID] = &task
	}
}

// backoff returns the retry delay after the given number of attempts.
func (s *Scheduler) backoff(attempts int) time.Duration {
	d := s.opts.RetryBackoff
	for i := 1; i < attempts && d < s.opts.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, s.opts.MaxBackoff)
}
