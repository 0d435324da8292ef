// Package worker runs housekeeping jobs on cron schedules.
package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/martinsuchenak/labeld/internal/log"
)

// Task status values.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// TaskHandler is the function executed by a task.
type TaskHandler func(ctx context.Context) error

// Task is a registered recurring job.
type Task struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	Status   string     `json:"status"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	NextRun  time.Time  `json:"next_run"`
	LastErr  string     `json:"last_error,omitempty"`

	entry   cron.EntryID
	handler TaskHandler
}

// Scheduler manages background tasks.
type Scheduler struct {
	mu      sync.RWMutex
	cron    *cron.Cron
	tasks   map[string]*Task
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	log     log.Logger
}

// NewScheduler creates a stopped scheduler. A run that is still going when
// its next slot arrives is skipped.
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		tasks:  make(map[string]*Task),
		ctx:    ctx,
		cancel: cancel,
		log:    log.With("component", "scheduler"),
	}
}

// Register adds a task. schedule is a standard five-field cron expression
// or a descriptor such as "@every 5m".
func (s *Scheduler) Register(name, schedule string, handler TaskHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}
	task := &Task{Name: name, Schedule: schedule, Status: StatusPending, handler: handler}
	id, err := s.cron.AddFunc(schedule, func() { s.runTask(task) })
	if err != nil {
		return fmt.Errorf("scheduling %q: %w", name, err)
	}
	task.entry = id
	s.tasks[name] = task
	s.log.Info("Task registered", "task", name, "schedule", schedule)
	return nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.log.Info("Starting background scheduler", "tasks", len(s.tasks))
	s.cron.Start()
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info("Stopping background scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunNow executes a task immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	task, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("task %q not registered", name)
	}
	s.runTask(task)
	return nil
}

// Tasks returns a snapshot of all tasks ordered by name.
func (s *Scheduler) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		snap := *t
		snap.NextRun = s.cron.Entry(t.entry).Next
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) runTask(task *Task) {
	s.mu.Lock()
	now := time.Now()
	task.Status = StatusRunning
	task.LastRun = &now
	s.mu.Unlock()

	s.log.Debug("Running task", "task", task.Name)
	err := task.handler(s.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		task.Status = StatusFailed
		task.LastErr = err.Error()
		s.log.Error("Task failed", "task", task.Name, "error", err)
		return
	}
	task.Status = StatusCompleted
	task.LastErr = ""
	s.log.Debug("Task completed", "task", task.Name, "duration", time.Since(now).String())
}
