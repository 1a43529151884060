package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quickserve/dispatch-api/internal/platform/logger"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// Interval is the time between two runs of every registered task
	Interval time.Duration

	// RunTimeout bounds a single run. If zero, runs are bounded by Interval.
	RunTimeout time.Duration
}

// TaskRunner runs registered tasks on a fixed interval
type TaskRunner struct {
	tasks      []Task
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)

	mu      sync.Mutex
	started bool
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(config TaskRunnerConfig, log *slog.Logger) (*TaskRunner, error) {
	if config.Interval <= 0 {
		return nil, fmt.Errorf("task interval must be positive, got %s", config.Interval)
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = config.Interval
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "task_runner")

	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     log,
		errHandler: func(task Task, err error) {
			log.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}, nil
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Register adds a task. Tasks must be registered before Start.
func (r *TaskRunner) Register(task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("cannot register tasks after start")
	}
	r.tasks = append(r.tasks, task)
	return nil
}

// Start begins running the registered tasks, one goroutine per task
func (r *TaskRunner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("task runner already started")
	}
	r.started = true

	for _, task := range r.tasks {
		r.wg.Add(1)
		go r.loop(task)
	}
	r.logger.Info("task runner started",
		"task_count", len(r.tasks),
		"interval", r.config.Interval.String())
	return nil
}

// Stop gracefully shuts down the task runner, waiting for running tasks
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.logger.Info("task runner stopped")
}

func (r *TaskRunner) loop(task Task) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(task)
		}
	}
}

// runOnce executes a single round of task
func (r *TaskRunner) runOnce(task Task) {
	log := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
	)
	ctx, cancel := context.WithTimeout(logger.WithLogger(r.ctx, log), r.config.RunTimeout)
	defer cancel()

	start := time.Now()
	if err := task.Execute(ctx); err != nil {
		if r.ctx.Err() != nil {
			// Shutting down
			return
		}
		r.errHandler(task, err)
		return
	}
	log.Debug("task run completed", "duration", time.Since(start).String())
}
