package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces"
)

var (
	// ErrQueueFull is returned when no more builds can be queued
	ErrQueueFull = errors.New("build queue is full")
	// ErrBuildNotFound is returned for unknown or evicted build IDs
	ErrBuildNotFound = errors.New("build not found")
	// ErrDispatcherClosed is returned after Shutdown has been called
	ErrDispatcherClosed = errors.New("build dispatcher is shut down")
)

// Builder runs a single build
type Builder interface {
	Build(ctx context.Context, req entities.BuildRequest, output io.Writer) (*BuildResult, error)
}

// BuildMetrics receives dispatcher measurements
type BuildMetrics interface {
	SetQueueDepth(n int)
	RecordBuild(status string, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) SetQueueDepth(int)                   {}
func (noopMetrics) RecordBuild(string, time.Duration) {}

// BuildDispatcherConfig holds dispatcher limits
type BuildDispatcherConfig struct {
	// Workers is the number of concurrent builds; Gradle builds of one project should not overlap
	Workers     int
	QueueSize   int
	HistorySize int
	// LogDir receives one <build-id>.log per build; empty discards script output
	LogDir string
}

// BuildDispatcher queues build requests and runs them on a fixed set of workers
type BuildDispatcher struct {
	builder Builder
	metrics BuildMetrics
	logger  interfaces.Logger
	config  BuildDispatcherConfig

	queue chan string

	mu      sync.RWMutex
	jobs    map[string]*entities.BuildJob
	order   []string
	closed  bool
	started bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	newID func() string
	now   func() time.Time
}

// NewBuildDispatcher creates a dispatcher; call Start to launch the workers
func NewBuildDispatcher(builder Builder, config BuildDispatcherConfig, metrics BuildMetrics, logger interfaces.Logger) *BuildDispatcher {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 10
	}
	if config.HistorySize <= 0 {
		config.HistorySize = 100
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &BuildDispatcher{
		builder: builder,
		metrics: metrics,
		logger:  logger,
		config:  config,
		queue:   make(chan string, config.QueueSize),
		jobs:    make(map[string]*entities.BuildJob),
		ctx:     ctx,
		cancel:  cancel,
		newID:   func() string { return uuid.New().String() },
		now:     time.Now,
	}
}

// Start launches the worker goroutines
func (d *BuildDispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Enqueue queues a build and returns a snapshot of the new job
func (d *BuildDispatcher) Enqueue(req entities.BuildRequest) (entities.BuildJob, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return entities.BuildJob{}, ErrDispatcherClosed
	}

	job := &entities.BuildJob{
		ID:       d.newID(),
		Request:  req,
		Status:   entities.BuildQueued,
		QueuedAt: d.now(),
	}

	select {
	case d.queue <- job.ID:
	default:
		return entities.BuildJob{}, ErrQueueFull
	}

	d.jobs[job.ID] = job
	d.order = append(d.order, job.ID)
	d.evictLocked()
	d.metrics.SetQueueDepth(len(d.queue))

	d.logger.Info("build queued",
		interfaces.F("build_id", job.ID),
		interfaces.F("branch", req.Branch),
		interfaces.F("commit", req.Commit))

	return *job, nil
}

// Get returns a snapshot of a job
func (d *BuildDispatcher) Get(id string) (entities.BuildJob, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	job, ok := d.jobs[id]
	if !ok {
		return entities.BuildJob{}, fmt.Errorf("%w: %s", ErrBuildNotFound, id)
	}
	return snapshot(job), nil
}

// List returns snapshots of all retained jobs, oldest first
func (d *BuildDispatcher) List() []entities.BuildJob {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]entities.BuildJob, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, snapshot(d.jobs[id]))
	}
	return out
}

// Shutdown stops accepting builds and waits for queued and running builds.
// When ctx expires first, running builds are canceled.
func (d *BuildDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	started := d.started
	d.mu.Unlock()

	if !started {
		d.cancel()
		d.drainUnstarted()
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *BuildDispatcher) worker(n int) {
	defer d.wg.Done()
	for id := range d.queue {
		d.metrics.SetQueueDepth(len(d.queue))
		d.run(id)
	}
	d.logger.Debug("build worker stopped", interfaces.F("worker", n))
}

func (d *BuildDispatcher) run(id string) {
	d.mu.Lock()
	job, ok := d.jobs[id]
	if !ok {
		d.mu.Unlock()
		return
	}
	job.Status = entities.BuildRunning
	job.StartedAt = d.now()
	req := job.Request
	d.mu.Unlock()

	if err := d.ctx.Err(); err != nil {
		d.finish(id, nil, errors.New("service shutting down"))
		return
	}

	out, logPath, err := d.openLog(id)
	if err != nil {
		d.logger.Warn("build log unavailable", interfaces.F("build_id", id), interfaces.F("error", err))
		out = nopWriteCloser{io.Discard}
	}
	d.mu.Lock()
	job.LogPath = logPath
	d.mu.Unlock()

	d.logger.Info("build started", interfaces.F("build_id", id), interfaces.F("commit", req.Commit))
	result, buildErr := d.builder.Build(d.ctx, req, out)
	if cerr := out.Close(); cerr != nil {
		d.logger.Warn("closing build log", interfaces.F("build_id", id), interfaces.F("error", cerr))
	}

	d.finish(id, result, buildErr)
}

func (d *BuildDispatcher) finish(id string, result *BuildResult, buildErr error) {
	d.mu.Lock()
	job := d.jobs[id]
	job.FinishedAt = d.now()
	if buildErr != nil {
		job.Status = entities.BuildFailed
		job.Error = buildErr.Error()
	} else {
		job.Status = entities.BuildSucceeded
	}
	if result != nil {
		job.Artifacts = result.Artifacts
	}
	duration := job.FinishedAt.Sub(job.StartedAt)
	status := job.Status
	d.mu.Unlock()

	d.metrics.RecordBuild(string(status), duration)
	if buildErr != nil {
		d.logger.Error("build failed", interfaces.F("build_id", id), interfaces.F("error", buildErr))
		return
	}
	d.logger.Info("build succeeded", interfaces.F("build_id", id), interfaces.F("duration", duration.Round(time.Second)))
}

// drainUnstarted fails jobs that were queued but never picked up
func (d *BuildDispatcher) drainUnstarted() {
	for id := range d.queue {
		d.mu.Lock()
		job := d.jobs[id]
		job.Status = entities.BuildFailed
		job.Error = "service shut down before the build started"
		job.FinishedAt = d.now()
		d.mu.Unlock()
	}
	d.metrics.SetQueueDepth(0)
}

// evictLocked drops the oldest finished jobs beyond HistorySize
func (d *BuildDispatcher) evictLocked() {
	excess := len(d.order) - d.config.HistorySize
	if excess <= 0 {
		return
	}

	kept := d.order[:0]
	for _, id := range d.order {
		if excess > 0 && d.jobs[id].Status.Done() {
			delete(d.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	d.order = kept
}

func (d *BuildDispatcher) openLog(id string) (io.WriteCloser, string, error) {
	if d.config.LogDir == "" {
		return nopWriteCloser{io.Discard}, "", nil
	}
	if err := os.MkdirAll(d.config.LogDir, 0750); err != nil {
		return nil, "", err
	}
	path := filepath.Join(d.config.LogDir, id+".log")
	//nolint:gosec // G304: path is built from a generated UUID
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}

func snapshot(job *entities.BuildJob) entities.BuildJob {
	c := *job
	if job.Artifacts != nil {
		c.Artifacts = append([]entities.Artifact(nil), job.Artifacts...)
	}
	return c
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
