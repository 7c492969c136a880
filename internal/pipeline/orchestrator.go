package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docuwrite/internal/config"
)

// ErrStopped is returned by Submit once the orchestrator is stopped.
var ErrStopped = errors.New("orchestrator stopped")

// sweepInterval bounds how often expired jobs are evicted.
const sweepInterval = 5 * time.Minute

// Orchestrator queues build jobs and runs them on a fixed worker pool.
// Finished jobs stay queryable until they are older than the job TTL, then
// their workspaces are removed.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	worker  *Worker
	log     *slog.Logger
	workers int
	workDir string

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex // guards queue sends against close
	stopped bool
}

// NewOrchestrator sizes the queue and pool from cfg. Call Start to run it.
func NewOrchestrator(cfg config.Config, worker *Worker, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		worker:  worker,
		log:     log,
		workers: max(cfg.WorkerCount, 1),
		workDir: cfg.WorkDir,
	}
}

// Start launches the build workers and the janitor.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)

	o.wg.Add(o.workers + 1)
	for n := range o.workers {
		go o.run(ctx, n)
	}
	go o.janitor(ctx, sweepInterval)
}

func (o *Orchestrator) run(ctx context.Context, n int) {
	defer o.wg.Done()
	log := o.log.With("worker", n)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-o.queue:
			if !ok {
				return
			}
			log.Debug("picked job", "job_id", job.ID, "waited", time.Since(job.CreatedAt))
			o.worker.Process(ctx, job)
		}
	}
}

func (o *Orchestrator) janitor(ctx context.Context, every time.Duration) {
	defer o.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sweep()
		}
	}
}

// sweep evicts expired jobs and deletes their workspaces.
func (o *Orchestrator) sweep() int {
	expired := o.jobs.Cleanup()
	for _, job := range expired {
		removeWorkspace(o.log, job)
	}
	if len(expired) > 0 {
		o.log.Info("evicted expired jobs", "count", len(expired))
	}
	return len(expired)
}

// Stop cancels running builds and waits for the workers to return.
// Calling it again is a no-op.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit registers job and queues it. A full queue fails the job at once.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "shutting_down")
		return ErrStopped
	}

	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", cap(o.queue))
	}
}

// GetJob returns a job by ID, nil when unknown or evicted.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// Jobs returns snapshots of every known job, oldest first.
func (o *Orchestrator) Jobs() []JobSnapshot {
	return o.jobs.List()
}

// QueueDepth returns the number of jobs waiting for a worker.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// WorkDir is the root under which job workspaces are created.
func (o *Orchestrator) WorkDir() string {
	return o.workDir
}
