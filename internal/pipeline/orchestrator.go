package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrAlreadyQueued is returned by Submit when the same source document is
// already waiting or being processed.
var ErrAlreadyQueued = errors.New("document already queued")

// Options sizes the orchestrator.
type Options struct {
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration
}

// Orchestrator queues document jobs and runs them on a fixed worker pool.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	worker *Worker
	log    *slog.Logger
	opts   Options

	mu     sync.Mutex
	active map[string]string // source path -> job id

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(opts Options, worker *Worker, log *slog.Logger) *Orchestrator {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = 100
	}
	if opts.JobTTL <= 0 {
		opts.JobTTL = time.Hour
	}
	return &Orchestrator{
		jobs:   NewJobStore(opts.JobTTL),
		queue:  make(chan *Job, opts.MaxQueueSize),
		worker: worker,
		log:    log,
		opts:   opts,
		active: make(map[string]string),
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.opts.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.worker.Process(workerCtx, job)
					o.release(job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Reserve claims the job's source path before the file is written, so a
// caller can refuse a duplicate without touching the source of a queued or
// running job. A reservation is kept by Submit and dropped by Release.
func (o *Orchestrator) Reserve(job *Job) error {
	src := job.Source()
	o.mu.Lock()
	defer o.mu.Unlock()
	if id, ok := o.active[src]; ok && id != job.ID {
		return fmt.Errorf("%w: %s (job %s)", ErrAlreadyQueued, job.Filename, id)
	}
	o.active[src] = job.ID
	return nil
}

// Release drops a reservation that will not be submitted.
func (o *Orchestrator) Release(job *Job) {
	o.release(job)
}

// Submit queues a new job for processing. A source already owned by
// another queued or running job is refused with ErrAlreadyQueued.
func (o *Orchestrator) Submit(job *Job) error {
	if err := o.Reserve(job); err != nil {
		return err
	}

	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.log.Debug("job queued", "job_id", job.ID, "filename", job.Filename)
		return nil
	default:
		o.release(job)
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.opts.MaxQueueSize)
	}
}

func (o *Orchestrator) release(job *Job) {
	o.mu.Lock()
	defer o.mu.Unlock()
	// The worker moves the source while archiving, so match on the id.
	for src, id := range o.active {
		if id == job.ID {
			delete(o.active, src)
			return
		}
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
