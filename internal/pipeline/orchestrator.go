package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docmark/internal/config"
	"github.com/dgallion1/docmark/internal/highlight"
	"github.com/dgallion1/docmark/internal/parser"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("pipeline is stopped")
)

// maxSweepInterval bounds how long finished jobs may outlive their TTL.
const maxSweepInterval = 5 * time.Minute

// QueueStats describes the pipeline load.
type QueueStats struct {
	Depth    int               `json:"depth"`
	Capacity int               `json:"capacity"`
	Workers  int               `json:"workers"`
	Jobs     map[JobStatus]int `json:"jobs"`
}

// Orchestrator feeds uploaded documents through a fixed pool of highlight
// workers.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	stats   *highlight.Stats
	log     *slog.Logger
	workers int
	popts   parser.Options

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewOrchestrator(cfg config.Config, stats *highlight.Stats, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		stats:   stats,
		log:     log,
		workers: cfg.WorkerCount,
		popts:   parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
	}
}

// Start launches the workers and the job sweeper. They exit when ctx is
// done or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)

	for n := 0; n < o.workers; n++ {
		o.wg.Add(1)
		go o.runWorker(ctx, n)
	}

	o.wg.Add(1)
	go o.sweep(ctx, sweepInterval(o.jobs.ttl))

	o.log.Info("pipeline started", "workers", o.workers, "queue_size", cap(o.queue))
}

func (o *Orchestrator) runWorker(ctx context.Context, n int) {
	defer o.wg.Done()
	w := NewWorker(o.popts, o.stats, o.log.With("worker", n))
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-o.queue:
			if !ok {
				return
			}
			w.Process(ctx, job)
		}
	}
}

func (o *Orchestrator) sweep(ctx context.Context, every time.Duration) {
	defer o.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := o.jobs.Cleanup(); n > 0 {
				o.log.Debug("expired jobs removed", "count", n)
			}
		}
	}
}

func sweepInterval(ttl time.Duration) time.Duration {
	every := ttl / 4
	if every > maxSweepInterval {
		every = maxSweepInterval
	}
	if every < time.Second {
		every = time.Second
	}
	return every
}

// Stop closes the queue and waits for in-flight jobs to return. It is safe
// to call more than once.
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

// Submit registers job and queues it. A job that finds the queue full is
// kept in the store as failed so its status can still be polled.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		return ErrStopped
	}

	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return ErrQueueFull
	}
}

func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

func (o *Orchestrator) Stats() QueueStats {
	return QueueStats{
		Depth:    len(o.queue),
		Capacity: cap(o.queue),
		Workers:  o.workers,
		Jobs:     o.jobs.Counts(),
	}
}
