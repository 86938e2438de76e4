package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storyforge/internal/artifacts"
	"storyforge/internal/jira"
)

// ErrQueueFull is returned by Submit when the job queue has no room.
var ErrQueueFull = errors.New("job queue is full")

// Orchestrator owns the job queue and the worker goroutines that drain it.
type Orchestrator struct {
	worker *Worker
	jobs   *JobStore
	queue  chan *Job

	jiraClient *jira.Client
	cache      *artifacts.Store

	workerCount int
	log         *slog.Logger
	wg          sync.WaitGroup
	cancel      context.CancelFunc
}

func NewOrchestrator(worker *Worker, jobs *JobStore, jc *jira.Client, cache *artifacts.Store,
	workerCount, maxQueueSize int, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		worker:      worker,
		jobs:        jobs,
		queue:       make(chan *Job, maxQueueSize),
		jiraClient:  jc,
		cache:       cache,
		workerCount: workerCount,
		log:         log,
	}
}

// Start launches the worker pool and the job-store janitor.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)

	for i := range o.workerCount {
		o.wg.Add(1)
		go o.run(ctx, i)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()

	o.log.Info("orchestrator started", "workers", o.workerCount, "queue_size", cap(o.queue))
}

// Stop cancels in-flight work and waits for the workers to exit.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context, id int) {
	defer o.wg.Done()
	log := o.log.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-o.queue:
			log.Info("job started", "job_id", job.ID, "epic", job.EpicKey)
			o.worker.Process(ctx, job)
			snap := job.Snapshot()
			log.Info("job finished", "job_id", job.ID, "epic", job.EpicKey,
				"status", snap.Status, "issues", len(snap.Progress.IssuesCreated))
		}
	}
}

// Submit registers and enqueues an expansion job. At most one job per epic
// may be in flight; concurrent expansions would race on the epic description.
func (o *Orchestrator) Submit(epicKey, storyID string, force bool) (*Job, error) {
	if o.jobs.ActiveForEpic(epicKey) {
		return nil, fmt.Errorf("an expansion for %s is already in flight", epicKey)
	}
	job := NewJob(epicKey, storyID, force)
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return job, nil
	default:
		job.AddError("queue full")
		job.SetStatus(StatusFailed, "queued")
		return nil, fmt.Errorf("%w (%d pending)", ErrQueueFull, cap(o.queue))
	}
}

func (o *Orchestrator) GetJob(id string) *Job { return o.jobs.Get(id) }

func (o *Orchestrator) QueueDepth() int { return len(o.queue) }

// JiraClient exposes the tracker client for read-only API handlers.
func (o *Orchestrator) JiraClient() *jira.Client { return o.jiraClient }

// ArtifactStore exposes the draft cache for the purge handler.
func (o *Orchestrator) ArtifactStore() *artifacts.Store { return o.cache }
