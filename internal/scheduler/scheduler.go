package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/invopeak/fakturaserie/internal/domain/lease"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/types"
)

// Job is a named periodic task. The name doubles as the lease key, so at most
// one instance in the cluster runs a given job at a time.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives the periodic dispatch jobs. Every tick it tries to claim
// the job's lease; ticks that lose the claim are skipped, not queued.
type Scheduler struct {
	leaseRepo lease.Repository
	leaseTTL  time.Duration
	logger    *logger.Logger
	holder    string

	jobs   []Job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler with a cluster-unique holder identity
func New(leaseRepo lease.Repository, leaseTTL time.Duration, logger *logger.Logger) *Scheduler {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &Scheduler{
		leaseRepo: leaseRepo,
		leaseTTL:  leaseTTL,
		logger:    logger,
		holder:    fmt.Sprintf("%s-%s", hostname, types.GenerateUUID()),
	}
}

// Register adds a job; must be called before Start
func (s *Scheduler) Register(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start launches one loop per registered job
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, job)
	}

	s.logger.Infow("scheduler started", "jobs", len(s.jobs), "holder", s.holder)
}

// Stop cancels all loops and waits for in-flight runs to finish
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Infow("scheduler stopped", "holder", s.holder)
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, job)
		}
	}
}

// runJob executes one guarded run. The run context expires with the lease so
// a stalled run cannot outlive its claim.
func (s *Scheduler) runJob(ctx context.Context, job Job) {
	acquired, err := s.leaseRepo.Acquire(ctx, job.Name, s.holder, s.leaseTTL)
	if err != nil {
		s.logger.Errorw("failed to acquire lease", "error", err, "job", job.Name)
		return
	}
	if !acquired {
		s.logger.Debugw("lease held elsewhere, skipping run", "job", job.Name)
		return
	}

	defer func() {
		if err := s.leaseRepo.Release(context.WithoutCancel(ctx), job.Name, s.holder); err != nil {
			s.logger.Errorw("failed to release lease", "error", err, "job", job.Name)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.leaseTTL)
	defer cancel()

	if err := job.Run(runCtx); err != nil {
		s.logger.Errorw("job run failed", "error", err, "job", job.Name)
	}
}
