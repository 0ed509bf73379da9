// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/harvest-engine/pkg/types"
)

// Job describes one scheduled harvest: either a whole provider or a
// single service request, re-fetched every Interval.
type Job struct {
	UserID             string
	ProviderID         string
	SrID               string
	Interval           time.Duration
	ExecuteImmediately bool
}

// RunFunc executes one harvest for a job. The context carries the
// per-attempt deadline.
type RunFunc func(ctx context.Context, job Job) error

// Scheduler re-runs harvest jobs on a fixed interval. Failed runs are
// retried up to MaxAttempts times and then logged and abandoned until
// the next tick; a job is never silently dropped.
type Scheduler struct {
	cfg    types.HarvestConfig
	run    RunFunc
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	ctx    context.Context
	wg     sync.WaitGroup
}

// NewScheduler builds a Scheduler around a run function.
func NewScheduler(cfg types.HarvestConfig, run RunFunc, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{cfg: cfg, run: run, logger: logger, ctx: ctx, cancel: cancel}
}

// Schedule starts the interval loop for one job. The call returns
// immediately; the loop runs until Stop.
func (s *Scheduler) Schedule(job Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if job.ExecuteImmediately {
			s.execute(job)
		}

		ticker := time.NewTicker(job.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.execute(job)
			}
		}
	}()
}

// Stop cancels all job loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// execute runs one scheduled harvest with the bounded retry policy.
func (s *Scheduler) execute(job Job) {
	attempts := s.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	timeout := s.cfg.JobTimeout
	if timeout <= 0 {
		timeout = 600 * time.Second
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		err = s.run(ctx, job)
		cancel()
		if err == nil {
			return
		}
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Warn("harvest attempt failed",
			zap.String("provider", job.ProviderID),
			zap.String("service_request", job.SrID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	s.logger.Error("harvest job abandoned until next tick",
		zap.String("user", job.UserID),
		zap.String("provider", job.ProviderID),
		zap.String("service_request", job.SrID),
		zap.Error(err))
}
