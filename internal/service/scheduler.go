package service

import (
	"context"
	"lp-tracker/internal/config"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type DetectorRunner interface {
	Run(ctx context.Context) (*DetectorSummary, error)
}

type WorkerRunner interface {
	Run(ctx context.Context) (*WorkerSummary, error)
}

// Scheduler triggers detector and worker runs, either on its own tickers or
// from the cron endpoints. A run of a component never overlaps another run
// of the same component, and every run is bounded by the configured budget.
type Scheduler struct {
	detector DetectorRunner
	worker   WorkerRunner
	cfg      *config.Config
	logger   zerolog.Logger

	detectMu sync.Mutex
	workMu   sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(detector DetectorRunner, worker WorkerRunner, cfg *config.Config, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		detector: detector,
		worker:   worker,
		cfg:      cfg,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) RunDetector(ctx context.Context) (*DetectorSummary, error) {
	if !s.detectMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.detectMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunBudget)
	defer cancel()
	return s.detector.Run(ctx)
}

func (s *Scheduler) RunWorker(ctx context.Context) (*WorkerSummary, error) {
	if !s.workMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.workMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunBudget)
	defer cancel()
	return s.worker.Run(ctx)
}

// Start launches the tickers. Runs already in flight finish when Stop is
// called; their contexts are cancelled.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.loop(ctx, "detector", s.cfg.DetectorInterval, func(ctx context.Context) error {
		_, err := s.RunDetector(ctx)
		return err
	})
	s.loop(ctx, "worker", s.cfg.WorkerInterval, func(ctx context.Context) error {
		_, err := s.RunWorker(ctx)
		return err
	})

	s.logger.Info().
		Dur("detector_interval", s.cfg.DetectorInterval).
		Dur("worker_interval", s.cfg.WorkerInterval).
		Dur("run_budget", s.cfg.RunBudget).
		Msg("scheduler started")
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := run(ctx); err != nil {
					s.logger.Warn().Err(err).Str("run", name).Msg("scheduled run failed")
				}
			}
		}
	}()
}

func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
