package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type blockingDetector struct {
	started     chan struct{}
	release     chan struct{}
	runs        atomic.Int32
	sawDeadline atomic.Bool
}

func (d *blockingDetector) Run(ctx context.Context) (*DetectorSummary, error) {
	d.runs.Add(1)
	if _, ok := ctx.Deadline(); ok {
		d.sawDeadline.Store(true)
	}
	if d.started != nil {
		d.started <- struct{}{}
		<-d.release
	}
	return &DetectorSummary{}, nil
}

type countingWorker struct {
	runs atomic.Int32
}

func (w *countingWorker) Run(ctx context.Context) (*WorkerSummary, error) {
	w.runs.Add(1)
	return &WorkerSummary{}, nil
}

func TestScheduler_NoOverlap(t *testing.T) {
	detector := &blockingDetector{started: make(chan struct{}), release: make(chan struct{})}
	s := NewScheduler(detector, &countingWorker{}, testConfig(), zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := s.RunDetector(context.Background())
		done <- err
	}()
	<-detector.started

	if _, err := s.RunDetector(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("overlapping run err = %v, want ErrRunInProgress", err)
	}
	// the worker has its own guard
	if _, err := s.RunWorker(context.Background()); err != nil {
		t.Errorf("worker run blocked by detector: %v", err)
	}

	close(detector.release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !detector.sawDeadline.Load() {
		t.Error("run context has no budget deadline")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	cfg := testConfig()
	cfg.DetectorInterval = 5 * time.Millisecond
	cfg.WorkerInterval = 5 * time.Millisecond

	detector := &blockingDetector{}
	worker := &countingWorker{}
	s := NewScheduler(detector, worker, cfg, zerolog.Nop())

	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for (detector.runs.Load() == 0 || worker.runs.Load() == 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if detector.runs.Load() == 0 || worker.runs.Load() == 0 {
		t.Errorf("runs detector=%d worker=%d", detector.runs.Load(), worker.runs.Load())
	}
}
