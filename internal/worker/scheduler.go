package worker

import (
	"log/slog"
	"sync"
	"time"
)

type Scheduler struct {
	workers     []Worker
	stopTimeout time.Duration
	logger      *slog.Logger
	stopped     bool
	mu          sync.RWMutex
}

func NewScheduler(stopTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		workers:     make([]Worker, 0),
		stopTimeout: stopTimeout,
		logger:      logger,
	}
}

func (s *Scheduler) AddWorker(worker Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker)
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.logger.Info("starting scheduler", "workers", len(s.workers))
	for _, worker := range s.workers {
		worker.Start()
	}
}

// Stop stops every worker and waits for them up to the stop timeout.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	workers := append([]Worker(nil), s.workers...)
	s.mu.Unlock()

	s.logger.Info("stopping scheduler")

	var wg sync.WaitGroup
	for _, worker := range workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			w.Stop()
		}(worker)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped gracefully")
	case <-time.After(s.stopTimeout):
		s.logger.Warn("scheduler stop timeout", "timeout", s.stopTimeout)
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.stopped
}
