package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type Worker interface {
	Start()
	Stop()
}

// periodic runs task immediately on Start and then on every tick until
// Stop. Each run gets its own timeout; Stop cancels a run in flight.
type periodic struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	task     func(ctx context.Context)

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	stopChan  chan struct{}
	done      chan struct{}
}

func (p *periodic) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})
	p.isRunning = true

	p.logger.Info("worker started", "worker", p.name, "interval", p.interval)
	go p.run(ctx)
}

func (p *periodic) Stop() {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = false
	close(p.stopChan)
	p.cancel()
	done := p.done
	p.mu.Unlock()

	<-done
	p.logger.Info("worker stopped", "worker", p.name)
}

func (p *periodic) run(ctx context.Context) {
	defer close(p.done)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	// first run immediately
	p.runOnce(ctx)

	for {
		select {
		case <-ticker.Chan():
			p.runOnce(ctx)
		case <-p.stopChan:
			return
		}
	}
}

func (p *periodic) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker run panicked", "worker", p.name, "panic", r)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	p.task(runCtx)
}
