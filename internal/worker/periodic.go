package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Periodic runs one task on a ticker until stopped.
type Periodic struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context) error
	logger   *zap.Logger
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	kick     chan struct{}
}

// NewPeriodic creates a ticker loop. A non-positive interval defaults to one hour.
func NewPeriodic(name string, interval time.Duration, task func(ctx context.Context) error, logger *zap.Logger) *Periodic {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Periodic{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}
}

// Start runs the task once immediately and then on every tick. Call Stop to release resources.
func (p *Periodic) Start(parent context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.run(ctx)
	p.logger.Info("periodic task started", zap.String("task", p.name), zap.Duration("interval", p.interval))
}

// Stop stops the loop and waits for a running task to return.
func (p *Periodic) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	<-p.done
	p.logger.Info("periodic task stopped", zap.String("task", p.name))
}

// Trigger runs the task on the next loop iteration without waiting for the tick.
func (p *Periodic) Trigger() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *Periodic) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.once(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.once(ctx)
		case <-p.kick:
			p.once(ctx)
		}
	}
}

func (p *Periodic) once(ctx context.Context) {
	start := time.Now()
	if err := p.task(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("periodic task failed", zap.String("task", p.name), zap.Error(err))
		return
	}
	p.logger.Debug("periodic task done", zap.String("task", p.name), zap.Duration("took", time.Since(start)))
}
