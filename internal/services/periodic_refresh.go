package services

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
)

// Refresher reloads a cached data set
type Refresher interface {
	Refresh(ctx context.Context) error
}

// PeriodicRefreshService keeps cached campus data warm so searches rarely
// wait on the backend
type PeriodicRefreshService struct {
	refresher Refresher
	interval  time.Duration

	// Background refresh control
	mu       sync.Mutex
	stopChan chan struct{}
	running  bool
}

// NewPeriodicRefreshService creates a new periodic refresh service
func NewPeriodicRefreshService(refresher Refresher, interval time.Duration) *PeriodicRefreshService {
	return &PeriodicRefreshService{
		refresher: refresher,
		interval:  interval,
	}
}

// StartPeriodicRefresh refreshes immediately and then every interval
func (p *PeriodicRefreshService) StartPeriodicRefresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil // Already running
	}

	p.running = true
	p.stopChan = make(chan struct{})

	ctx = logging.EnsureLogger(ctx)
	logging.Infow(ctx, "Starting periodic refresh", "interval", p.interval)

	go p.refreshLoop(ctx, p.stopChan)

	return nil
}

// Stop gracefully stops the periodic refresh
func (p *PeriodicRefreshService) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}

	p.running = false
	close(p.stopChan)
}

// refreshLoop runs the periodic refresh in background
func (p *PeriodicRefreshService) refreshLoop(ctx context.Context, stop chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			err, _ := errors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			logging.Errorw(ctx, "Periodic refresh: recovered from panic",
				"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Do initial refresh immediately
	p.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			logging.Infow(ctx, "Periodic refresh stopping due to context cancellation")
			return
		case <-stop:
			logging.Infow(ctx, "Periodic refresh stopping due to stop signal")
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *PeriodicRefreshService) refresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if err := p.refresher.Refresh(refreshCtx); err != nil {
		logging.Warnw(ctx, "Periodic refresh failed", "error", err)
	} else {
		logging.Debugw(ctx, "Periodic refresh: cache updated")
	}
}

// IsRunning returns whether periodic refresh is active
func (p *PeriodicRefreshService) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
