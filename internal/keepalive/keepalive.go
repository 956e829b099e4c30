// Package keepalive refreshes cached sudo credentials while long-running
// maintenance steps execute.
package keepalive

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Refresher runs one credential refresh.
type Refresher func(ctx context.Context) error

// SudoRefresh runs `sudo -n -v`, which never prompts.
func SudoRefresh(ctx context.Context) error {
	return exec.CommandContext(ctx, "sudo", "-n", "-v").Run()
}

// KeepAlive periodically calls Refresh until stopped.
type KeepAlive struct {
	Interval time.Duration
	Refresh  Refresher
	Logger   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start begins refreshing in the background. Starting twice is a no-op.
func (k *KeepAlive) Start(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cancel != nil {
		return
	}
	interval := k.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	refresh := k.Refresh
	if refresh == nil {
		refresh = SudoRefresh
	}
	ctx, k.cancel = context.WithCancel(ctx)
	k.done = make(chan struct{})
	go k.loop(ctx, interval, refresh, k.done)
}

func (k *KeepAlive) loop(ctx context.Context, interval time.Duration, refresh Refresher, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := refresh(ctx); err != nil && ctx.Err() == nil {
				k.Logger.Warn().Err(err).Msg("credential refresh failed")
			}
		}
	}
}

// Stop ends the background refresh and waits for it to exit. Safe to call
// when not started and more than once.
func (k *KeepAlive) Stop() {
	k.mu.Lock()
	cancel, done := k.cancel, k.done
	k.cancel, k.done = nil, nil
	k.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
