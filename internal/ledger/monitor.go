package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-portfolio/internal/types"
)

// Start launches the order monitor and the streaming delta drain. Start is
// idempotent while running.
func (l *Ledger) Start(ctx context.Context) {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	if l.running {
		l.logger.Warn("ledger monitor already running")

		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.running = true
	l.cancel = cancel
	l.done = make(chan struct{}, 2)

	go l.monitorLoop(runCtx)
	go l.drainQuotes(runCtx)

	l.logger.Info("ledger monitor started",
		zap.Duration("poll", l.config.MonitorInterval),
		zap.Duration("refresh", l.config.RefreshInterval))
}

// Stop cancels the monitor and waits for both goroutines to exit. Stop is
// idempotent.
func (l *Ledger) Stop() {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	if !l.running {
		return
	}

	l.running = false
	l.cancel()

	<-l.done
	<-l.done

	l.logger.Info("ledger monitor stopped")
}

// monitorLoop polls watched orders every MonitorInterval and performs the
// periodic position refresh and snapshot persist.
func (l *Ledger) monitorLoop(ctx context.Context) {
	defer func() { l.done <- struct{}{} }()

	ticker := time.NewTicker(l.config.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.pollOrders(ctx)
			l.maybeRefresh(ctx)
		}
	}
}

// pollOrders re-fetches every non-terminal watched order. Terminal orders
// stay in history but are never polled again, so their callbacks cannot
// re-fire.
func (l *Ledger) pollOrders(ctx context.Context) {
	l.mu.Lock()
	watched := make([]types.Order, 0, len(l.orders))

	for _, order := range l.orders {
		if order.Status.IsTerminal() {
			continue
		}

		watched = append(watched, order)
	}
	l.mu.Unlock()

	for _, order := range watched {
		pollCtx, cancel := context.WithTimeout(ctx, orderPollTimeout)
		fresh, err := l.transport.GetOrder(pollCtx, order.AccountNumber, order.OrderID)

		cancel()

		if err != nil {
			l.logger.Warn("order poll failed",
				zap.Int64("order_id", order.OrderID),
				zap.Error(err))

			continue
		}

		l.applyOrderUpdate(fresh)
	}
}

// maybeRefresh runs the full position refresh and snapshot persist once per
// RefreshInterval.
func (l *Ledger) maybeRefresh(ctx context.Context) {
	l.mu.Lock()
	due := time.Since(l.lastRefresh) >= l.config.RefreshInterval
	if due {
		l.lastRefresh = time.Now()
	}
	l.mu.Unlock()

	if !due {
		return
	}

	if err := l.RefreshPositions(ctx); err != nil {
		l.logger.Warn("periodic refresh incomplete", zap.Error(err))
	}

	if l.config.SnapshotPath == "" {
		return
	}

	if err := l.SaveSnapshot(l.config.SnapshotPath); err != nil {
		l.logger.Error("snapshot persist failed",
			zap.String("path", l.config.SnapshotPath),
			zap.Error(err))
	}
}
