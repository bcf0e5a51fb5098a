package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-portfolio/internal/types"
	"github.com/rxtech-lab/argo-portfolio/pkg/errors"
)

// snapshot is the persisted ledger state. Orders are keyed by stringified
// order id and executions by execution id so the file stays a plain JSON
// object.
type snapshot struct {
	Timestamp  time.Time                  `json:"timestamp"`
	Accounts   map[string]types.Account   `json:"accounts"`
	Orders     map[string]types.Order     `json:"orders"`
	Executions map[string]types.Execution `json:"executions"`
}

// SaveSnapshot writes the ledger state to path as JSON, creating parent
// directories as needed.
func (l *Ledger) SaveSnapshot(path string) error {
	l.mu.Lock()

	snap := snapshot{
		Timestamp:  time.Now(),
		Accounts:   make(map[string]types.Account, len(l.accounts)),
		Orders:     make(map[string]types.Order, len(l.orders)),
		Executions: make(map[string]types.Execution, len(l.executions)),
	}

	for number, account := range l.accounts {
		snap.Accounts[number] = account
	}

	for id, order := range l.orders {
		snap.Orders[strconv.FormatInt(id, 10)] = order
	}

	for _, exec := range l.executions {
		snap.Executions[exec.ExecutionID] = exec
	}

	l.mu.Unlock()

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeSnapshotWriteFailed, "failed to encode snapshot", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeSnapshotWriteFailed, "failed to create snapshot directory", err)
		}
	}

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeSnapshotWriteFailed, "failed to write snapshot", err)
	}

	l.logger.Info("snapshot saved",
		zap.String("path", path),
		zap.Int("accounts", len(snap.Accounts)),
		zap.Int("orders", len(snap.Orders)),
		zap.Int("executions", len(snap.Executions)))

	return nil
}

// LoadSnapshot restores ledger state from path. A missing file is not an
// error: the ledger simply starts empty. Loaded non-terminal orders go back
// under monitoring; loaded executions are marked processed so they cannot be
// derived again.
func (l *Ledger) LoadSnapshot(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Info("no snapshot to load", zap.String("path", path))

			return nil
		}

		return errors.Wrap(errors.ErrCodeSnapshotReadFailed, "failed to read snapshot", err)
	}

	var snap snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return errors.Wrap(errors.ErrCodeSnapshotReadFailed, "failed to decode snapshot", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, account := range snap.Accounts {
		l.commitAccount(account)
	}

	rearmed := 0

	for key, order := range snap.Orders {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id != order.OrderID {
			l.logger.Warn("skipping snapshot order with inconsistent id",
				zap.String("key", key),
				zap.Int64("order_id", order.OrderID))

			continue
		}

		l.orders[id] = order

		if !order.Status.IsTerminal() {
			rearmed++
		}
	}

	restored := make([]types.Execution, 0, len(snap.Executions))

	for _, exec := range snap.Executions {
		if _, seen := l.processed[exec.ExecutionID]; seen {
			continue
		}

		l.processed[exec.ExecutionID] = struct{}{}
		restored = append(restored, exec)
	}

	// Map iteration order is random; keep the history chronological.
	sort.Slice(restored, func(i, j int) bool {
		if restored[i].Timestamp.Equal(restored[j].Timestamp) {
			return restored[i].ExecutionID < restored[j].ExecutionID
		}

		return restored[i].Timestamp.Before(restored[j].Timestamp)
	})

	l.executions = append(l.executions, restored...)

	l.logger.Info("snapshot loaded",
		zap.String("path", path),
		zap.Time("taken_at", snap.Timestamp),
		zap.Int("accounts", len(snap.Accounts)),
		zap.Int("orders", len(snap.Orders)),
		zap.Int("rearmed_orders", rearmed),
		zap.Int("executions", len(snap.Executions)))

	return nil
}
