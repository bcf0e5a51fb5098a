// Package ledger maintains a reconciled view of brokerage accounts: REST
// snapshots as the source of truth, streaming quotes as a price overlay, and
// a polling monitor that tracks order lifecycles and derives executions.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-portfolio/internal/logger"
	"github.com/rxtech-lab/argo-portfolio/internal/transport"
	"github.com/rxtech-lab/argo-portfolio/internal/types"
	"github.com/rxtech-lab/argo-portfolio/pkg/errors"
)

const (
	// DefaultMonitorInterval is the order poll cadence.
	DefaultMonitorInterval = time.Second

	// DefaultRefreshInterval is the cadence of the full position refresh and
	// snapshot persist.
	DefaultRefreshInterval = 60 * time.Second

	// DefaultCorrelationWindow is how far back order history is searched when
	// recovering the id of a freshly placed order.
	DefaultCorrelationWindow = 5 * time.Minute

	// DefaultQuoteBuffer is the capacity of the streaming delta queue.
	DefaultQuoteBuffer = 256

	// orderPollTimeout bounds each per-order status fetch.
	orderPollTimeout = 10 * time.Second
)

// Config tunes the ledger's monitoring and persistence behavior. Zero values
// select the defaults.
type Config struct {
	// SnapshotPath is where the JSON snapshot is persisted. Empty disables
	// periodic persistence.
	SnapshotPath string `json:"snapshot_path" yaml:"snapshot_path"`

	MonitorInterval   time.Duration `json:"monitor_interval" yaml:"monitor_interval"`
	RefreshInterval   time.Duration `json:"refresh_interval" yaml:"refresh_interval"`
	CorrelationWindow time.Duration `json:"correlation_window" yaml:"correlation_window"`
	QuoteBuffer       int           `json:"quote_buffer" yaml:"quote_buffer"`
}

func (c Config) withDefaults() Config {
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = DefaultMonitorInterval
	}

	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}

	if c.CorrelationWindow <= 0 {
		c.CorrelationWindow = DefaultCorrelationWindow
	}

	if c.QuoteBuffer <= 0 {
		c.QuoteBuffer = DefaultQuoteBuffer
	}

	return c
}

// OrderCallback is invoked when a watched order changes status. Callbacks
// fire in registration order on the monitor goroutine.
type OrderCallback func(previous types.OrderStatus, order types.Order)

// OrderFilter narrows GetOrderHistory results. Zero fields match everything.
type OrderFilter struct {
	AccountNumber string
	Status        types.OrderStatus
}

// ExecutionFilter narrows GetExecutionHistory results. Zero fields match
// everything.
type ExecutionFilter struct {
	OrderID int64
}

type quoteDelta struct {
	symbol string
	price  float64
}

// Ledger is the reconciled portfolio state. A single mutex owns all maps;
// network calls always happen outside the lock, and their results are
// committed as wholesale replacements under it.
type Ledger struct {
	transport transport.Transport
	logger    *logger.Logger
	config    Config

	mu          sync.Mutex
	accounts    map[string]types.Account
	positions   map[string]map[string]types.Position
	orders      map[int64]types.Order
	executions  []types.Execution
	processed   map[string]struct{}
	callbacks   []OrderCallback
	lastPrices  map[string]float64
	lastRefresh time.Time

	quotes chan quoteDelta

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewLedger creates a ledger over the given transport. Nothing is fetched
// until AddAccount is called; the monitor is idle until Start.
func NewLedger(tr transport.Transport, config Config, log *logger.Logger) *Ledger {
	config = config.withDefaults()

	return &Ledger{
		transport:  tr,
		logger:     log,
		config:     config,
		accounts:   make(map[string]types.Account),
		positions:  make(map[string]map[string]types.Position),
		orders:     make(map[int64]types.Order),
		processed:  make(map[string]struct{}),
		lastPrices: make(map[string]float64),
		quotes:     make(chan quoteDelta, config.QuoteBuffer),
	}
}

// AddAccount fetches a full snapshot of accountNumber, including positions,
// and begins tracking it. Re-adding an account replaces its state wholesale.
func (l *Ledger) AddAccount(ctx context.Context, accountNumber string) error {
	account, err := l.transport.GetAccount(ctx, accountNumber, true)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.commitAccount(account)
	l.mu.Unlock()

	l.logger.Info("account added",
		zap.String("account", accountNumber),
		zap.Int("positions", len(account.Positions)))

	return nil
}

// commitAccount replaces the stored account and rebuilds its position map.
// Caller holds l.mu.
func (l *Ledger) commitAccount(account types.Account) {
	l.accounts[account.AccountNumber] = account

	bySymbol := make(map[string]types.Position, len(account.Positions))

	for _, pos := range account.Positions {
		symbol := pos.Instrument.EffectiveSymbol()
		if symbol == "" {
			l.logger.Warn("dropping position with no resolvable symbol",
				zap.String("account", account.AccountNumber),
				zap.String("description", pos.Instrument.Description))

			continue
		}

		bySymbol[symbol] = pos
	}

	l.positions[account.AccountNumber] = bySymbol
}

// RefreshPositions re-fetches every tracked account and replaces its state.
// Accounts that fail to fetch keep their previous state; the first error is
// returned after all accounts have been attempted.
func (l *Ledger) RefreshPositions(ctx context.Context) error {
	l.mu.Lock()
	numbers := make([]string, 0, len(l.accounts))
	for n := range l.accounts {
		numbers = append(numbers, n)
	}
	l.mu.Unlock()

	var firstErr error

	for _, number := range numbers {
		account, err := l.transport.GetAccount(ctx, number, true)
		if err != nil {
			l.logger.Error("position refresh failed",
				zap.String("account", number),
				zap.Error(err))

			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		l.mu.Lock()
		l.commitAccount(account)
		l.lastRefresh = time.Now()
		l.mu.Unlock()
	}

	return firstErr
}

// PlaceOrder submits the ticket and attempts to recover the venue-assigned
// order id by scanning recent order history for a matching type and quantity.
// When no match is found the order is still live at the venue: the sentinel
// types.UnknownOrderID is returned with a nil error and a warning is logged.
// A recovered order is placed under monitoring automatically.
func (l *Ledger) PlaceOrder(ctx context.Context, accountNumber string, ticket types.OrderTicket) (int64, error) {
	if err := ticket.Validate(); err != nil {
		return types.UnknownOrderID, err
	}

	if err := l.transport.PlaceOrder(ctx, accountNumber, ticket); err != nil {
		return types.UnknownOrderID, err
	}

	now := time.Now()

	recent, err := l.transport.GetOrders(ctx, accountNumber, now.Add(-l.config.CorrelationWindow), now, "")
	if err != nil {
		l.logger.Warn("order placed but history fetch failed, id unknown",
			zap.String("account", accountNumber),
			zap.Error(err))

		return types.UnknownOrderID, nil
	}

	// Newest first so concurrent identical tickets correlate to the most
	// recent submission.
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].EnteredTime.After(recent[j].EnteredTime)
	})

	for _, order := range recent {
		if !ticket.Matches(order) {
			continue
		}

		l.mu.Lock()
		l.orders[order.OrderID] = order
		l.mu.Unlock()

		l.logger.Info("order placed",
			zap.String("account", accountNumber),
			zap.Int64("order_id", order.OrderID),
			zap.String("symbol", ticket.Symbol))

		return order.OrderID, nil
	}

	l.logger.Warn("order placed but could not be correlated to an order id",
		zap.String("account", accountNumber),
		zap.String("symbol", ticket.Symbol),
		zap.Float64("quantity", ticket.Quantity))

	return types.UnknownOrderID, nil
}

// CancelOrder cancels a watched order and immediately re-fetches its status
// and the account's positions so the ledger reflects the cancellation without
// waiting for the next monitor tick.
func (l *Ledger) CancelOrder(ctx context.Context, accountNumber string, orderID int64) error {
	if orderID == types.UnknownOrderID {
		return errors.New(errors.ErrCodeOrderIDUnknown,
			"cannot cancel an order whose id was never recovered")
	}

	if err := l.transport.CancelOrder(ctx, accountNumber, orderID); err != nil {
		return err
	}

	if order, err := l.transport.GetOrder(ctx, accountNumber, orderID); err == nil {
		l.applyOrderUpdate(order)
	} else {
		l.logger.Warn("post-cancel status fetch failed",
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}

	if err := l.RefreshPositions(ctx); err != nil {
		l.logger.Warn("post-cancel position refresh failed", zap.Error(err))
	}

	return nil
}

// MonitorOrders registers a callback for order status changes. Callbacks
// fire in registration order.
func (l *Ledger) MonitorOrders(callback OrderCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.callbacks = append(l.callbacks, callback)
}

// WatchOrder places an already-known order under monitoring, for orders
// obtained outside PlaceOrder.
func (l *Ledger) WatchOrder(order types.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.orders[order.OrderID]; !ok {
		l.orders[order.OrderID] = order
	}
}

// GetOrderHistory returns watched orders matching the filter, newest first.
func (l *Ledger) GetOrderHistory(filter OrderFilter) []types.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	orders := make([]types.Order, 0, len(l.orders))

	for _, order := range l.orders {
		if filter.AccountNumber != "" && order.AccountNumber != filter.AccountNumber {
			continue
		}

		if filter.Status != "" && order.Status != filter.Status {
			continue
		}

		orders = append(orders, order)
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].EnteredTime.After(orders[j].EnteredTime)
	})

	return orders
}

// GetExecutionHistory returns derived executions matching the filter, in
// derivation order.
func (l *Ledger) GetExecutionHistory(filter ExecutionFilter) []types.Execution {
	l.mu.Lock()
	defer l.mu.Unlock()

	executions := make([]types.Execution, 0, len(l.executions))

	for _, exec := range l.executions {
		if filter.OrderID != 0 && exec.OrderID != filter.OrderID {
			continue
		}

		executions = append(executions, exec)
	}

	return executions
}

// applyOrderUpdate commits a fresh order state and, when the status changed,
// fires callbacks and derives executions. Safe to call from any goroutine.
//
// A recorded terminal status never regresses: fetches run outside the lock,
// so a poll that started before a cancellation can deliver stale WORKING
// after CANCELED was committed. Such updates keep their execution activity
// but the stored status stands and no callbacks fire.
func (l *Ledger) applyOrderUpdate(order types.Order) {
	l.mu.Lock()

	previous, watched := l.orders[order.OrderID]

	changed := false

	switch {
	case watched && previous.Status.IsTerminal():
		if order.Status != previous.Status {
			l.logger.Warn("dropping stale order update over terminal status",
				zap.Int64("order_id", order.OrderID),
				zap.String("stored", string(previous.Status)),
				zap.String("incoming", string(order.Status)))
		}
	case watched:
		l.orders[order.OrderID] = order
		changed = previous.Status != order.Status
	default:
		l.orders[order.OrderID] = order
		changed = order.Status != ""
	}

	var newExecutions []types.Execution

	for _, activity := range order.ActivityCollection {
		if activity.ActivityType != types.ActivityTypeExecution {
			continue
		}

		for _, leg := range activity.ExecutionLegs {
			exec := types.NewExecution(order.OrderID, activity, leg)
			if _, seen := l.processed[exec.ExecutionID]; seen {
				continue
			}

			l.processed[exec.ExecutionID] = struct{}{}
			l.executions = append(l.executions, exec)
			newExecutions = append(newExecutions, exec)
		}
	}

	callbacks := append([]OrderCallback(nil), l.callbacks...)
	l.mu.Unlock()

	for _, exec := range newExecutions {
		l.logger.Info("execution recorded",
			zap.String("execution_id", exec.ExecutionID),
			zap.Int64("order_id", exec.OrderID),
			zap.Float64("quantity", exec.Quantity),
			zap.Float64("price", exec.Price))
	}

	if !changed {
		return
	}

	l.logger.Info("order status changed",
		zap.Int64("order_id", order.OrderID),
		zap.String("from", string(previous.Status)),
		zap.String("to", string(order.Status)))

	for _, cb := range callbacks {
		l.fireCallback(cb, previous.Status, order)
	}
}

// fireCallback isolates one callback invocation so a panicking consumer
// cannot take down the monitor.
func (l *Ledger) fireCallback(cb OrderCallback, previous types.OrderStatus, order types.Order) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("order callback panicked",
				zap.Int64("order_id", order.OrderID),
				zap.Any("panic", r))
		}
	}()

	cb(previous, order)
}

// Accounts returns a copy of the tracked account snapshots.
func (l *Ledger) Accounts() []types.Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	accounts := make([]types.Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		accounts = append(accounts, a)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountNumber < accounts[j].AccountNumber
	})

	return accounts
}
