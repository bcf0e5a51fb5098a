package streamer

import (
	"context"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-portfolio/internal/logger"
)

const (
	// LivenessInterval is the cadence of the connection health poll.
	LivenessInterval = 5 * time.Second

	// reconnectMinBackoff is the delay after the first failed reconnect.
	reconnectMinBackoff = 5 * time.Second

	// reconnectMaxBackoff caps the delay between reconnect attempts.
	reconnectMaxBackoff = 30 * time.Second
)

// ConnectionFactory produces a fresh, undialed connection. Connections are
// single-use, so the supervisor asks for a new one on every reconnect.
type ConnectionFactory func() *Connection

// registration is the supervisor's own record of one service subscription.
// It outlives any particular connection so it can be replayed after a
// reconnect.
type registration struct {
	symbols   map[string]struct{}
	fields    []int
	callbacks []Callback
}

// Supervisor keeps a streaming session alive: it polls connection health,
// dials replacements with backoff when the session dies, and replays the
// registered subscriptions onto each fresh connection. Subscribe, Unsubscribe
// and SetQOS may be called while disconnected; their effect is applied on the
// next successful connect.
type Supervisor struct {
	factory ConnectionFactory
	logger  *logger.Logger

	livenessInterval time.Duration
	backoffMin       time.Duration
	backoffMax       time.Duration

	mu       sync.Mutex
	conn     *Connection
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	registry map[Service]*registration
	qos      *QOSLevel
}

// NewSupervisor creates a supervisor over factory. Nothing is dialed until
// Start.
func NewSupervisor(factory ConnectionFactory, log *logger.Logger) *Supervisor {
	return &Supervisor{
		factory:          factory,
		logger:           log,
		livenessInterval: LivenessInterval,
		backoffMin:       reconnectMinBackoff,
		backoffMax:       reconnectMaxBackoff,
		registry:         make(map[Service]*registration),
	}
}

// Start dials the first connection and launches the liveness poll. A failed
// initial dial is not fatal: the poll keeps retrying with backoff. Start is
// idempotent while running.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("supervisor already running")

		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	if err := s.connect(runCtx); err != nil {
		s.logger.Error("initial streamer connect failed, will retry", zap.Error(err))
	}

	go s.superviseLoop(runCtx)

	return nil
}

// Stop cancels the liveness poll, waits for it to exit, and disconnects the
// active session. Stop is idempotent.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()

		return
	}

	s.running = false
	cancel := s.cancel
	done := s.done
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	cancel()
	<-done

	if conn != nil {
		conn.Disconnect()
	}

	s.logger.Info("streamer supervisor stopped")
}

// Subscribe records the subscription in the supervisor's registry and, when a
// session is live, forwards it immediately. While disconnected it is queued:
// the next successful connect replays it.
func (s *Supervisor) Subscribe(service Service, symbols []string, fields []int, callback Callback) error {
	s.mu.Lock()
	reg, ok := s.registry[service]
	if !ok {
		reg = &registration{symbols: make(map[string]struct{})}
		s.registry[service] = reg
	}

	for _, sym := range symbols {
		reg.symbols[sym] = struct{}{}
	}

	if len(fields) > 0 {
		reg.fields = append([]int(nil), fields...)
	}

	if callback != nil {
		reg.callbacks = append(reg.callbacks, callback)
	}

	conn := s.conn
	s.mu.Unlock()

	if conn == nil || !conn.IsConnected() {
		s.logger.Info("subscription queued until reconnect",
			zap.String("service", string(service)),
			zap.Strings("symbols", symbols))

		return nil
	}

	return conn.Subscribe(service, symbols, fields, callback)
}

// Unsubscribe prunes the registry and, when connected, forwards the UNSUBS.
// No symbols means the whole service.
func (s *Supervisor) Unsubscribe(service Service, symbols ...string) error {
	s.mu.Lock()
	reg, ok := s.registry[service]
	if !ok {
		s.mu.Unlock()

		return nil
	}

	if len(symbols) == 0 {
		delete(s.registry, service)
	} else {
		for _, sym := range symbols {
			delete(reg.symbols, sym)
		}

		if len(reg.symbols) == 0 {
			delete(s.registry, service)
		}
	}

	conn := s.conn
	s.mu.Unlock()

	if conn == nil || !conn.IsConnected() {
		return nil
	}

	return conn.Unsubscribe(service, symbols...)
}

// SetQOS records the requested cadence and, when connected, applies it
// immediately. The recorded level is re-applied after every reconnect.
func (s *Supervisor) SetQOS(level QOSLevel) error {
	s.mu.Lock()
	s.qos = &level
	conn := s.conn
	s.mu.Unlock()

	if conn == nil || !conn.IsConnected() {
		return nil
	}

	return conn.SetQOS(level)
}

// IsConnected reports whether a live session exists right now.
func (s *Supervisor) IsConnected() bool {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	return conn != nil && conn.IsConnected()
}

// superviseLoop polls session health every LivenessInterval and reconnects
// with backoff when the session has died. It exits only on context
// cancellation; reconnect failures are retried indefinitely.
func (s *Supervisor) superviseLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.livenessInterval)
	defer ticker.Stop()

	b := &backoff.Backoff{
		Min:    s.backoffMin,
		Max:    s.backoffMax,
		Factor: 2,
		Jitter: true,
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.IsConnected() {
				b.Reset()

				continue
			}

			s.logger.Info("streamer connection lost, reconnecting")

			if err := s.connect(ctx); err != nil {
				delay := b.Duration()
				s.logger.Error("reconnect failed",
					zap.Error(err),
					zap.Duration("retry_in", delay))

				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}

				continue
			}

			b.Reset()
		}
	}
}

// connect dials a fresh connection and replays the registry onto it. Each
// service is replayed atomically: callbacks first, then a single SUBS
// covering all of its symbols.
func (s *Supervisor) connect(ctx context.Context) error {
	conn := s.factory()

	if err := conn.Connect(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	old := s.conn
	s.conn = conn

	replay := make(map[Service]registration, len(s.registry))
	for service, reg := range s.registry {
		symbols := make(map[string]struct{}, len(reg.symbols))
		for sym := range reg.symbols {
			symbols[sym] = struct{}{}
		}

		replay[service] = registration{
			symbols:   symbols,
			fields:    append([]int(nil), reg.fields...),
			callbacks: append([]Callback(nil), reg.callbacks...),
		}
	}

	qos := s.qos
	s.mu.Unlock()

	if old != nil {
		old.Disconnect()
	}

	for service, reg := range replay {
		for _, cb := range reg.callbacks {
			conn.AddCallback(service, cb)
		}

		symbols := make([]string, 0, len(reg.symbols))
		for sym := range reg.symbols {
			symbols = append(symbols, sym)
		}

		if len(symbols) == 0 {
			continue
		}

		if err := conn.Subscribe(service, symbols, reg.fields, nil); err != nil {
			s.logger.Error("subscription replay failed",
				zap.String("service", string(service)),
				zap.Error(err))
		}
	}

	if qos != nil {
		if err := conn.SetQOS(*qos); err != nil {
			s.logger.Error("qos replay failed", zap.Error(err))
		}
	}

	return nil
}
