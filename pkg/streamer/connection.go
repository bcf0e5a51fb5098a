package streamer

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-portfolio/internal/logger"
	"github.com/rxtech-lab/argo-portfolio/pkg/errors"
)

const (
	// HeartbeatInterval is the cadence of the ADMIN keepalive.
	HeartbeatInterval = 30 * time.Second

	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 10 * time.Second

	// loginTimeout bounds the wait for the login ack after dialing.
	loginTimeout = 10 * time.Second

	// writeTimeout bounds every socket write.
	writeTimeout = 10 * time.Second

	// protocolVersion is sent with the login credential.
	protocolVersion = "1.0"
)

// subscription tracks the symbols and fields subscribed on one service.
type subscription struct {
	symbols map[string]struct{}
	fields  []int
}

// Subscription is a read-only copy of one service's subscription state,
// suitable for replaying onto a fresh connection.
type Subscription struct {
	Service Service
	Symbols []string
	Fields  []int
}

// CallbackID identifies a registered callback for later removal.
type CallbackID int64

type registeredCallback struct {
	id CallbackID
	cb Callback
}

// Connection is a single authenticated streaming session. A connection is
// single-use: once the socket dies the connection stays disconnected and a
// new one must be dialed (see Supervisor).
type Connection struct {
	info   StreamerInfo
	tokens TokenSource
	logger *logger.Logger
	dialer *websocket.Dialer

	heartbeatInterval time.Duration

	// writeMu serializes socket writes between callers and the heartbeat.
	writeMu sync.Mutex
	conn    *websocket.Conn

	mu            sync.Mutex
	used          bool
	connected     bool
	subscriptions map[Service]*subscription
	callbacks     map[Service][]registeredCallback

	requestID  atomic.Int64
	callbackID atomic.Int64

	// done is closed when the receive loop exits; it stops the heartbeat.
	done chan struct{}
}

// NewConnection creates a session against the socket URL in info. The
// connection is idle until Connect is called.
func NewConnection(info StreamerInfo, tokens TokenSource, log *logger.Logger) *Connection {
	return &Connection{
		info:   info,
		tokens: tokens,
		logger: log,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		heartbeatInterval: HeartbeatInterval,
		subscriptions:     make(map[Service]*subscription),
		callbacks:         make(map[Service][]registeredCallback),
		done:              make(chan struct{}),
	}
}

// Connect dials the socket, performs the login handshake, and starts the
// receive and heartbeat goroutines. The login ack is awaited synchronously:
// a rejected credential surfaces as ErrCodeStreamAuthFailed, while dial and
// read failures surface as ErrCodeStreamConnectFailed.
func (c *Connection) Connect(ctx context.Context) error {
	if err := c.info.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		c.logger.Warn("already connected to streamer", zap.String("url", c.info.SocketURL))

		return nil
	}

	if c.used {
		c.mu.Unlock()

		return errors.New(errors.ErrCodeStreamConnectFailed, "connection is single use, dial a new one")
	}

	c.used = true
	c.mu.Unlock()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStreamConnectFailed, "failed to obtain access token", err)
	}

	c.logger.Info("connecting to streamer", zap.String("url", c.info.SocketURL))

	conn, _, err := c.dialer.DialContext(ctx, c.info.SocketURL, nil)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStreamConnectFailed, err, "failed to dial %s", c.info.SocketURL)
	}

	c.conn = conn

	if err := c.login(token); err != nil {
		_ = conn.Close()
		c.conn = nil

		return err
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	go c.receiveLoop()
	go c.heartbeatLoop()

	c.logger.Info("connected to streamer")

	return nil
}

// login sends the LOGIN command and blocks until its ack arrives or the
// login deadline passes. Frames other than the login ack are discarded;
// nothing else is expected before a successful login.
func (c *Connection) login(token string) error {
	credential, err := json.Marshal(map[string]any{
		"userid":      c.info.CustomerID,
		"token":       token,
		"company":     c.info.Channel,
		"segment":     c.info.FunctionID,
		"cddomain":    c.info.CorrelationID,
		"usergroup":   "",
		"accesslevel": "",
		"authorized":  "Y",
		"timestamp":   time.Now().UnixMilli(),
		"appid":       "",
		"acl":         "",
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStreamConnectFailed, "failed to encode login credential", err)
	}

	request := c.newRequest(ServiceAdmin, CommandLogin, map[string]string{
		"token":      token,
		"version":    protocolVersion,
		"credential": string(credential),
	})

	if err := c.send(request); err != nil {
		return errors.Wrap(errors.ErrCodeStreamConnectFailed, "failed to send login request", err)
	}

	deadline := time.Now().Add(loginTimeout)
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return errors.Wrap(errors.ErrCodeStreamConnectFailed, "failed to set login deadline", err)
	}

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return errors.Wrap(errors.ErrCodeStreamConnectFailed, "connection lost awaiting login response", err)
		}

		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			c.logger.Warn("discarding undecodable frame during login", zap.Error(err))

			continue
		}

		for _, resp := range f.Response {
			if Command(resp.Command) != CommandLogin {
				continue
			}

			if resp.Content.Code != 0 {
				return errors.Newf(errors.ErrCodeStreamAuthFailed,
					"login rejected with code %d: %s", resp.Content.Code, resp.Content.Msg)
			}

			// Clear the login deadline; the receive loop reads without one.
			if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
				return errors.Wrap(errors.ErrCodeStreamConnectFailed, "failed to clear login deadline", err)
			}

			return nil
		}
	}
}

// Subscribe registers callback (if non-nil) and sends SUBS for symbols on
// service. Symbols merge into the tracked subscription; fields, when
// provided, replace the tracked field list.
func (c *Connection) Subscribe(service Service, symbols []string, fields []int, callback Callback) error {
	if callback != nil {
		c.AddCallback(service, callback)
	}

	c.mu.Lock()
	sub, ok := c.subscriptions[service]
	if !ok {
		sub = &subscription{symbols: make(map[string]struct{})}
		c.subscriptions[service] = sub
	}

	for _, s := range symbols {
		sub.symbols[s] = struct{}{}
	}

	if len(fields) > 0 {
		sub.fields = append([]int(nil), fields...)
	}

	sentFields := sub.fields
	c.mu.Unlock()

	request := c.newRequest(service, CommandSubs, map[string]string{
		"keys":   strings.Join(symbols, ","),
		"fields": joinFields(sentFields),
	})

	if err := c.send(request); err != nil {
		return err
	}

	c.logger.Info("subscribed",
		zap.String("service", string(service)),
		zap.Strings("symbols", symbols))

	return nil
}

// Unsubscribe sends UNSUBS for the given symbols on service. No symbols
// means all tracked symbols. The service's tracked entry is dropped once its
// symbol set empties. Unsubscribing from an untracked service is a no-op.
func (c *Connection) Unsubscribe(service Service, symbols ...string) error {
	c.mu.Lock()
	sub, ok := c.subscriptions[service]
	if !ok {
		c.mu.Unlock()

		return nil
	}

	if len(symbols) == 0 {
		symbols = make([]string, 0, len(sub.symbols))
		for s := range sub.symbols {
			symbols = append(symbols, s)
		}
	}

	for _, s := range symbols {
		delete(sub.symbols, s)
	}

	if len(sub.symbols) == 0 {
		delete(c.subscriptions, service)
	}
	c.mu.Unlock()

	request := c.newRequest(service, CommandUnsubs, map[string]string{
		"keys": strings.Join(symbols, ","),
	})

	return c.send(request)
}

// SetQOS requests a new update cadence for the session.
func (c *Connection) SetQOS(level QOSLevel) error {
	request := c.newRequest(ServiceAdmin, CommandQOS, map[string]string{
		"qoslevel": strconv.Itoa(int(level)),
	})

	return c.send(request)
}

// AddCallback registers a callback for data frames on service and returns an
// id usable with RemoveCallback.
func (c *Connection) AddCallback(service Service, callback Callback) CallbackID {
	id := CallbackID(c.callbackID.Add(1))

	c.mu.Lock()
	c.callbacks[service] = append(c.callbacks[service], registeredCallback{id: id, cb: callback})
	c.mu.Unlock()

	return id
}

// RemoveCallback unregisters a previously added callback.
func (c *Connection) RemoveCallback(service Service, id CallbackID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	registered := c.callbacks[service]
	for i, rc := range registered {
		if rc.id == id {
			c.callbacks[service] = append(registered[:i], registered[i+1:]...)

			return
		}
	}
}

// Disconnect sends a best-effort LOGOUT and closes the socket. It is
// idempotent and never fails: the socket is closed regardless of whether the
// logout could be delivered.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if c.conn == nil {
		return
	}

	if wasConnected {
		logout := c.newRequest(ServiceAdmin, CommandLogout, map[string]string{})
		if err := c.send(logout); err != nil {
			c.logger.Debug("logout delivery failed", zap.Error(err))
		}
	}

	_ = c.conn.Close()

	c.logger.Info("disconnected from streamer")
}

// IsConnected reports whether the session is live. It turns false when the
// receive loop observes a socket error, not merely when Disconnect is called.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// Subscriptions returns a copy of the tracked subscription state for replay
// onto a replacement connection.
func (c *Connection) Subscriptions() []Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := make([]Subscription, 0, len(c.subscriptions))

	for service, sub := range c.subscriptions {
		symbols := make([]string, 0, len(sub.symbols))
		for s := range sub.symbols {
			symbols = append(symbols, s)
		}

		subs = append(subs, Subscription{
			Service: service,
			Symbols: symbols,
			Fields:  append([]int(nil), sub.fields...),
		})
	}

	return subs
}

func (c *Connection) newRequest(service Service, command Command, parameters map[string]string) Request {
	return Request{
		Service:    string(service),
		RequestID:  strconv.FormatInt(c.requestID.Add(1), 10),
		Command:    string(command),
		Account:    c.info.CustomerID,
		Source:     c.info.CorrelationID,
		Parameters: parameters,
	}
}

func (c *Connection) send(request Request) error {
	if c.conn == nil {
		return errors.New(errors.ErrCodeStreamNotConnected, "not connected to streamer")
	}

	payload, err := json.Marshal(requestEnvelope{Requests: []Request{request}})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStreamSendFailed, "failed to encode request", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return errors.Wrap(errors.ErrCodeStreamSendFailed, "failed to set write deadline", err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.Wrapf(errors.ErrCodeStreamSendFailed, err, "failed to send %s request", request.Command)
	}

	return nil
}

// receiveLoop reads frames until the socket dies, dispatching data frames to
// registered callbacks. A decode failure skips the frame; only socket errors
// end the loop.
func (c *Connection) receiveLoop() {
	defer close(c.done)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasConnected := c.connected
			c.connected = false
			c.mu.Unlock()

			if wasConnected {
				c.logger.Warn("streamer connection closed", zap.Error(err))
			}

			return
		}

		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			c.logger.Error("failed to decode streamer frame", zap.Error(err))

			continue
		}

		for _, resp := range f.Response {
			c.logger.Info("streamer ack",
				zap.String("service", resp.Service),
				zap.String("command", resp.Command),
				zap.Int("code", resp.Content.Code),
				zap.String("msg", resp.Content.Msg))
		}

		for _, data := range f.Data {
			c.dispatch(data)
		}

		for _, notify := range f.Notify {
			c.logger.Debug("streamer notify", zap.ByteString("payload", notify))
		}
	}
}

// dispatch fans one data frame out to the service's callbacks. A panicking
// callback is logged and skipped; it never takes down the receive loop.
func (c *Connection) dispatch(data DataFrame) {
	service := Service(data.Service)

	c.mu.Lock()
	registered := append([]registeredCallback(nil), c.callbacks[service]...)
	c.mu.Unlock()

	for _, rc := range registered {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("streamer callback panicked",
						zap.String("service", data.Service),
						zap.Any("panic", r))
				}
			}()

			rc.cb(service, data.Content)
		}()
	}
}

// heartbeatLoop sends an ADMIN keepalive on the heartbeat interval until the
// receive loop exits.
func (c *Connection) heartbeatLoop() {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			heartbeat := c.newRequest(ServiceAdmin, CommandQOS, map[string]string{})
			if err := c.send(heartbeat); err != nil {
				c.logger.Warn("heartbeat delivery failed", zap.Error(err))
			}
		}
	}
}

func joinFields(fields []int) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, strconv.Itoa(f))
	}

	return strings.Join(parts, ",")
}
