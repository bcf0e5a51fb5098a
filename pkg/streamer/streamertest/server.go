// Package streamertest provides an in-process fake of the venue's streaming
// server for tests: it accepts the login handshake, acks commands, records
// subscription traffic, and can push data frames or kill connections on
// demand.
package streamertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type request struct {
	Service    string            `json:"service"`
	RequestID  string            `json:"requestid"`
	Command    string            `json:"command"`
	Account    string            `json:"account"`
	Source     string            `json:"source"`
	Parameters map[string]string `json:"parameters"`
}

type requestEnvelope struct {
	Requests []request `json:"requests"`
}

type responseContent struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type responseFrame struct {
	Service   string          `json:"service"`
	Command   string          `json:"command"`
	RequestID string          `json:"requestid"`
	Content   responseContent `json:"content"`
}

type dataFrame struct {
	Service string           `json:"service"`
	Content []map[string]any `json:"content"`
}

// SubsEvent records one SUBS command as received on the wire.
type SubsEvent struct {
	Service string
	Keys    []string
	Fields  string
}

// UnsubsEvent records one UNSUBS command as received on the wire.
type UnsubsEvent struct {
	Service string
	Keys    []string
}

// Server is a fake streaming endpoint.
type Server struct {
	httpServer *httptest.Server
	upgrader   websocket.Upgrader

	mu sync.Mutex

	// LoginCode is returned in the login ack. Non-zero rejects the login.
	loginCode int
	loginMsg  string

	conns      map[*websocket.Conn]*connWriter
	loginCount int
	subs       []SubsEvent
	unsubs     []UnsubsEvent
	qosLevels  []string
	heartbeats int
	logouts    int
}

// connWriter serializes writes to one client connection.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.conn.WriteJSON(v)
}

// NewServer starts a fake streamer accepting connections immediately.
func NewServer() *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[*websocket.Conn]*connWriter),
	}

	router := mux.NewRouter()
	router.HandleFunc("/", s.handleWS)

	s.httpServer = httptest.NewServer(router)

	return s
}

// URL returns the ws:// address clients should dial.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.httpServer.URL, "http")
}

// Close shuts the server down and drops every connection.
func (s *Server) Close() {
	s.DropConnections()
	s.httpServer.Close()
}

// RejectLogin makes subsequent login attempts fail with the given code.
func (s *Server) RejectLogin(code int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loginCode = code
	s.loginMsg = msg
}

// DropConnections force-closes every live connection without a close
// handshake, simulating a dead session.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[*websocket.Conn]*connWriter)
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

// PushData broadcasts one data frame to every connected client.
func (s *Server) PushData(service string, content []map[string]any) {
	s.mu.Lock()
	writers := make([]*connWriter, 0, len(s.conns))
	for _, w := range s.conns {
		writers = append(writers, w)
	}
	s.mu.Unlock()

	frame := map[string]any{
		"data": []dataFrame{{Service: service, Content: content}},
	}

	for _, w := range writers {
		_ = w.writeJSON(frame)
	}
}

// LoginCount returns how many login commands the server has received.
func (s *Server) LoginCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loginCount
}

// Subs returns every SUBS command received, in arrival order.
func (s *Server) Subs() []SubsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SubsEvent(nil), s.subs...)
}

// Unsubs returns every UNSUBS command received, in arrival order.
func (s *Server) Unsubs() []UnsubsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]UnsubsEvent(nil), s.unsubs...)
}

// QOSLevels returns the qoslevel parameter of every QOS command that carried
// one. Heartbeats send QOS with no parameters and are counted separately.
func (s *Server) QOSLevels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.qosLevels...)
}

// HeartbeatCount returns how many parameterless QOS keepalives arrived.
func (s *Server) HeartbeatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.heartbeats
}

// LogoutCount returns how many logout commands the server has received.
func (s *Server) LogoutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.logouts
}

// ConnectionCount returns the number of live connections.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.conns)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	writer := &connWriter{conn: conn}

	s.mu.Lock()
	s.conns[conn] = writer
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var envelope requestEnvelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			continue
		}

		for _, req := range envelope.Requests {
			s.handleRequest(writer, req)
		}
	}
}

func (s *Server) handleRequest(writer *connWriter, req request) {
	code := 0
	msg := "command accepted"

	s.mu.Lock()

	switch req.Command {
	case "LOGIN":
		s.loginCount++

		if s.loginCode != 0 {
			code = s.loginCode
			msg = s.loginMsg
		}
	case "LOGOUT":
		s.logouts++
	case "SUBS":
		s.subs = append(s.subs, SubsEvent{
			Service: req.Service,
			Keys:    splitKeys(req.Parameters["keys"]),
			Fields:  req.Parameters["fields"],
		})
	case "UNSUBS":
		s.unsubs = append(s.unsubs, UnsubsEvent{
			Service: req.Service,
			Keys:    splitKeys(req.Parameters["keys"]),
		})
	case "QOS":
		if level, ok := req.Parameters["qoslevel"]; ok {
			s.qosLevels = append(s.qosLevels, level)
		} else {
			s.heartbeats++
		}
	}

	s.mu.Unlock()

	ack := map[string]any{
		"response": []responseFrame{
			{
				Service:   req.Service,
				Command:   req.Command,
				RequestID: req.RequestID,
				Content:   responseContent{Code: code, Msg: msg},
			},
		},
	}

	_ = writer.writeJSON(ack)
}

func splitKeys(keys string) []string {
	if keys == "" {
		return nil
	}

	return strings.Split(keys, ",")
}
