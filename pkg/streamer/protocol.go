// Package streamer implements the venue's WebSocket streaming protocol:
// an authenticated session multiplexing subscription services over a single
// socket, with request/response acks, data frames, and admin keepalives.
package streamer

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/argo-portfolio/pkg/errors"
)

// Service identifies a streamer subscription service.
type Service string

const (
	ServiceAdmin           Service = "ADMIN"
	ServiceQuote           Service = "QUOTE"
	ServiceOption          Service = "OPTION"
	ServiceLevelOneEquity  Service = "LEVELONE_EQUITIES"
	ServiceLevelOneOption  Service = "LEVELONE_OPTIONS"
	ServiceLevelOneFutures Service = "LEVELONE_FUTURES"
	ServiceLevelOneForex   Service = "LEVELONE_FOREX"
	ServiceChartEquity     Service = "CHART_EQUITY"
	ServiceChartFutures    Service = "CHART_FUTURES"
	ServiceNewsHeadline    Service = "NEWS_HEADLINE"
	ServiceTimesaleEquity  Service = "TIMESALE_EQUITY"
	ServiceTimesaleOptions Service = "TIMESALE_OPTIONS"
)

// Command identifies a streamer request command.
type Command string

const (
	CommandLogin  Command = "LOGIN"
	CommandLogout Command = "LOGOUT"
	CommandSubs   Command = "SUBS"
	CommandUnsubs Command = "UNSUBS"
	CommandAdd    Command = "ADD"
	CommandView   Command = "VIEW"
	CommandQOS    Command = "QOS"
)

// QOSLevel controls the update cadence the venue pushes on the session.
type QOSLevel int

const (
	// QOSExpress updates every 500ms.
	QOSExpress QOSLevel = iota
	// QOSRealTime updates every 750ms.
	QOSRealTime
	// QOSFast updates every 1000ms. This is the session default.
	QOSFast
	// QOSModerate updates every 1500ms.
	QOSModerate
	// QOSSlow updates every 3000ms.
	QOSSlow
	// QOSDelayed updates every 5000ms.
	QOSDelayed
)

// DefaultQOSLevel is the cadence a fresh session runs at.
const DefaultQOSLevel = QOSFast

// TokenSource supplies the bearer token for the login credential. Tokens are
// fetched at connect time so a refreshing implementation can rotate them
// across reconnects.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (s StaticToken) Token(_ context.Context) (string, error) {
	return string(s), nil
}

// StreamerInfo carries the per-user handshake parameters the venue hands out
// with user preferences. All fields are required to open a session.
type StreamerInfo struct {
	SocketURL     string `json:"socket_url" yaml:"socket_url" validate:"required"`
	CustomerID    string `json:"customer_id" yaml:"customer_id" validate:"required"`
	CorrelationID string `json:"correlation_id" yaml:"correlation_id" validate:"required"`
	Channel       string `json:"channel" yaml:"channel" validate:"required"`
	FunctionID    string `json:"function_id" yaml:"function_id" validate:"required"`
}

// Validate validates the StreamerInfo struct.
func (s *StreamerInfo) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid streamer info", err)
	}

	return nil
}

// Callback receives the content entries of one data frame for a service.
// Callbacks run on the session's receive goroutine and must not block.
type Callback func(service Service, content []map[string]any)

// Request is one command inside the outbound request envelope.
type Request struct {
	Service    string            `json:"service"`
	RequestID  string            `json:"requestid"`
	Command    string            `json:"command"`
	Account    string            `json:"account"`
	Source     string            `json:"source"`
	Parameters map[string]string `json:"parameters"`
}

// requestEnvelope wraps outbound requests. The venue accepts batches; this
// client always sends one request per envelope.
type requestEnvelope struct {
	Requests []Request `json:"requests"`
}

// frame is the inbound envelope. Exactly one of the three lists is set per
// message in practice, but the decoder tolerates any combination.
type frame struct {
	Response []responseFrame   `json:"response,omitempty"`
	Data     []DataFrame       `json:"data,omitempty"`
	Notify   []json.RawMessage `json:"notify,omitempty"`
}

// responseContent is the ack payload of a command response. Code zero means
// the command was accepted.
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

// DataFrame is one service's slice of a data message.
type DataFrame struct {
	Service   string           `json:"service"`
	Timestamp int64            `json:"timestamp"`
	Content   []map[string]any `json:"content"`
}
