package transport

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-portfolio/internal/types"
)

// TokenSource supplies the bearer token for authenticated calls. Tokens are
// fetched per request so a refreshing implementation can rotate them without
// restarting the client.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (s StaticToken) Token(_ context.Context) (string, error) {
	return string(s), nil
}

// UserPreference carries the streaming handshake parameters the venue hands
// out per user. Every field is required to open a streaming session.
type UserPreference struct {
	StreamerSocketURL string `json:"streamer_socket_url"`
	CustomerID        string `json:"customer_id"`
	CorrelationID     string `json:"correlation_id"`
	Channel           string `json:"channel"`
	FunctionID        string `json:"function_id"`
}

// Transport abstracts the venue's REST API for accounts and orders.
type Transport interface {
	// GetAccountNumbers returns the account numbers visible to the caller.
	GetAccountNumbers(ctx context.Context) ([]string, error)

	// GetAccount fetches a full account snapshot, optionally including positions.
	GetAccount(ctx context.Context, accountNumber string, includePositions bool) (types.Account, error)

	// GetOrders fetches orders for an account entered within [from, to].
	// An empty status fetches orders in every status.
	GetOrders(ctx context.Context, accountNumber string, from, to time.Time, status types.OrderStatus) ([]types.Order, error)

	// GetOrder fetches a single order by its venue-assigned id.
	GetOrder(ctx context.Context, accountNumber string, orderID int64) (types.Order, error)

	// PlaceOrder submits an order ticket. The venue does not return the
	// assigned order id on submission.
	PlaceOrder(ctx context.Context, accountNumber string, ticket types.OrderTicket) error

	// CancelOrder requests cancellation of a working order.
	CancelOrder(ctx context.Context, accountNumber string, orderID int64) error

	// GetUserPreference fetches the streaming handshake parameters.
	GetUserPreference(ctx context.Context) (UserPreference, error)
}
