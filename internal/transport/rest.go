package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rxtech-lab/argo-portfolio/internal/types"
	"github.com/rxtech-lab/argo-portfolio/pkg/errors"
)

const (
	// DefaultBaseURL is the production trader API root.
	DefaultBaseURL = "https://api.schwabapi.com/trader/v1"

	// DefaultRequestTimeout bounds every REST call.
	DefaultRequestTimeout = 15 * time.Second

	// enteredTimeLayout is the timestamp format the order query accepts.
	enteredTimeLayout = "2006-01-02T15:04:05.000Z"
)

// RESTTransport implements Transport against the venue's HTTP API.
// It is stateless - every call fetches directly from the venue.
type RESTTransport struct {
	client *resty.Client
	tokens TokenSource
}

var _ Transport = (*RESTTransport)(nil)

// NewRESTTransport creates a transport against baseURL. An empty baseURL
// selects the production API.
func NewRESTTransport(baseURL string, tokens TokenSource) *RESTTransport {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(DefaultRequestTimeout).
		SetHeader("Accept", "application/json")

	return &RESTTransport{
		client: client,
		tokens: tokens,
	}
}

func (t *RESTTransport) request(ctx context.Context) (*resty.Request, error) {
	token, err := t.tokens.Token(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransportRequestFailed, "failed to obtain access token", err)
	}

	return t.client.R().SetContext(ctx).SetAuthToken(token), nil
}

// GetAccountNumbers returns the account numbers visible to the caller.
func (t *RESTTransport) GetAccountNumbers(ctx context.Context) ([]string, error) {
	req, err := t.request(ctx)
	if err != nil {
		return nil, err
	}

	var wire []wireAccountNumber

	resp, err := req.SetResult(&wire).Get("/accounts/accountNumbers")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAccountFetchFailed, "failed to fetch account numbers", err)
	}

	if resp.IsError() {
		return nil, errors.Newf(errors.ErrCodeAccountFetchFailed,
			"account numbers request returned %s", resp.Status())
	}

	numbers := make([]string, 0, len(wire))
	for _, a := range wire {
		numbers = append(numbers, a.AccountNumber)
	}

	return numbers, nil
}

// GetAccount fetches a full account snapshot, optionally including positions.
func (t *RESTTransport) GetAccount(ctx context.Context, accountNumber string, includePositions bool) (types.Account, error) {
	req, err := t.request(ctx)
	if err != nil {
		return types.Account{}, err
	}

	if includePositions {
		req.SetQueryParam("fields", "positions")
	}

	var wire wireAccountEnvelope

	resp, err := req.SetResult(&wire).Get(fmt.Sprintf("/accounts/%s", accountNumber))
	if err != nil {
		return types.Account{}, errors.Wrap(errors.ErrCodeAccountFetchFailed, "failed to fetch account", err)
	}

	if resp.StatusCode() == 404 {
		return types.Account{}, errors.Newf(errors.ErrCodeAccountNotFound, "account %s not found", accountNumber)
	}

	if resp.IsError() {
		return types.Account{}, errors.Newf(errors.ErrCodeAccountFetchFailed,
			"account request returned %s", resp.Status())
	}

	return wire.SecuritiesAccount.toAccount(), nil
}

// GetOrders fetches orders for an account entered within [from, to].
func (t *RESTTransport) GetOrders(ctx context.Context, accountNumber string, from, to time.Time, status types.OrderStatus) ([]types.Order, error) {
	req, err := t.request(ctx)
	if err != nil {
		return nil, err
	}

	req.
		SetQueryParam("fromEnteredTime", from.UTC().Format(enteredTimeLayout)).
		SetQueryParam("toEnteredTime", to.UTC().Format(enteredTimeLayout))

	if status != "" {
		req.SetQueryParam("status", string(status))
	}

	var wire []wireOrder

	resp, err := req.
		SetResult(&wire).
		Get(fmt.Sprintf("/accounts/%s/orders", accountNumber))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeOrderFetchFailed, "failed to fetch orders", err)
	}

	if resp.IsError() {
		return nil, errors.Newf(errors.ErrCodeOrderFetchFailed,
			"orders request returned %s", resp.Status())
	}

	orders := make([]types.Order, 0, len(wire))
	for _, w := range wire {
		orders = append(orders, w.toOrder(accountNumber))
	}

	return orders, nil
}

// GetOrder fetches a single order by its venue-assigned id.
func (t *RESTTransport) GetOrder(ctx context.Context, accountNumber string, orderID int64) (types.Order, error) {
	req, err := t.request(ctx)
	if err != nil {
		return types.Order{}, err
	}

	var wire wireOrder

	resp, err := req.SetResult(&wire).Get(fmt.Sprintf("/accounts/%s/orders/%d", accountNumber, orderID))
	if err != nil {
		return types.Order{}, errors.Wrap(errors.ErrCodeOrderFetchFailed, "failed to fetch order", err)
	}

	if resp.StatusCode() == 404 {
		return types.Order{}, errors.Newf(errors.ErrCodeOrderNotFound, "order %d not found", orderID)
	}

	if resp.IsError() {
		return types.Order{}, errors.Newf(errors.ErrCodeOrderFetchFailed,
			"order request returned %s", resp.Status())
	}

	return wire.toOrder(accountNumber), nil
}

// PlaceOrder submits an order ticket. The venue returns no body on success,
// so the assigned order id has to be recovered from order history.
func (t *RESTTransport) PlaceOrder(ctx context.Context, accountNumber string, ticket types.OrderTicket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}

	req, err := t.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(newWireOrderRequest(ticket)).
		Post(fmt.Sprintf("/accounts/%s/orders", accountNumber))
	if err != nil {
		return errors.Wrap(errors.ErrCodeOrderPlaceFailed, "failed to place order", err)
	}

	if resp.IsError() {
		return errors.Newf(errors.ErrCodeOrderPlaceFailed,
			"order placement returned %s: %s", resp.Status(), resp.String())
	}

	return nil
}

// CancelOrder requests cancellation of a working order.
func (t *RESTTransport) CancelOrder(ctx context.Context, accountNumber string, orderID int64) error {
	req, err := t.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.Delete(fmt.Sprintf("/accounts/%s/orders/%d", accountNumber, orderID))
	if err != nil {
		return errors.Wrap(errors.ErrCodeOrderCancelFailed, "failed to cancel order", err)
	}

	if resp.StatusCode() == 404 {
		return errors.Newf(errors.ErrCodeOrderNotFound, "order %d not found", orderID)
	}

	if resp.IsError() {
		return errors.Newf(errors.ErrCodeOrderCancelFailed,
			"order cancellation returned %s", resp.Status())
	}

	return nil
}

// GetUserPreference fetches the streaming handshake parameters. The venue
// returns a list of streamer entries; the first one is the active session's.
func (t *RESTTransport) GetUserPreference(ctx context.Context) (UserPreference, error) {
	req, err := t.request(ctx)
	if err != nil {
		return UserPreference{}, err
	}

	var wire wireUserPreference

	resp, err := req.SetResult(&wire).Get("/userPreference")
	if err != nil {
		return UserPreference{}, errors.Wrap(errors.ErrCodeTransportRequestFailed, "failed to fetch user preference", err)
	}

	if resp.IsError() {
		return UserPreference{}, errors.Newf(errors.ErrCodeTransportRequestFailed,
			"user preference request returned %s", resp.Status())
	}

	if len(wire.StreamerInfo) == 0 {
		return UserPreference{}, errors.New(errors.ErrCodeTransportRequestFailed,
			"user preference response carries no streamer info")
	}

	info := wire.StreamerInfo[0]

	return UserPreference{
		StreamerSocketURL: info.StreamerSocketURL,
		CustomerID:        info.CustomerID,
		CorrelationID:     info.CorrelationID,
		Channel:           info.Channel,
		FunctionID:        info.FunctionID,
	}, nil
}
