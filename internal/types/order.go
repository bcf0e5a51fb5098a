package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-portfolio/pkg/errors"
)

type PurchaseType string

type OrderType string

type OrderStatus string

const (
	PurchaseTypeBuy  PurchaseType = "BUY"
	PurchaseTypeSell PurchaseType = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

const (
	// OrderStatusWorking is the only non-terminal status: the order is live
	// at the venue and may still transition.
	OrderStatusWorking  OrderStatus = "WORKING"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusExpired  OrderStatus = "EXPIRED"
	OrderStatusReplaced OrderStatus = "REPLACED"
)

// IsTerminal reports whether the status permits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s != OrderStatusWorking && s != ""
}

// ActivityTypeExecution marks an order activity entry that carries fills.
const ActivityTypeExecution = "EXECUTION"

// UnknownOrderID is the sentinel returned when the venue-assigned id of a
// freshly placed order could not be recovered from recent order history.
const UnknownOrderID int64 = 0

// OrderLeg is one instrument leg of an order.
type OrderLeg struct {
	LegID       int64        `json:"leg_id" yaml:"leg_id"`
	Instrument  Instrument   `json:"instrument" yaml:"instrument"`
	Instruction PurchaseType `json:"instruction" yaml:"instruction"`
	Quantity    float64      `json:"quantity" yaml:"quantity"`
}

// ExecutionLeg is one fill reported inside an order activity entry.
type ExecutionLeg struct {
	LegID    int64     `json:"leg_id" yaml:"leg_id"`
	Quantity float64   `json:"quantity" yaml:"quantity"`
	Price    float64   `json:"price" yaml:"price"`
	Time     time.Time `json:"time" yaml:"time"`
}

// OrderActivity is one entry of an order's activity collection. Entries of
// type EXECUTION carry the fills the ledger derives Execution records from.
type OrderActivity struct {
	ActivityType  string         `json:"activity_type" yaml:"activity_type"`
	ActivityID    string         `json:"activity_id" yaml:"activity_id"`
	ExecutionLegs []ExecutionLeg `json:"execution_legs" yaml:"execution_legs"`
}

// Order is the venue's view of an order, as returned by order queries.
// The venue assigns OrderID; it is not known at submission time.
type Order struct {
	OrderID            int64           `json:"order_id" yaml:"order_id"`
	AccountNumber      string          `json:"account_number" yaml:"account_number"`
	Status             OrderStatus     `json:"status" yaml:"status"`
	OrderType          OrderType       `json:"order_type" yaml:"order_type"`
	Quantity           float64         `json:"quantity" yaml:"quantity"`
	FilledQuantity     float64         `json:"filled_quantity" yaml:"filled_quantity"`
	Price              float64         `json:"price" yaml:"price"`
	EnteredTime        time.Time       `json:"entered_time" yaml:"entered_time"`
	Legs               []OrderLeg      `json:"legs" yaml:"legs"`
	ActivityCollection []OrderActivity `json:"activity_collection" yaml:"activity_collection"`
}

// OrderTicket is a caller-submitted order. The venue does not echo back an
// order id on submission, so the ticket carries no id field.
type OrderTicket struct {
	Symbol      string       `json:"symbol" yaml:"symbol" validate:"required"`
	Instruction PurchaseType `json:"instruction" yaml:"instruction" validate:"required,oneof=BUY SELL"`
	OrderType   OrderType    `json:"order_type" yaml:"order_type" validate:"required,oneof=MARKET LIMIT STOP"`
	Quantity    float64      `json:"quantity" yaml:"quantity" validate:"required,gt=0"`
	// LimitPrice is required for LIMIT orders. Can be None otherwise.
	LimitPrice optional.Option[float64] `json:"limit_price" yaml:"limit_price"`
	// StopPrice is required for STOP orders. Can be None otherwise.
	StopPrice optional.Option[float64] `json:"stop_price" yaml:"stop_price"`
}

// Validate validates the OrderTicket struct.
func (t *OrderTicket) Validate() error {
	validate := validator.New()
	if err := validate.Struct(t); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrderTicket, "invalid order ticket", err)
	}

	if t.OrderType == OrderTypeLimit && t.LimitPrice.IsNone() {
		return errors.New(errors.ErrCodeInvalidOrderTicket, "limit order requires a limit price")
	}

	if t.OrderType == OrderTypeStop && t.StopPrice.IsNone() {
		return errors.New(errors.ErrCodeInvalidOrderTicket, "stop order requires a stop price")
	}

	return nil
}

// Matches reports whether a venue order plausibly corresponds to this ticket.
// Correlation is intentionally limited to order type and quantity: the upstream
// protocol exposes no client correlation tag, and guessing extra fields would
// hide rather than fix the ambiguity under concurrent identical submissions.
func (t *OrderTicket) Matches(order Order) bool {
	return order.OrderType == t.OrderType && order.Quantity == t.Quantity
}
