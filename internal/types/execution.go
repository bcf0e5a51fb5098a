package types

import (
	"fmt"
	"time"
)

// Execution is one fill derived from an order's activity collection.
// Executions are append-only and deduplicated by ExecutionID; a record is
// never mutated after it is created.
type Execution struct {
	ExecutionID string    `json:"execution_id" yaml:"execution_id"`
	OrderID     int64     `json:"order_id" yaml:"order_id"`
	LegID       int64     `json:"leg_id" yaml:"leg_id"`
	Quantity    float64   `json:"quantity" yaml:"quantity"`
	Price       float64   `json:"price" yaml:"price"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
}

// NewExecution derives an Execution record from one execution leg of an order
// activity. The id is stable for a given (activity, leg) pair so repeated
// processing of the same order produces the same id and deduplicates cleanly.
// Activities that carry no id fall back to an id derived from the order, leg,
// and fill time, which stays stable across repeated polls of the same order.
func NewExecution(orderID int64, activity OrderActivity, leg ExecutionLeg) Execution {
	activityID := activity.ActivityID
	if activityID == "" {
		activityID = fmt.Sprintf("%d@%d", orderID, leg.Time.UnixNano())
	}

	return Execution{
		ExecutionID: fmt.Sprintf("%s-%d", activityID, leg.LegID),
		OrderID:     orderID,
		LegID:       leg.LegID,
		Quantity:    leg.Quantity,
		Price:       leg.Price,
		Timestamp:   leg.Time,
	}
}
