package types

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-portfolio/pkg/errors"
)

type OrderTestSuite struct {
	suite.Suite
}

func TestOrderSuite(t *testing.T) {
	suite.Run(t, new(OrderTestSuite))
}

func (suite *OrderTestSuite) TestIsTerminal() {
	suite.False(OrderStatusWorking.IsTerminal())
	suite.True(OrderStatusFilled.IsTerminal())
	suite.True(OrderStatusCanceled.IsTerminal())
	suite.True(OrderStatusRejected.IsTerminal())
	suite.True(OrderStatusExpired.IsTerminal())
	suite.True(OrderStatusReplaced.IsTerminal())
}

func (suite *OrderTestSuite) TestIsTerminal_EmptyStatusIsNotTerminal() {
	suite.False(OrderStatus("").IsTerminal())
}

func (suite *OrderTestSuite) TestValidate_MarketOrder() {
	ticket := OrderTicket{
		Symbol:      "AAPL",
		Instruction: PurchaseTypeBuy,
		OrderType:   OrderTypeMarket,
		Quantity:    10,
	}
	suite.NoError(ticket.Validate())
}

func (suite *OrderTestSuite) TestValidate_MissingSymbol() {
	ticket := OrderTicket{
		Instruction: PurchaseTypeBuy,
		OrderType:   OrderTypeMarket,
		Quantity:    10,
	}
	err := ticket.Validate()
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidOrderTicket))
}

func (suite *OrderTestSuite) TestValidate_ZeroQuantity() {
	ticket := OrderTicket{
		Symbol:      "AAPL",
		Instruction: PurchaseTypeSell,
		OrderType:   OrderTypeMarket,
	}
	suite.Error(ticket.Validate())
}

func (suite *OrderTestSuite) TestValidate_LimitOrderRequiresLimitPrice() {
	ticket := OrderTicket{
		Symbol:      "AAPL",
		Instruction: PurchaseTypeBuy,
		OrderType:   OrderTypeLimit,
		Quantity:    5,
	}
	err := ticket.Validate()
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidOrderTicket))

	ticket.LimitPrice = optional.Some(101.50)
	suite.NoError(ticket.Validate())
}

func (suite *OrderTestSuite) TestValidate_StopOrderRequiresStopPrice() {
	ticket := OrderTicket{
		Symbol:      "AAPL",
		Instruction: PurchaseTypeSell,
		OrderType:   OrderTypeStop,
		Quantity:    5,
	}
	suite.Error(ticket.Validate())

	ticket.StopPrice = optional.Some(95.0)
	suite.NoError(ticket.Validate())
}

func (suite *OrderTestSuite) TestValidate_BadInstruction() {
	ticket := OrderTicket{
		Symbol:      "AAPL",
		Instruction: PurchaseType("HOLD"),
		OrderType:   OrderTypeMarket,
		Quantity:    1,
	}
	suite.Error(ticket.Validate())
}

func (suite *OrderTestSuite) TestMatches() {
	ticket := OrderTicket{
		Symbol:      "AAPL",
		Instruction: PurchaseTypeBuy,
		OrderType:   OrderTypeLimit,
		Quantity:    10,
	}

	suite.True(ticket.Matches(Order{OrderType: OrderTypeLimit, Quantity: 10}))
	suite.False(ticket.Matches(Order{OrderType: OrderTypeMarket, Quantity: 10}))
	suite.False(ticket.Matches(Order{OrderType: OrderTypeLimit, Quantity: 20}))
}

func (suite *OrderTestSuite) TestCashBalance() {
	margin := Account{
		Type: AccountTypeMargin,
		CurrentBalances: Balances{
			AvailableFunds: 2500,
			TotalCash:      9999,
		},
	}
	suite.InDelta(2500.0, margin.CashBalance(), 1e-9)

	cash := Account{
		Type: AccountTypeCash,
		CurrentBalances: Balances{
			CashAvailableForTrading: 1200,
			TotalCash:               1300,
		},
	}
	suite.InDelta(1200.0, cash.CashBalance(), 1e-9)

	cash.CurrentBalances.CashAvailableForTrading = 0
	suite.InDelta(1300.0, cash.CashBalance(), 1e-9)

	unknown := Account{CurrentBalances: Balances{TotalCash: 42}}
	suite.InDelta(42.0, unknown.CashBalance(), 1e-9)
}

func (suite *OrderTestSuite) TestNewExecution_StableID() {
	activity := OrderActivity{
		ActivityType: ActivityTypeExecution,
		ActivityID:   "act-7",
	}
	leg := ExecutionLeg{LegID: 2, Quantity: 5, Price: 150.25}

	first := NewExecution(101, activity, leg)
	second := NewExecution(101, activity, leg)

	suite.Equal("act-7-2", first.ExecutionID)
	suite.Equal(first.ExecutionID, second.ExecutionID)
	suite.Equal(int64(101), first.OrderID)
	suite.InDelta(150.25, first.Price, 1e-9)
}

func (suite *OrderTestSuite) TestNewExecution_MissingActivityID() {
	fillTime := time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC)
	leg := ExecutionLeg{LegID: 1, Quantity: 1, Price: 10, Time: fillTime}

	first := NewExecution(5, OrderActivity{}, leg)
	second := NewExecution(5, OrderActivity{}, leg)

	// Without an activity id the fallback is derived, not random, so
	// repeated polls of the same order still deduplicate.
	suite.NotEmpty(first.ExecutionID)
	suite.Equal(first.ExecutionID, second.ExecutionID)

	otherLeg := leg
	otherLeg.LegID = 2
	suite.NotEqual(first.ExecutionID, NewExecution(5, OrderActivity{}, otherLeg).ExecutionID)
}
