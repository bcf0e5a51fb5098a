package transport

import (
	"strconv"
	"time"

	"github.com/rxtech-lab/argo-portfolio/internal/types"
)

// Wire shapes for the venue's JSON payloads. The venue uses camelCase field
// names and wraps accounts in a securitiesAccount envelope; these types exist
// only to decode that shape before mapping into internal types.

type wireAccountNumber struct {
	AccountNumber string `json:"accountNumber"`
	HashValue     string `json:"hashValue"`
}

type wireAccountEnvelope struct {
	SecuritiesAccount wireAccount `json:"securitiesAccount"`
}

type wireBalances struct {
	AvailableFunds          float64 `json:"availableFunds"`
	CashAvailableForTrading float64 `json:"cashAvailableForTrading"`
	TotalCash               float64 `json:"totalCash"`
	BuyingPower             float64 `json:"buyingPower"`
	LiquidationValue        float64 `json:"liquidationValue"`
}

type wireInstrument struct {
	AssetType   string          `json:"assetType"`
	Symbol      string          `json:"symbol"`
	Cusip       string          `json:"cusip"`
	Description string          `json:"description"`
	Root        *wireInstrument `json:"root,omitempty"`
}

type wirePosition struct {
	Instrument         wireInstrument `json:"instrument"`
	LongQuantity       float64        `json:"longQuantity"`
	ShortQuantity      float64        `json:"shortQuantity"`
	AveragePrice       float64        `json:"averagePrice"`
	MarketValue        float64        `json:"marketValue"`
	LongOpenProfitLoss float64        `json:"longOpenProfitLoss"`
}

type wireAccount struct {
	AccountNumber   string         `json:"accountNumber"`
	Type            string         `json:"type"`
	CurrentBalances wireBalances   `json:"currentBalances"`
	InitialBalances wireBalances   `json:"initialBalances"`
	Positions       []wirePosition `json:"positions"`
}

type wireOrderLeg struct {
	LegID       int64          `json:"legId"`
	Instrument  wireInstrument `json:"instrument"`
	Instruction string         `json:"instruction"`
	Quantity    float64        `json:"quantity"`
}

type wireExecutionLeg struct {
	LegID    int64     `json:"legId"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Time     time.Time `json:"time"`
}

type wireOrderActivity struct {
	ActivityType  string             `json:"activityType"`
	ActivityID    int64              `json:"activityId"`
	ExecutionLegs []wireExecutionLeg `json:"executionLegs"`
}

type wireOrder struct {
	OrderID            int64               `json:"orderId"`
	Status             string              `json:"status"`
	OrderType          string              `json:"orderType"`
	Quantity           float64             `json:"quantity"`
	FilledQuantity     float64             `json:"filledQuantity"`
	Price              float64             `json:"price"`
	EnteredTime        time.Time           `json:"enteredTime"`
	OrderLegCollection []wireOrderLeg      `json:"orderLegCollection"`
	ActivityCollection []wireOrderActivity `json:"orderActivityCollection"`
}

type wireStreamerInfo struct {
	StreamerSocketURL string `json:"streamerSocketUrl"`
	CustomerID        string `json:"schwabClientCustomerId"`
	CorrelationID     string `json:"schwabClientCorrelId"`
	Channel           string `json:"schwabClientChannel"`
	FunctionID        string `json:"schwabClientFunctionId"`
}

type wireUserPreference struct {
	StreamerInfo []wireStreamerInfo `json:"streamerInfo"`
}

func (w wireInstrument) toInstrument() types.Instrument {
	inst := types.Instrument{
		AssetType:   types.AssetType(w.AssetType),
		Symbol:      w.Symbol,
		Cusip:       w.Cusip,
		Description: w.Description,
	}

	if w.Root != nil {
		underlying := w.Root.toInstrument()
		inst.Underlying = &underlying
	}

	return inst
}

func (w wireBalances) toBalances() types.Balances {
	return types.Balances{
		AvailableFunds:          w.AvailableFunds,
		CashAvailableForTrading: w.CashAvailableForTrading,
		TotalCash:               w.TotalCash,
		BuyingPower:             w.BuyingPower,
		AccountValue:            w.LiquidationValue,
	}
}

func (w wireAccount) toAccount() types.Account {
	positions := make([]types.Position, 0, len(w.Positions))
	for _, p := range w.Positions {
		positions = append(positions, types.Position{
			Instrument:         p.Instrument.toInstrument(),
			LongQuantity:       p.LongQuantity,
			ShortQuantity:      p.ShortQuantity,
			AveragePrice:       p.AveragePrice,
			MarketValue:        p.MarketValue,
			LongOpenProfitLoss: p.LongOpenProfitLoss,
		})
	}

	return types.Account{
		AccountNumber:   w.AccountNumber,
		Type:            types.AccountType(w.Type),
		CurrentBalances: w.CurrentBalances.toBalances(),
		InitialBalances: w.InitialBalances.toBalances(),
		Positions:       positions,
	}
}

func (w wireOrder) toOrder(accountNumber string) types.Order {
	legs := make([]types.OrderLeg, 0, len(w.OrderLegCollection))
	for _, l := range w.OrderLegCollection {
		legs = append(legs, types.OrderLeg{
			LegID:       l.LegID,
			Instrument:  l.Instrument.toInstrument(),
			Instruction: types.PurchaseType(l.Instruction),
			Quantity:    l.Quantity,
		})
	}

	activities := make([]types.OrderActivity, 0, len(w.ActivityCollection))

	for _, a := range w.ActivityCollection {
		activityID := ""
		if a.ActivityID != 0 {
			activityID = strconv.FormatInt(a.ActivityID, 10)
		}

		executionLegs := make([]types.ExecutionLeg, 0, len(a.ExecutionLegs))
		for _, e := range a.ExecutionLegs {
			executionLegs = append(executionLegs, types.ExecutionLeg{
				LegID:    e.LegID,
				Quantity: e.Quantity,
				Price:    e.Price,
				Time:     e.Time,
			})
		}

		activities = append(activities, types.OrderActivity{
			ActivityType:  a.ActivityType,
			ActivityID:    activityID,
			ExecutionLegs: executionLegs,
		})
	}

	return types.Order{
		OrderID:            w.OrderID,
		AccountNumber:      accountNumber,
		Status:             types.OrderStatus(w.Status),
		OrderType:          types.OrderType(w.OrderType),
		Quantity:           w.Quantity,
		FilledQuantity:     w.FilledQuantity,
		Price:              w.Price,
		EnteredTime:        w.EnteredTime,
		Legs:               legs,
		ActivityCollection: activities,
	}
}

// wireOrderRequest is the submission payload for a single-leg order.
type wireOrderRequest struct {
	OrderType          string             `json:"orderType"`
	Session            string             `json:"session"`
	Duration           string             `json:"duration"`
	OrderStrategyType  string             `json:"orderStrategyType"`
	Price              *float64           `json:"price,omitempty"`
	StopPrice          *float64           `json:"stopPrice,omitempty"`
	OrderLegCollection []wireOrderLegSpec `json:"orderLegCollection"`
}

type wireOrderLegSpec struct {
	Instruction string             `json:"instruction"`
	Quantity    float64            `json:"quantity"`
	Instrument  wireInstrumentSpec `json:"instrument"`
}

type wireInstrumentSpec struct {
	Symbol    string `json:"symbol"`
	AssetType string `json:"assetType"`
}

func newWireOrderRequest(ticket types.OrderTicket) wireOrderRequest {
	req := wireOrderRequest{
		OrderType:         string(ticket.OrderType),
		Session:           "NORMAL",
		Duration:          "DAY",
		OrderStrategyType: "SINGLE",
		OrderLegCollection: []wireOrderLegSpec{
			{
				Instruction: string(ticket.Instruction),
				Quantity:    ticket.Quantity,
				Instrument: wireInstrumentSpec{
					Symbol:    ticket.Symbol,
					AssetType: string(types.AssetTypeEquity),
				},
			},
		},
	}

	if price, err := ticket.LimitPrice.Take(); err == nil {
		req.Price = &price
	}

	if stop, err := ticket.StopPrice.Take(); err == nil {
		req.StopPrice = &stop
	}

	return req
}
