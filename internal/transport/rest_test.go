package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-portfolio/internal/types"
	"github.com/rxtech-lab/argo-portfolio/pkg/errors"
)

type RESTTransportTestSuite struct {
	suite.Suite
	server    *httptest.Server
	transport *RESTTransport

	// lastAuth captures the Authorization header of the most recent request.
	lastAuth string
	// lastOrderBody captures the most recent order submission payload.
	lastOrderBody map[string]any
}

func TestRESTTransportSuite(t *testing.T) {
	suite.Run(t, new(RESTTransportTestSuite))
}

func (suite *RESTTransportTestSuite) SetupTest() {
	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			suite.lastAuth = r.Header.Get("Authorization")
			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/accounts/accountNumbers", func(w http.ResponseWriter, r *http.Request) {
		suite.writeJSON(w, []map[string]any{
			{"accountNumber": "123456", "hashValue": "ABCDEF"},
			{"accountNumber": "789012", "hashValue": "FEDCBA"},
		})
	}).Methods(http.MethodGet)

	router.HandleFunc("/accounts/{accountNumber}", func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["accountNumber"] != "123456" {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		account := map[string]any{
			"accountNumber": "123456",
			"type":          "MARGIN",
			"currentBalances": map[string]any{
				"availableFunds":   2500.0,
				"totalCash":        1000.0,
				"liquidationValue": 4000.0,
			},
		}
		if r.URL.Query().Get("fields") == "positions" {
			account["positions"] = []map[string]any{
				{
					"instrument": map[string]any{
						"assetType": "EQUITY",
						"symbol":    "AAPL",
					},
					"longQuantity": 10.0,
					"averagePrice": 100.0,
					"marketValue":  1500.0,
				},
			}
		}

		suite.writeJSON(w, map[string]any{"securitiesAccount": account})
	}).Methods(http.MethodGet)

	router.HandleFunc("/accounts/{accountNumber}/orders", func(w http.ResponseWriter, r *http.Request) {
		suite.writeJSON(w, []map[string]any{
			{
				"orderId":   int64(9001),
				"status":    "FILLED",
				"orderType": "LIMIT",
				"quantity":  5.0,
				"orderActivityCollection": []map[string]any{
					{
						"activityType": "EXECUTION",
						"activityId":   int64(77),
						"executionLegs": []map[string]any{
							{"legId": int64(1), "quantity": 5.0, "price": 99.5},
						},
					},
				},
			},
		})
	}).Methods(http.MethodGet)

	router.HandleFunc("/accounts/{accountNumber}/orders", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		suite.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
		suite.lastOrderBody = body
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPost)

	router.HandleFunc("/accounts/{accountNumber}/orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["orderID"] != "9001" {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		suite.writeJSON(w, map[string]any{
			"orderId":   int64(9001),
			"status":    "WORKING",
			"orderType": "MARKET",
			"quantity":  3.0,
		})
	}).Methods(http.MethodGet)

	router.HandleFunc("/accounts/{accountNumber}/orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["orderID"] != "9001" {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodDelete)

	router.HandleFunc("/userPreference", func(w http.ResponseWriter, r *http.Request) {
		suite.writeJSON(w, map[string]any{
			"streamerInfo": []map[string]any{
				{
					"streamerSocketUrl":      "wss://stream.example.com/ws",
					"schwabClientCustomerId": "cust-1",
					"schwabClientCorrelId":   "corr-1",
					"schwabClientChannel":    "N9",
					"schwabClientFunctionId": "APIAPP",
				},
			},
		})
	}).Methods(http.MethodGet)

	suite.server = httptest.NewServer(router)
	suite.transport = NewRESTTransport(suite.server.URL, StaticToken("test-token"))
}

func (suite *RESTTransportTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *RESTTransportTestSuite) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	suite.Require().NoError(json.NewEncoder(w).Encode(v))
}

func (suite *RESTTransportTestSuite) TestGetAccountNumbers() {
	numbers, err := suite.transport.GetAccountNumbers(context.Background())
	suite.Require().NoError(err)
	suite.Equal([]string{"123456", "789012"}, numbers)
	suite.Equal("Bearer test-token", suite.lastAuth)
}

func (suite *RESTTransportTestSuite) TestGetAccount_WithPositions() {
	account, err := suite.transport.GetAccount(context.Background(), "123456", true)
	suite.Require().NoError(err)

	suite.Equal("123456", account.AccountNumber)
	suite.Equal(types.AccountTypeMargin, account.Type)
	suite.InDelta(2500.0, account.CashBalance(), 1e-9)
	suite.InDelta(4000.0, account.CurrentBalances.AccountValue, 1e-9)

	suite.Require().Len(account.Positions, 1)
	suite.Equal("AAPL", account.Positions[0].Instrument.EffectiveSymbol())
	suite.InDelta(1500.0, account.Positions[0].MarketValue, 1e-9)
}

func (suite *RESTTransportTestSuite) TestGetAccount_WithoutPositions() {
	account, err := suite.transport.GetAccount(context.Background(), "123456", false)
	suite.Require().NoError(err)
	suite.Empty(account.Positions)
}

func (suite *RESTTransportTestSuite) TestGetAccount_NotFound() {
	_, err := suite.transport.GetAccount(context.Background(), "000000", false)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeAccountNotFound))
}

func (suite *RESTTransportTestSuite) TestGetOrders() {
	now := time.Now()

	orders, err := suite.transport.GetOrders(context.Background(), "123456", now.Add(-time.Hour), now, "")
	suite.Require().NoError(err)
	suite.Require().Len(orders, 1)

	order := orders[0]
	suite.Equal(int64(9001), order.OrderID)
	suite.Equal("123456", order.AccountNumber)
	suite.Equal(types.OrderStatusFilled, order.Status)
	suite.Require().Len(order.ActivityCollection, 1)
	suite.Equal("77", order.ActivityCollection[0].ActivityID)
	suite.Require().Len(order.ActivityCollection[0].ExecutionLegs, 1)
	suite.InDelta(99.5, order.ActivityCollection[0].ExecutionLegs[0].Price, 1e-9)
}

func (suite *RESTTransportTestSuite) TestGetOrder() {
	order, err := suite.transport.GetOrder(context.Background(), "123456", 9001)
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusWorking, order.Status)
}

func (suite *RESTTransportTestSuite) TestGetOrder_NotFound() {
	_, err := suite.transport.GetOrder(context.Background(), "123456", 4242)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeOrderNotFound))
}

func (suite *RESTTransportTestSuite) TestPlaceOrder() {
	ticket := types.OrderTicket{
		Symbol:      "AAPL",
		Instruction: types.PurchaseTypeBuy,
		OrderType:   types.OrderTypeLimit,
		Quantity:    5,
		LimitPrice:  optional.Some(99.5),
	}

	err := suite.transport.PlaceOrder(context.Background(), "123456", ticket)
	suite.Require().NoError(err)

	suite.Equal("LIMIT", suite.lastOrderBody["orderType"])
	suite.Equal("SINGLE", suite.lastOrderBody["orderStrategyType"])
	suite.InDelta(99.5, suite.lastOrderBody["price"].(float64), 1e-9)

	legs := suite.lastOrderBody["orderLegCollection"].([]any)
	suite.Require().Len(legs, 1)
	leg := legs[0].(map[string]any)
	suite.Equal("BUY", leg["instruction"])
	suite.Equal("AAPL", leg["instrument"].(map[string]any)["symbol"])
}

func (suite *RESTTransportTestSuite) TestPlaceOrder_InvalidTicketNeverHitsWire() {
	ticket := types.OrderTicket{
		Symbol:      "AAPL",
		Instruction: types.PurchaseTypeBuy,
		OrderType:   types.OrderTypeLimit,
		Quantity:    5,
	}

	suite.lastOrderBody = nil
	err := suite.transport.PlaceOrder(context.Background(), "123456", ticket)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidOrderTicket))
	suite.Nil(suite.lastOrderBody)
}

func (suite *RESTTransportTestSuite) TestCancelOrder() {
	suite.NoError(suite.transport.CancelOrder(context.Background(), "123456", 9001))

	err := suite.transport.CancelOrder(context.Background(), "123456", 4242)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeOrderNotFound))
}

func (suite *RESTTransportTestSuite) TestGetUserPreference() {
	pref, err := suite.transport.GetUserPreference(context.Background())
	suite.Require().NoError(err)
	suite.Equal("wss://stream.example.com/ws", pref.StreamerSocketURL)
	suite.Equal("cust-1", pref.CustomerID)
	suite.Equal("corr-1", pref.CorrelationID)
	suite.Equal("N9", pref.Channel)
	suite.Equal("APIAPP", pref.FunctionID)
}
