package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-portfolio/internal/types"
)

// displayPlaces is the rounding applied to summary figures.
const displayPlaces = 2

// positionPctPlaces is the rounding applied to per-symbol gain/loss
// percentages in GetPosition, kept high so callers can round for display
// themselves.
const positionPctPlaces = 14

// PositionSummary is the per-symbol aggregate across all tracked accounts.
type PositionSummary struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	MarketValue  decimal.Decimal `json:"market_value"`
	CostBasis    decimal.Decimal `json:"cost_basis"`
	AveragePrice decimal.Decimal `json:"average_price"`
	GainLoss     decimal.Decimal `json:"gain_loss"`
	GainLossPct  decimal.Decimal `json:"gain_loss_pct"`
}

// Summary is a consolidated snapshot of the portfolio.
type Summary struct {
	TotalValue  decimal.Decimal `json:"total_value"`
	TotalEquity decimal.Decimal `json:"total_equity"`
	TotalCash   decimal.Decimal `json:"total_cash"`

	// CashAllocation and EquityAllocation are percentages of TotalValue,
	// rounded for display.
	CashAllocation   decimal.Decimal `json:"cash_allocation"`
	EquityAllocation decimal.Decimal `json:"equity_allocation"`

	PositionsBySymbol map[string]PositionSummary           `json:"positions_by_symbol"`
	AssetAllocation   map[types.AssetClass]decimal.Decimal `json:"asset_allocation"`

	AccountNumbers  []string `json:"accounts"`
	OpenOrders      int      `json:"open_orders"`
	FilledOrders    int      `json:"filled_orders"`
	TotalOrders     int      `json:"total_orders"`
	TotalExecutions int      `json:"total_executions"`
}

// GetPortfolioSummary refreshes positions and computes the consolidated
// snapshot. A refresh failure keeps the previous state and is logged, not
// returned; a stale summary beats no summary.
func (l *Ledger) GetPortfolioSummary(ctx context.Context) Summary {
	if err := l.RefreshPositions(ctx); err != nil {
		l.logger.Warn("pre-summary position refresh failed", zap.Error(err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	totalEquity := decimal.Zero
	totalCash := decimal.Zero
	bySymbol := make(map[string]PositionSummary)
	byAssetClass := make(map[types.AssetClass]decimal.Decimal)

	accountNumbers := make([]string, 0, len(l.accounts))

	for number, account := range l.accounts {
		accountNumbers = append(accountNumbers, number)
		totalCash = totalCash.Add(decimal.NewFromFloat(account.CashBalance()))

		for symbol, position := range l.positions[number] {
			marketValue := l.effectiveMarketValue(symbol, position)
			if marketValue.LessThanOrEqual(decimal.Zero) {
				continue
			}

			totalEquity = totalEquity.Add(marketValue)

			netQty := decimal.NewFromFloat(position.NetQuantity())
			avgPrice := decimal.NewFromFloat(position.AveragePrice)
			costBasis := avgPrice.Mul(decimal.NewFromFloat(position.LongQuantity))

			agg := bySymbol[symbol]
			agg.Symbol = symbol
			agg.Quantity = agg.Quantity.Add(netQty)
			agg.MarketValue = agg.MarketValue.Add(marketValue)
			agg.CostBasis = agg.CostBasis.Add(costBasis)
			agg.AveragePrice = avgPrice

			if agg.CostBasis.IsPositive() {
				agg.GainLoss = agg.MarketValue.Sub(agg.CostBasis)
				agg.GainLossPct = agg.GainLoss.
					Div(agg.CostBasis).
					Mul(decimal.NewFromInt(100)).
					Round(displayPlaces)
			}

			bySymbol[symbol] = agg

			assetClass := position.Instrument.AssetType.Normalize()
			byAssetClass[assetClass] = byAssetClass[assetClass].Add(marketValue)
		}
	}

	totalValue := totalEquity.Add(totalCash)

	cashAllocation := decimal.Zero
	equityAllocation := decimal.Zero
	assetAllocation := make(map[types.AssetClass]decimal.Decimal, len(byAssetClass))

	if totalValue.IsPositive() {
		hundred := decimal.NewFromInt(100)
		cashAllocation = totalCash.Div(totalValue).Mul(hundred).Round(displayPlaces)
		equityAllocation = totalEquity.Div(totalValue).Mul(hundred).Round(displayPlaces)

		for class, value := range byAssetClass {
			if value.IsPositive() {
				assetAllocation[class] = value.Div(totalValue).Mul(hundred).Round(displayPlaces)
			}
		}
	}

	openOrders := 0
	filledOrders := 0

	for _, order := range l.orders {
		switch order.Status {
		case types.OrderStatusWorking:
			openOrders++
		case types.OrderStatusFilled:
			filledOrders++
		}
	}

	return Summary{
		TotalValue:        totalValue,
		TotalEquity:       totalEquity,
		TotalCash:         totalCash,
		CashAllocation:    cashAllocation,
		EquityAllocation:  equityAllocation,
		PositionsBySymbol: bySymbol,
		AssetAllocation:   assetAllocation,
		AccountNumbers:    accountNumbers,
		OpenOrders:        openOrders,
		FilledOrders:      filledOrders,
		TotalOrders:       len(l.orders),
		TotalExecutions:   len(l.executions),
	}
}

// GetPosition consolidates one symbol across all accounts.
func (l *Ledger) GetPosition(symbol string) PositionSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	quantity := decimal.Zero
	marketValue := decimal.Zero
	costBasis := decimal.Zero

	for _, bySymbol := range l.positions {
		position, ok := bySymbol[symbol]
		if !ok {
			continue
		}

		quantity = quantity.Add(decimal.NewFromFloat(position.NetQuantity()))
		marketValue = marketValue.Add(l.effectiveMarketValue(symbol, position))
		costBasis = costBasis.Add(
			decimal.NewFromFloat(position.AveragePrice).
				Mul(decimal.NewFromFloat(position.LongQuantity)))
	}

	averagePrice := decimal.Zero
	if quantity.IsPositive() {
		averagePrice = costBasis.Div(quantity)
	}

	gainLoss := marketValue.Sub(costBasis)

	gainLossPct := decimal.Zero
	if costBasis.IsPositive() {
		gainLossPct = gainLoss.
			Div(costBasis).
			Mul(decimal.NewFromInt(100)).
			Round(positionPctPlaces)
	}

	return PositionSummary{
		Symbol:       symbol,
		Quantity:     quantity,
		MarketValue:  marketValue,
		CostBasis:    costBasis,
		AveragePrice: averagePrice,
		GainLoss:     gainLoss,
		GainLossPct:  gainLossPct,
	}
}

// effectiveMarketValue returns the snapshot market value, or quantity times
// the cached streaming price when the snapshot reports none. Caller holds
// l.mu.
func (l *Ledger) effectiveMarketValue(symbol string, position types.Position) decimal.Decimal {
	if position.MarketValue > 0 {
		return decimal.NewFromFloat(position.MarketValue)
	}

	netQty := position.NetQuantity()
	if netQty == 0 {
		return decimal.Zero
	}

	lastPrice, ok := l.lastPrices[symbol]
	if !ok || lastPrice <= 0 {
		return decimal.Zero
	}

	return decimal.NewFromFloat(netQty).Mul(decimal.NewFromFloat(lastPrice))
}

// TotalValue sums the venue-reported account value across accounts.
func (l *Ledger) TotalValue() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	for _, account := range l.accounts {
		total = total.Add(decimal.NewFromFloat(account.InitialBalances.AccountValue))
	}

	return total
}

// TotalCash sums the spendable cash across accounts.
func (l *Ledger) TotalCash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	for _, account := range l.accounts {
		total = total.Add(decimal.NewFromFloat(account.CashBalance()))
	}

	return total
}

// UnrealizedGainLoss sums the venue-reported open profit/loss across
// positions.
func (l *Ledger) UnrealizedGainLoss() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero

	for _, bySymbol := range l.positions {
		for _, position := range bySymbol {
			total = total.Add(decimal.NewFromFloat(position.LongOpenProfitLoss))
		}
	}

	return total
}

// UnrealizedGainLossPercent returns the open profit/loss as a percentage of
// total cost basis.
func (l *Ledger) UnrealizedGainLossPercent() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	totalCost := decimal.Zero
	totalGainLoss := decimal.Zero

	for _, bySymbol := range l.positions {
		for _, position := range bySymbol {
			cost := decimal.NewFromFloat(position.AveragePrice).
				Mul(decimal.NewFromFloat(position.LongQuantity))
			totalCost = totalCost.Add(cost)
			totalGainLoss = totalGainLoss.Add(decimal.NewFromFloat(position.LongOpenProfitLoss))
		}
	}

	if !totalCost.IsPositive() {
		return decimal.Zero
	}

	return totalGainLoss.Div(totalCost).Mul(decimal.NewFromInt(100))
}
