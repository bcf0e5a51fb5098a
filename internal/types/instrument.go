package types

import "strings"

// AssetType is the venue-reported security type attached to an instrument.
type AssetType string

const (
	AssetTypeEquity         AssetType = "EQUITY"
	AssetTypeCommonStock    AssetType = "COMMON_STOCK"
	AssetTypePreferredStock AssetType = "PREFERRED_STOCK"
	AssetTypeETF            AssetType = "ETF"
	AssetTypeOption         AssetType = "OPTION"
	AssetTypeMutualFund     AssetType = "MUTUAL_FUND"
	AssetTypeFund           AssetType = "FUND"
	AssetTypeFixedIncome    AssetType = "FIXED_INCOME"
	AssetTypeBond           AssetType = "BOND"
	AssetTypeGovernmentBond AssetType = "GOVERNMENT_BOND"
	AssetTypeCorporateBond  AssetType = "CORPORATE_BOND"
	AssetTypeForex          AssetType = "FOREX"
	AssetTypeIndex          AssetType = "INDEX"
)

// AssetClass is the normalized bucket used for portfolio allocation reporting.
type AssetClass string

const (
	AssetClassEquity      AssetClass = "EQUITY"
	AssetClassOption      AssetClass = "OPTION"
	AssetClassMutualFund  AssetClass = "MUTUAL_FUND"
	AssetClassFixedIncome AssetClass = "FIXED_INCOME"
	AssetClassForex       AssetClass = "FOREX"
	AssetClassIndex       AssetClass = "INDEX"
)

// assetClassByType maps venue asset types onto the reporting buckets.
var assetClassByType = map[AssetType]AssetClass{
	AssetTypeEquity:         AssetClassEquity,
	AssetTypeCommonStock:    AssetClassEquity,
	AssetTypePreferredStock: AssetClassEquity,
	AssetTypeETF:            AssetClassEquity,
	AssetTypeOption:         AssetClassOption,
	AssetTypeMutualFund:     AssetClassMutualFund,
	AssetTypeFund:           AssetClassMutualFund,
	AssetTypeFixedIncome:    AssetClassFixedIncome,
	AssetTypeBond:           AssetClassFixedIncome,
	AssetTypeGovernmentBond: AssetClassFixedIncome,
	AssetTypeCorporateBond:  AssetClassFixedIncome,
	AssetTypeForex:          AssetClassForex,
	AssetTypeIndex:          AssetClassIndex,
}

// Normalize maps a venue asset type to its reporting asset class.
// Unknown types default to EQUITY.
func (t AssetType) Normalize() AssetClass {
	if class, ok := assetClassByType[AssetType(strings.ToUpper(string(t)))]; ok {
		return class
	}

	return AssetClassEquity
}

// Instrument identifies the security a position or order leg refers to.
// Options and some bonds carry their underlying as a nested reference.
type Instrument struct {
	AssetType   AssetType   `json:"asset_type" yaml:"asset_type"`
	Symbol      string      `json:"symbol" yaml:"symbol"`
	Cusip       string      `json:"cusip" yaml:"cusip"`
	Description string      `json:"description" yaml:"description"`
	Underlying  *Instrument `json:"underlying,omitempty" yaml:"underlying,omitempty"`
}

// EffectiveSymbol resolves a display symbol for the instrument. Snapshots do
// not always populate the symbol field directly, so resolution falls back in
// order: direct symbol, underlying symbol, first token of the description,
// then a CUSIP-prefixed pseudo-symbol. Returns "" when nothing is usable.
func (i Instrument) EffectiveSymbol() string {
	if i.Symbol != "" {
		return i.Symbol
	}

	if i.Underlying != nil && i.Underlying.Symbol != "" {
		return i.Underlying.Symbol
	}

	if fields := strings.Fields(i.Description); len(fields) > 0 {
		return fields[0]
	}

	if i.Cusip != "" {
		return "CUSIP:" + i.Cusip
	}

	return ""
}

// Position is one holding inside an account snapshot, keyed by its
// instrument's effective symbol within the owning account.
type Position struct {
	Instrument    Instrument `json:"instrument" yaml:"instrument"`
	LongQuantity  float64    `json:"long_quantity" yaml:"long_quantity"`
	ShortQuantity float64    `json:"short_quantity" yaml:"short_quantity"`
	AveragePrice  float64    `json:"average_price" yaml:"average_price"`
	MarketValue   float64    `json:"market_value" yaml:"market_value"`
	// LongOpenProfitLoss is the venue-reported unrealized gain on the long
	// side, when the snapshot carries it.
	LongOpenProfitLoss float64 `json:"long_open_profit_loss" yaml:"long_open_profit_loss"`
}

// NetQuantity returns the signed net position size.
func (p Position) NetQuantity() float64 {
	return p.LongQuantity - p.ShortQuantity
}
