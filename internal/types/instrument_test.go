package types

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type InstrumentTestSuite struct {
	suite.Suite
}

func TestInstrumentSuite(t *testing.T) {
	suite.Run(t, new(InstrumentTestSuite))
}

func (suite *InstrumentTestSuite) TestEffectiveSymbol_Direct() {
	inst := Instrument{AssetType: AssetTypeEquity, Symbol: "AAPL"}
	suite.Equal("AAPL", inst.EffectiveSymbol())
}

func (suite *InstrumentTestSuite) TestEffectiveSymbol_Underlying() {
	inst := Instrument{
		AssetType:  AssetTypeOption,
		Underlying: &Instrument{Symbol: "SPY"},
	}
	suite.Equal("SPY", inst.EffectiveSymbol())
}

func (suite *InstrumentTestSuite) TestEffectiveSymbol_DescriptionFirstToken() {
	inst := Instrument{
		AssetType:   AssetTypeFixedIncome,
		Description: "TSLA 5.3% Corporate Note 2031",
	}
	suite.Equal("TSLA", inst.EffectiveSymbol())
}

func (suite *InstrumentTestSuite) TestEffectiveSymbol_CusipFallback() {
	inst := Instrument{AssetType: AssetTypeBond, Cusip: "912828YK0"}
	suite.Equal("CUSIP:912828YK0", inst.EffectiveSymbol())
}

func (suite *InstrumentTestSuite) TestEffectiveSymbol_Empty() {
	suite.Equal("", Instrument{}.EffectiveSymbol())
}

func (suite *InstrumentTestSuite) TestEffectiveSymbol_PrefersDirectOverFallbacks() {
	inst := Instrument{
		Symbol:      "MSFT",
		Description: "MICROSOFT CORP",
		Cusip:       "594918104",
		Underlying:  &Instrument{Symbol: "OTHER"},
	}
	suite.Equal("MSFT", inst.EffectiveSymbol())
}

func (suite *InstrumentTestSuite) TestNormalize_EquityVariants() {
	suite.Equal(AssetClassEquity, AssetTypeCommonStock.Normalize())
	suite.Equal(AssetClassEquity, AssetTypePreferredStock.Normalize())
	suite.Equal(AssetClassEquity, AssetTypeETF.Normalize())
	suite.Equal(AssetClassEquity, AssetTypeEquity.Normalize())
}

func (suite *InstrumentTestSuite) TestNormalize_FixedIncomeVariants() {
	suite.Equal(AssetClassFixedIncome, AssetTypeBond.Normalize())
	suite.Equal(AssetClassFixedIncome, AssetTypeGovernmentBond.Normalize())
	suite.Equal(AssetClassFixedIncome, AssetTypeCorporateBond.Normalize())
}

func (suite *InstrumentTestSuite) TestNormalize_Fund() {
	suite.Equal(AssetClassMutualFund, AssetTypeFund.Normalize())
	suite.Equal(AssetClassMutualFund, AssetTypeMutualFund.Normalize())
}

func (suite *InstrumentTestSuite) TestNormalize_CaseInsensitive() {
	suite.Equal(AssetClassEquity, AssetType("common_stock").Normalize())
}

func (suite *InstrumentTestSuite) TestNormalize_UnknownDefaultsToEquity() {
	suite.Equal(AssetClassEquity, AssetType("CRYPTO").Normalize())
}

func (suite *InstrumentTestSuite) TestNetQuantity() {
	pos := Position{LongQuantity: 10, ShortQuantity: 4}
	suite.InDelta(6.0, pos.NetQuantity(), 1e-9)
}
