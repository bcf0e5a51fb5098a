package types

// AccountType distinguishes the two brokerage account variants, which report
// their spendable cash through different balance fields.
type AccountType string

const (
	AccountTypeMargin AccountType = "MARGIN"
	AccountTypeCash   AccountType = "CASH"
)

// Balances holds the balance fields reported with an account snapshot.
type Balances struct {
	// AvailableFunds is the spendable balance for margin accounts
	AvailableFunds float64 `json:"available_funds" yaml:"available_funds"`
	// CashAvailableForTrading is the spendable balance for cash accounts
	CashAvailableForTrading float64 `json:"cash_available_for_trading" yaml:"cash_available_for_trading"`
	// TotalCash is the raw cash balance, used as a fallback when the
	// type-specific field is absent
	TotalCash float64 `json:"total_cash" yaml:"total_cash"`
	// BuyingPower is the available amount for new purchases
	BuyingPower float64 `json:"buying_power" yaml:"buying_power"`
	// AccountValue is the total liquidation value of the account
	AccountValue float64 `json:"account_value" yaml:"account_value"`
}

// Account is a full REST snapshot of one brokerage account. Snapshots are
// always applied as wholesale replacements; fields are never merged.
type Account struct {
	AccountNumber   string      `json:"account_number" yaml:"account_number"`
	Type            AccountType `json:"type" yaml:"type"`
	CurrentBalances Balances    `json:"current_balances" yaml:"current_balances"`
	InitialBalances Balances    `json:"initial_balances" yaml:"initial_balances"`
	Positions       []Position  `json:"positions" yaml:"positions"`
}

// CashBalance returns the spendable cash for this account using the
// type-specific balance field: AvailableFunds for margin accounts,
// CashAvailableForTrading for cash accounts with TotalCash as fallback.
func (a *Account) CashBalance() float64 {
	switch a.Type {
	case AccountTypeMargin:
		return a.CurrentBalances.AvailableFunds
	case AccountTypeCash:
		if a.CurrentBalances.CashAvailableForTrading != 0 {
			return a.CurrentBalances.CashAvailableForTrading
		}

		return a.CurrentBalances.TotalCash
	default:
		return a.CurrentBalances.TotalCash
	}
}
