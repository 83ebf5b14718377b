package enums

// Currency represents supported denominations for listing prices.
type Currency string

const (
	CurrencyUSD   Currency = "USD"
	CurrencyETH   Currency = "ETH"
	CurrencyUSDC  Currency = "USDC"
	CurrencyMATIC Currency = "MATIC"
)

var currencies = newSet("currency",
	CurrencyUSD,
	CurrencyETH,
	CurrencyUSDC,
	CurrencyMATIC,
)

// IsValid reports whether the value is known.
func (c Currency) IsValid() bool { return currencies.has(c) }

// ParseCurrency converts raw input into a Currency.
func ParseCurrency(value string) (Currency, error) { return currencies.parse(value) }
