package enums

// SaleStatus tracks whether an asset is offered for sale.
type SaleStatus string

const (
	SaleStatusNotForSale SaleStatus = "not_for_sale"
	SaleStatusListed     SaleStatus = "listed"
	SaleStatusSold       SaleStatus = "sold"
)

var saleStatuses = newSet("sale status",
	SaleStatusNotForSale,
	SaleStatusListed,
	SaleStatusSold,
)

// IsValid reports whether the value is known.
func (s SaleStatus) IsValid() bool { return saleStatuses.has(s) }
