package entitlements

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/shopspring/decimal"
)

// Tier prices every size strictly below UpperBytes that no smaller tier covers.
type Tier struct {
	UpperBytes int64
	Price      decimal.Decimal
}

// Pricing is the mint price step function over asset size.
type Pricing struct {
	tiers []Tier
	top   decimal.Decimal
}

// NewPricing parses "<upper bytes>:<usd>" tiers. Bounds must ascend and prices must not
// decrease, with the top price at least the last tier price.
func NewPricing(cfg config.PricingConfig) (*Pricing, error) {
	top, err := decimal.NewFromString(strings.TrimSpace(cfg.TopPriceUSD))
	if err != nil {
		return nil, fmt.Errorf("parse top price %q: %w", cfg.TopPriceUSD, err)
	}
	tiers := make([]Tier, 0, len(cfg.MintTiers))
	for _, raw := range cfg.MintTiers {
		boundRaw, priceRaw, ok := strings.Cut(strings.TrimSpace(raw), ":")
		if !ok {
			return nil, fmt.Errorf("price tier %q must be <bytes>:<usd>", raw)
		}
		bound, err := strconv.ParseInt(strings.TrimSpace(boundRaw), 10, 64)
		if err != nil || bound <= 0 {
			return nil, fmt.Errorf("price tier %q has an invalid size bound", raw)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(priceRaw))
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("price tier %q has an invalid price", raw)
		}
		if n := len(tiers); n > 0 {
			if bound <= tiers[n-1].UpperBytes {
				return nil, fmt.Errorf("price tier %q does not ascend", raw)
			}
			if price.LessThan(tiers[n-1].Price) {
				return nil, fmt.Errorf("price tier %q is cheaper than a smaller tier", raw)
			}
		}
		tiers = append(tiers, Tier{UpperBytes: bound, Price: price})
	}
	if n := len(tiers); n > 0 && top.LessThan(tiers[n-1].Price) {
		return nil, fmt.Errorf("top price %s is below the last tier", top)
	}
	return &Pricing{tiers: tiers, top: top}, nil
}

// MintPrice returns the price for an asset of sizeBytes. A size equal to a bound falls
// into the next tier.
func (p *Pricing) MintPrice(sizeBytes int64) decimal.Decimal {
	for _, tier := range p.tiers {
		if sizeBytes < tier.UpperBytes {
			return tier.Price
		}
	}
	return p.top
}

// Tiers returns a copy of the configured tiers.
func (p *Pricing) Tiers() []Tier {
	return append([]Tier(nil), p.tiers...)
}
