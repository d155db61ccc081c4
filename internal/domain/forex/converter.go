package forex

import (
	"github.com/shopspring/decimal"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
	"github.com/emiliopc17/redmil-crm/pkg/money"
)

// CurrencyConverter prices records in the target currency. It has no
// state beyond the target currency and performs no I/O.
type CurrencyConverter struct {
	target string
}

// NewCurrencyConverter creates a converter into target.
func NewCurrencyConverter(target string) CurrencyConverter {
	if target == "" {
		target = money.HNL
	}
	return CurrencyConverter{target: target}
}

// Target returns the target currency code.
func (c CurrencyConverter) Target() string {
	return c.target
}

// Amount converts one source amount at full precision. Stored costs are
// never rounded; use Round or Display when presenting them.
func (c CurrencyConverter) Amount(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate)
}

// Round rounds a converted amount to the target currency's minor unit.
func (c CurrencyConverter) Round(amount decimal.Decimal) decimal.Decimal {
	return money.NewFromDecimal(amount, c.target).ToDecimal()
}

// Display formats a converted amount with the target currency's symbol.
func (c CurrencyConverter) Display(amount decimal.Decimal) string {
	return money.NewFromDecimal(amount, c.target).Display()
}

// Convert applies rate uniformly to every record.
func (c CurrencyConverter) Convert(records []catalog.Record, rate decimal.Decimal) []catalog.PricedRecord {
	out := make([]catalog.PricedRecord, len(records))
	for i, rec := range records {
		out[i] = catalog.PricedRecord{Record: rec, CostLocal: c.Amount(rec.CostUSD, rate)}
	}
	return out
}
