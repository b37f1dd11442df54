package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var moneyPrinter = message.NewPrinter(language.English)

// FormatAmount renders a money amount with grouping separators and two
// decimal places, e.g. "12,340.50". Used by handlers and job summaries.
func FormatAmount(d decimal.Decimal) string {
	f, _ := d.Float64()
	return moneyPrinter.Sprintf("%v", number.Decimal(f, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}
