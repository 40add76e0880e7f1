// Package format renders money amounts for the dashboard.
package format

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brazil = message.NewPrinter(language.BrazilianPortuguese)

// BRL formats amount as Brazilian reais, e.g. "R$ 1.234,56".
func BRL(amount decimal.Decimal) string {
	return Money(amount, currency.BRL)
}

// Money formats amount in unit using pt-BR digit grouping. Units other than
// BRL are prefixed with their ISO code.
func Money(amount decimal.Decimal, unit currency.Unit) string {
	f, _ := amount.Round(2).Float64()
	number := brazil.Sprintf("%.2f", f)

	symbol := unit.String()
	if unit == currency.BRL {
		symbol = "R$"
	}

	if strings.HasPrefix(number, "-") {
		return "-" + symbol + " " + strings.TrimPrefix(number, "-")
	}
	return symbol + " " + number
}

// ParseUnit resolves an ISO 4217 code, falling back to BRL.
func ParseUnit(code string) currency.Unit {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return currency.BRL
	}
	return unit
}
