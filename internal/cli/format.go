// Package cli provides the command-line interface for the options calculator.
package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"options-calculator/internal/options"
)

// FormatCurrency formats a dollar amount with thousands separators.
func FormatCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")

	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts a comma every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatAmount renders a per-share payoff, spelling out unbounded values.
func FormatAmount(v float64) string {
	return options.FormatAmount(v)
}

// FormatPrices renders a list of prices.
func FormatPrices(prices []float64) string {
	return options.FormatPrices(prices)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatIV formats implied volatility.
func FormatIV(iv float64) string {
	return fmt.Sprintf("%.2f%%", iv*100)
}

// FormatVolume formats volume in compact form.
func FormatVolume(volume int64) string {
	switch {
	case volume >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(volume)/1_000_000)
	case volume >= 1000:
		return fmt.Sprintf("%.2fK", float64(volume)/1000)
	}
	return fmt.Sprintf("%d", volume)
}

// FormatRiskReward formats a risk:reward ratio.
func FormatRiskReward(rr float64) string {
	return fmt.Sprintf("%.2f", rr)
}

// FormatBidAsk formats a bid/ask quote with its spread.
func FormatBidAsk(bid, ask float64) string {
	spread := ask - bid
	if bid <= 0 {
		return fmt.Sprintf("%.2f / %.2f", bid, ask)
	}
	return fmt.Sprintf("%.2f / %.2f (%.2f%%)", bid, ask, spread/bid*100)
}

// FormatDate formats a date.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatLegs lists leg identifiers with a +/- direction prefix.
func FormatLegs(s *options.Strategy) string {
	legs := s.Legs()
	parts := make([]string, len(legs))
	for i, leg := range legs {
		sign := "+"
		if !leg.IsLong() {
			sign = "-"
		}
		parts[i] = sign + leg.Identifier()
	}
	return strings.Join(parts, " ")
}

// Amount is a float that encodes unbounded values as strings and the
// undefined marker as null, since JSON has no Inf or NaN.
type Amount float64

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	v := float64(a)
	switch {
	case math.IsNaN(v):
		return []byte("null"), nil
	case math.IsInf(v, 0):
		return json.Marshal(options.FormatAmount(v))
	}
	return json.Marshal(v)
}

// Amounts converts a float slice.
func Amounts(values []float64) []Amount {
	out := make([]Amount, len(values))
	for i, v := range values {
		out[i] = Amount(v)
	}
	return out
}
