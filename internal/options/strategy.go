package options

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	apperrors "options-calculator/internal/errors"
)

const (
	// PriceCeiling is the synthetic far-right price used by the break-even scan.
	PriceCeiling = 100000.0
	// MinRisk floors the risk:reward denominator when max loss is zero.
	MinRisk = 0.01
)

// Strategy is an immutable multi-leg option position. Every derived value is
// computed once by NewStrategy.
type Strategy struct {
	name            string
	bias            string
	symbol          string
	underlyingPrice float64
	legs            []Contract

	netPremium       float64
	capitalCommitted float64
	strikes          []float64
	maxProfit        float64
	maxLoss          float64
	maxProfitPrices  []float64
	maxLossPrices    []float64
	breakEvens       []float64
	daysToExpiry     int
	expiration       time.Time
}

// NewStrategy combines legs into a strategy. The legs slice is copied.
func NewStrategy(name, bias, symbol string, underlyingPrice float64, legs []Contract) (*Strategy, error) {
	if len(legs) == 0 {
		return nil, apperrors.NewValidationError("legs", 0, "a strategy needs at least one leg")
	}
	if math.IsNaN(underlyingPrice) || underlyingPrice < 0 {
		return nil, apperrors.NewValidationError("underlying_price", underlyingPrice, "cannot be negative")
	}

	s := &Strategy{
		name:            name,
		bias:            bias,
		symbol:          symbol,
		underlyingPrice: underlyingPrice,
		legs:            append([]Contract(nil), legs...),
	}

	s.netPremium = s.calculateNetPremium()
	s.capitalCommitted = s.calculateCapitalCommitted()
	s.strikes = distinctStrikes(s.legs)
	s.maxProfit = s.calculateMaxProfit()
	s.maxLoss = s.calculateMaxLoss()
	s.breakEvens = s.calculateBreakEvens()
	s.maxProfitPrices = s.pricesWithPayoff(s.maxProfit)
	s.maxLossPrices = s.pricesWithPayoff(s.maxLoss)
	s.daysToExpiry, s.expiration = s.bindingExpiry()

	return s, nil
}

func distinctStrikes(legs []Contract) []float64 {
	seen := make(map[float64]struct{}, len(legs))
	strikes := make([]float64, 0, len(legs))
	for _, leg := range legs {
		if _, ok := seen[leg.Strike()]; ok {
			continue
		}
		seen[leg.Strike()] = struct{}{}
		strikes = append(strikes, leg.Strike())
	}
	sort.Float64s(strikes)
	return strikes
}

func (s *Strategy) calculateNetPremium() float64 {
	var sum float64
	for _, leg := range s.legs {
		sum += leg.Premium()
	}
	return Round2(sum)
}

func (s *Strategy) calculateCapitalCommitted() float64 {
	if s.netPremium <= 0 {
		return 0
	}
	return s.netPremium * ContractMultiplier
}

// calculateMaxProfit treats the position as unbounded when the payoff still
// rises one dollar past the highest strike.
func (s *Strategy) calculateMaxProfit() float64 {
	highest := s.strikes[len(s.strikes)-1]
	if s.PayoffAt(highest+1) > s.PayoffAt(highest) {
		return math.Inf(1)
	}
	best := s.PayoffAt(0)
	for _, strike := range s.strikes {
		best = math.Max(best, s.PayoffAt(strike))
	}
	return best
}

// calculateMaxLoss treats the position as unbounded when the payoff still
// falls one dollar below the lowest strike.
func (s *Strategy) calculateMaxLoss() float64 {
	lowest := s.strikes[0]
	if s.PayoffAt(lowest-1) < s.PayoffAt(lowest) {
		return math.Inf(-1)
	}
	worst := s.PayoffAt(0)
	for _, strike := range s.strikes {
		worst = math.Min(worst, s.PayoffAt(strike))
	}
	return worst
}

// calculateBreakEvens interpolates the zero crossing of every adjacent pair
// of scan prices whose payoffs differ in sign. The payoff is linear between
// consecutive strikes, so the interpolation is exact.
func (s *Strategy) calculateBreakEvens() []float64 {
	prices := s.scanPrices()
	payoffs := make([]float64, len(prices))
	for i, p := range prices {
		payoffs[i] = s.PayoffAt(p)
	}

	breakEvens := make([]float64, 0)
	for i := 0; i < len(prices)-1; i++ {
		x0, y0 := prices[i], payoffs[i]
		x1, y1 := prices[i+1], payoffs[i+1]
		if sign(y0) == sign(y1) {
			continue
		}
		m := (y0 - y1) / (x0 - x1)
		b := y0 - m*x0
		breakEvens = append(breakEvens, -b/m)
	}
	return breakEvens
}

// scanPrices returns the distinct strikes plus 0 and PriceCeiling, ascending.
func (s *Strategy) scanPrices() []float64 {
	prices := make([]float64, 0, len(s.strikes)+2)
	if s.strikes[0] > 0 {
		prices = append(prices, 0)
	}
	prices = append(prices, s.strikes...)
	if s.strikes[len(s.strikes)-1] < PriceCeiling {
		prices = append(prices, PriceCeiling)
	}
	return prices
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// pricesWithPayoff returns the strikes whose payoff equals target, or a single
// NaN when none does (the extremum was not reached at a strike).
func (s *Strategy) pricesWithPayoff(target float64) []float64 {
	prices := make([]float64, 0, 1)
	for _, strike := range s.strikes {
		if s.PayoffAt(strike) == target {
			prices = append(prices, strike)
		}
	}
	if len(prices) == 0 {
		prices = append(prices, math.NaN())
	}
	return prices
}

func (s *Strategy) bindingExpiry() (int, time.Time) {
	days := s.legs[0].DaysToExpiry()
	expiration := s.legs[0].Expiration()
	for _, leg := range s.legs[1:] {
		if leg.DaysToExpiry() < days {
			days = leg.DaysToExpiry()
		}
		if leg.Expiration().Before(expiration) {
			expiration = leg.Expiration()
		}
	}
	return days, expiration
}

// PayoffAt returns the summed leg payoffs at price, rounded to two decimals.
func (s *Strategy) PayoffAt(price float64) float64 {
	var sum float64
	for _, leg := range s.legs {
		sum += leg.PayoffAt(price)
	}
	return Round2(sum)
}

// RiskReward returns the payoff at price divided by the magnitude of the max
// loss (floored at MinRisk), rounded to two decimals. An unbounded loss gives 0.
func (s *Strategy) RiskReward(price float64) float64 {
	risk := math.Max(math.Abs(s.maxLoss), MinRisk)
	return Round2(s.PayoffAt(price) / risk)
}

// IsUndefinedPrice reports whether p is the marker returned by
// MaxProfitPrices/MaxLossPrices when no strike reaches the extremum.
func IsUndefinedPrice(p float64) bool {
	return math.IsNaN(p)
}

func (s *Strategy) Name() string              { return s.name }
func (s *Strategy) Bias() string              { return s.bias }
func (s *Strategy) Symbol() string            { return s.symbol }
func (s *Strategy) UnderlyingPrice() float64  { return s.underlyingPrice }
func (s *Strategy) NetPremium() float64       { return s.netPremium }
func (s *Strategy) CapitalCommitted() float64 { return s.capitalCommitted }

// MaxProfit returns the maximum payoff, or +Inf when unbounded.
func (s *Strategy) MaxProfit() float64 { return s.maxProfit }

// MaxLoss returns the minimum payoff, or -Inf when unbounded.
func (s *Strategy) MaxLoss() float64 { return s.maxLoss }

// DaysToExpiry returns the fewest days to expiry across legs.
func (s *Strategy) DaysToExpiry() int { return s.daysToExpiry }

// Expiration returns the earliest leg expiration.
func (s *Strategy) Expiration() time.Time { return s.expiration }

// Legs returns a copy of the legs in construction order.
func (s *Strategy) Legs() []Contract { return append([]Contract(nil), s.legs...) }

// Strikes returns the distinct strikes, ascending.
func (s *Strategy) Strikes() []float64 { return append([]float64(nil), s.strikes...) }

// BreakEvens returns the break-even prices in scan order.
func (s *Strategy) BreakEvens() []float64 { return append([]float64(nil), s.breakEvens...) }

// MaxProfitPrices returns the strikes where the max profit is reached.
func (s *Strategy) MaxProfitPrices() []float64 { return append([]float64(nil), s.maxProfitPrices...) }

// MaxLossPrices returns the strikes where the max loss is reached.
func (s *Strategy) MaxLossPrices() []float64 { return append([]float64(nil), s.maxLossPrices...) }

// LongLegs returns the long legs in construction order.
func (s *Strategy) LongLegs() []Contract { return s.filterLegs(true) }

// ShortLegs returns the short legs in construction order.
func (s *Strategy) ShortLegs() []Contract { return s.filterLegs(false) }

func (s *Strategy) filterLegs(long bool) []Contract {
	out := make([]Contract, 0, len(s.legs))
	for _, leg := range s.legs {
		if leg.IsLong() == long {
			out = append(out, leg)
		}
	}
	return out
}

// ProfitLossRow is one price of a profit/loss projection.
type ProfitLossRow struct {
	Price      float64   `json:"price"`
	LegPayoffs []float64 `json:"leg_payoffs"`
	Payoff     float64   `json:"payoff"`
	RiskReward float64   `json:"risk_reward"`
}

// ProfitLossTable is a per-price projection of leg and strategy payoffs.
type ProfitLossTable struct {
	Strategy string          `json:"strategy"`
	Legs     []string        `json:"legs"`
	Rows     []ProfitLossRow `json:"rows"`
}

// ProfitLossTable projects payoffs at every integer price from round(from)
// up to but excluding round(to).
func (s *Strategy) ProfitLossTable(from, to float64) ProfitLossTable {
	table := ProfitLossTable{
		Strategy: s.name,
		Legs:     make([]string, len(s.legs)),
	}
	for i, leg := range s.legs {
		table.Legs[i] = leg.Identifier()
	}

	start, end := int(math.Round(from)), int(math.Round(to))
	for p := start; p < end; p++ {
		price := float64(p)
		row := ProfitLossRow{
			Price:      price,
			LegPayoffs: make([]float64, len(s.legs)),
			Payoff:     s.PayoffAt(price),
			RiskReward: s.RiskReward(price),
		}
		for i, leg := range s.legs {
			row.LegPayoffs[i] = leg.PayoffAt(price)
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// Summary returns labelled lines describing the strategy.
func (s *Strategy) Summary() []string {
	ids := func(legs []Contract) string {
		names := make([]string, len(legs))
		for i, leg := range legs {
			names[i] = leg.Identifier()
		}
		return strings.Join(names, ", ")
	}
	return []string{
		fmt.Sprintf("Strategy:          %s", s.name),
		fmt.Sprintf("Bias:              %s", s.bias),
		fmt.Sprintf("Underlying:        %s @ %.2f", s.symbol, s.underlyingPrice),
		fmt.Sprintf("Legs (%d):          %s", len(s.legs), ids(s.legs)),
		fmt.Sprintf("Long Legs:         %s", ids(s.LongLegs())),
		fmt.Sprintf("Short Legs:        %s", ids(s.ShortLegs())),
		fmt.Sprintf("Strikes:           %s", FormatPrices(s.strikes)),
		fmt.Sprintf("Net Premium:       %.2f", s.netPremium),
		fmt.Sprintf("Capital Committed: %.2f", s.capitalCommitted),
		fmt.Sprintf("Break-evens:       %s", FormatPrices(s.breakEvens)),
		fmt.Sprintf("Max Profit:        %s at %s", FormatAmount(s.maxProfit), FormatPrices(s.maxProfitPrices)),
		fmt.Sprintf("Max Loss:          %s at %s", FormatAmount(s.maxLoss), FormatPrices(s.maxLossPrices)),
		fmt.Sprintf("Expiration:        %s (%d days)", s.expiration.Format("2006-01-02"), s.daysToExpiry),
	}
}

// FormatAmount renders a payoff amount, spelling out unbounded values.
func FormatAmount(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "unlimited"
	case math.IsInf(v, -1):
		return "-unlimited"
	case math.IsNaN(v):
		return "n/a"
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// FormatPrices renders a price list, showing the undefined marker as n/a.
func FormatPrices(prices []float64) string {
	if len(prices) == 0 {
		return "-"
	}
	parts := make([]string, len(prices))
	for i, p := range prices {
		parts[i] = FormatAmount(p)
	}
	return strings.Join(parts, ", ")
}
