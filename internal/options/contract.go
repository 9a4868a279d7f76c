// Package options implements the option contract and multi-leg strategy
// valuation model: payoffs, break-evens, extrema and risk:reward.
package options

import (
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "options-calculator/internal/errors"
	"options-calculator/internal/models"
)

const (
	// ATMThreshold is the relative strike distance below which a contract is ATM.
	ATMThreshold = 0.03
	// ContractMultiplier is the number of shares one contract controls.
	ContractMultiplier = 100
)

// kindFormulas holds the kind-specific pieces of the contract math.
type kindFormulas struct {
	// exercise returns how far price sits past the strike in the
	// contract's favor (positive means in the money at that price).
	exercise func(price, strike float64) float64
	// breakEven returns the underlying price where the leg's payoff is zero.
	breakEven func(strike, absPremium float64) float64
}

var formulas = map[models.OptionKind]kindFormulas{
	models.OptionKindCall: {
		exercise:  func(price, strike float64) float64 { return price - strike },
		breakEven: func(strike, absPremium float64) float64 { return strike + absPremium },
	},
	models.OptionKindPut: {
		exercise:  func(price, strike float64) float64 { return strike - price },
		breakEven: func(strike, absPremium float64) float64 { return strike - absPremium },
	},
}

// ContractSpec is the snapshot of chain data a Contract is built from.
type ContractSpec struct {
	Symbol            string
	UnderlyingPrice   float64
	Strike            float64
	Bid               float64
	Ask               float64
	ImpliedVolatility float64
	Volume            int64
	Expiration        time.Time
	Kind              models.OptionKind
	Long              bool
	// AsOf is the evaluation date for days-to-expiry. Zero means today.
	AsOf time.Time
}

// SpecFromRow builds a ContractSpec from a chain row.
func SpecFromRow(symbol string, underlying float64, asOf time.Time, row models.ChainRow, long bool) ContractSpec {
	return ContractSpec{
		Symbol:            symbol,
		UnderlyingPrice:   underlying,
		Strike:            row.Strike,
		Bid:               row.Bid,
		Ask:               row.Ask,
		ImpliedVolatility: row.ImpliedVolatility,
		Volume:            row.Volume,
		Expiration:        row.Expiration,
		Kind:              row.Kind,
		Long:              long,
		AsOf:              asOf,
	}
}

// Contract is one option leg. It is an immutable value: every derived field
// is computed by NewContract and never changes.
type Contract struct {
	spec      ContractSpec
	direction models.Direction

	premium          float64
	moneyness        models.Moneyness
	intrinsicValue   float64
	timeValue        float64
	capitalCommitted float64
	breakEven        float64
	daysToExpiry     int
}

// NewContract validates spec and returns the fully derived contract.
func NewContract(spec ContractSpec) (Contract, error) {
	if err := validateSpec(spec); err != nil {
		return Contract{}, err
	}
	if spec.AsOf.IsZero() {
		spec.AsOf = time.Now()
	}
	return newContractBuilder(spec).
		premium().
		moneyness().
		intrinsicValue().
		timeValue().
		capitalCommitted().
		breakEven().
		daysToExpiry().
		contract, nil
}

func validateSpec(spec ContractSpec) error {
	if _, ok := formulas[spec.Kind]; !ok {
		return apperrors.NewValidationError("kind", spec.Kind, "must be CALL or PUT")
	}
	numeric := []struct {
		field string
		value float64
	}{
		{"strike", spec.Strike},
		{"bid", spec.Bid},
		{"ask", spec.Ask},
		{"underlying_price", spec.UnderlyingPrice},
	}
	for _, n := range numeric {
		if math.IsNaN(n.value) || math.IsInf(n.value, 0) {
			return apperrors.NewValidationError(n.field, n.value, "must be a finite number")
		}
		if n.value < 0 {
			return apperrors.NewValidationError(n.field, n.value, "cannot be negative")
		}
	}
	if spec.Volume < 0 {
		return apperrors.NewValidationError("volume", spec.Volume, "cannot be negative")
	}
	if spec.UnderlyingPrice == 0 {
		return apperrors.NewValidationError("underlying_price", spec.UnderlyingPrice, "must be positive")
	}
	return nil
}

// contractBuilder derives the contract fields in dependency order. Each step
// reads only fields set by the steps before it.
type contractBuilder struct {
	contract Contract
	f        kindFormulas
}

func newContractBuilder(spec ContractSpec) *contractBuilder {
	return &contractBuilder{
		contract: Contract{spec: spec, direction: models.DirectionOf(spec.Long)},
		f:        formulas[spec.Kind],
	}
}

func (b *contractBuilder) premium() *contractBuilder {
	b.contract.premium = float64(b.contract.direction) * math.Abs(b.contract.spec.Ask)
	return b
}

func (b *contractBuilder) moneyness() *contractBuilder {
	b.contract.moneyness = Classify(b.contract.spec.Kind, b.contract.spec.UnderlyingPrice, b.contract.spec.Strike)
	return b
}

func (b *contractBuilder) intrinsicValue() *contractBuilder {
	b.contract.intrinsicValue = math.Max(0, b.f.exercise(b.contract.spec.UnderlyingPrice, b.contract.spec.Strike))
	return b
}

func (b *contractBuilder) timeValue() *contractBuilder {
	b.contract.timeValue = math.Abs(b.contract.premium) - b.contract.intrinsicValue
	return b
}

func (b *contractBuilder) capitalCommitted() *contractBuilder {
	if b.contract.direction == models.Long {
		b.contract.capitalCommitted = b.contract.premium * ContractMultiplier
	}
	return b
}

func (b *contractBuilder) breakEven() *contractBuilder {
	b.contract.breakEven = b.f.breakEven(b.contract.spec.Strike, math.Abs(b.contract.premium))
	return b
}

func (b *contractBuilder) daysToExpiry() *contractBuilder {
	b.contract.daysToExpiry = DaysBetween(b.contract.spec.AsOf, b.contract.spec.Expiration)
	return b
}

// Classify returns the moneyness of a contract of the given kind. A strike
// within ATMThreshold of the underlying (relative to the underlying) is ATM;
// otherwise a call is ITM when the underlying is above the strike and a put is
// ITM when it is below. kind must be valid; an unknown kind yields the empty
// Moneyness.
func Classify(kind models.OptionKind, underlying, strike float64) models.Moneyness {
	delta := underlying - strike
	if math.Abs(delta)/underlying < ATMThreshold {
		return models.AtTheMoney
	}
	f, ok := formulas[kind]
	if !ok {
		return ""
	}
	if f.exercise(underlying, strike) > 0 {
		return models.InTheMoney
	}
	return models.OutOfTheMoney
}

// DaysBetween returns the number of calendar days from from to to, comparing
// dates only. Negative when to is before from.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return math.Round(v*100) / 100
}

// PayoffAt returns the per-unit return of the leg if the underlying moves to
// price, rounded to two decimals.
func (c Contract) PayoffAt(price float64) float64 {
	dir := float64(c.direction)
	absPremium := math.Abs(c.premium)
	if move := formulas[c.spec.Kind].exercise(price, c.spec.Strike); move > 0 {
		return Round2(dir * (move - absPremium))
	}
	return Round2(dir * -absPremium)
}

// Identifier returns the display identifier: symbol, YYMMDD expiration, kind
// letter and the strike as 7 digits with 2 implied decimals.
func (c Contract) Identifier() string {
	strike := int64(math.Round(c.spec.Strike * 100))
	return fmt.Sprintf("%s%s%s%07d",
		strings.ToUpper(c.spec.Symbol),
		c.spec.Expiration.Format("060102"),
		c.spec.Kind.Letter(),
		strike,
	)
}

// BreakEven returns the underlying price at which the leg's payoff is zero.
// It is direction-independent: long and short legs share strike ± |premium|.
func (c Contract) BreakEven() float64 { return c.breakEven }

func (c Contract) Symbol() string              { return c.spec.Symbol }
func (c Contract) UnderlyingPrice() float64    { return c.spec.UnderlyingPrice }
func (c Contract) Strike() float64             { return c.spec.Strike }
func (c Contract) Bid() float64                { return c.spec.Bid }
func (c Contract) Ask() float64                { return c.spec.Ask }
func (c Contract) ImpliedVolatility() float64  { return c.spec.ImpliedVolatility }
func (c Contract) Volume() int64               { return c.spec.Volume }
func (c Contract) Expiration() time.Time       { return c.spec.Expiration }
func (c Contract) Kind() models.OptionKind     { return c.spec.Kind }
func (c Contract) IsLong() bool                { return c.direction == models.Long }
func (c Contract) Direction() models.Direction { return c.direction }
func (c Contract) Premium() float64            { return c.premium }
func (c Contract) Moneyness() models.Moneyness { return c.moneyness }
func (c Contract) IntrinsicValue() float64     { return c.intrinsicValue }
func (c Contract) TimeValue() float64          { return c.timeValue }
func (c Contract) CapitalCommitted() float64   { return c.capitalCommitted }
func (c Contract) DaysToExpiry() int           { return c.daysToExpiry }
func (c Contract) AsOf() time.Time             { return c.spec.AsOf }

// Summary returns labelled lines describing the contract.
func (c Contract) Summary() []string {
	return []string{
		fmt.Sprintf("Contract:          %s", c.Identifier()),
		fmt.Sprintf("Type:              %s", c.spec.Kind),
		fmt.Sprintf("Underlying:        %s @ %.2f", c.spec.Symbol, c.spec.UnderlyingPrice),
		fmt.Sprintf("Strike:            %.2f", c.spec.Strike),
		fmt.Sprintf("Direction:         %s", c.direction),
		fmt.Sprintf("Bid/Ask:           %.2f / %.2f", c.spec.Bid, c.spec.Ask),
		fmt.Sprintf("Premium:           %.2f", c.premium),
		fmt.Sprintf("Moneyness:         %s", c.moneyness),
		fmt.Sprintf("Implied Vol:       %.4f", c.spec.ImpliedVolatility),
		fmt.Sprintf("Volume:            %d", c.spec.Volume),
		fmt.Sprintf("Intrinsic Value:   %.2f", c.intrinsicValue),
		fmt.Sprintf("Time Value:        %.2f", c.timeValue),
		fmt.Sprintf("Capital Committed: %.2f", c.capitalCommitted),
		fmt.Sprintf("Break-even:        %.2f", c.breakEven),
		fmt.Sprintf("Expiration:        %s", c.spec.Expiration.Format("2006-01-02")),
		fmt.Sprintf("Days to Expiry:    %d", c.daysToExpiry),
	}
}
