// Package chain holds an options chain snapshot and answers the typed queries
// the screener issues against it.
package chain

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	apperrors "options-calculator/internal/errors"
	"options-calculator/internal/models"
	"options-calculator/internal/options"
)

// LiquidityFilter is the floor a row must clear (strictly) to be admitted.
type LiquidityFilter struct {
	MinVolume int64
	MinBid    float64
	MinAsk    float64
}

// DefaultLiquidity admits rows with volume > 10, bid > 1 and ask > 1.
func DefaultLiquidity() LiquidityFilter {
	return LiquidityFilter{MinVolume: 10, MinBid: 1, MinAsk: 1}
}

// NoLiquidityFilter admits every well-formed row.
func NoLiquidityFilter() LiquidityFilter {
	return LiquidityFilter{MinVolume: -1, MinBid: -1, MinAsk: -1}
}

// Admits reports whether row clears the floor.
func (f LiquidityFilter) Admits(row models.ChainRow) bool {
	return row.Volume > f.MinVolume && row.Bid > f.MinBid && row.Ask > f.MinAsk
}

// Admit validates rows, drops the illiquid ones and derives each survivor's
// expiration bucket and moneyness. Order is preserved.
func Admit(underlying float64, asOf time.Time, rows []models.ChainRow, filter LiquidityFilter) ([]models.ChainRow, error) {
	if math.IsNaN(underlying) || underlying <= 0 {
		return nil, apperrors.NewValidationError("underlying_price", underlying, "must be positive")
	}

	admitted := make([]models.ChainRow, 0, len(rows))
	for i, row := range rows {
		if err := validateRow(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if !filter.Admits(row) {
			continue
		}
		row.ExpirationBucket = options.DaysBetween(asOf, row.Expiration)
		row.Moneyness = options.Classify(row.Kind, underlying, row.Strike)
		admitted = append(admitted, row)
	}
	return admitted, nil
}

func validateRow(row models.ChainRow) error {
	if !row.Kind.Valid() {
		return apperrors.NewValidationError("kind", row.Kind, "must be CALL or PUT")
	}
	if row.Strike < 0 || row.Bid < 0 || row.Ask < 0 || row.Volume < 0 {
		return apperrors.NewValidationError("row", row.Strike, "strike, bid, ask and volume cannot be negative")
	}
	if row.Expiration.IsZero() {
		return apperrors.NewValidationError("expiration", row.Expiration, "is required")
	}
	return nil
}

// Chain is an in-memory chain snapshot. It is read-only after New.
type Chain struct {
	symbol     string
	underlying float64
	asOf       time.Time
	rows       []models.ChainRow
}

// New admits rows into a chain for symbol priced at underlying on asOf.
func New(symbol string, underlying float64, asOf time.Time, rows []models.ChainRow, filter LiquidityFilter) (*Chain, error) {
	admitted, err := Admit(underlying, asOf, rows, filter)
	if err != nil {
		return nil, err
	}
	return &Chain{
		symbol:     symbol,
		underlying: underlying,
		asOf:       asOf,
		rows:       admitted,
	}, nil
}

// FromSnapshot builds a chain from a decoded snapshot.
func FromSnapshot(snap models.OptionChain, filter LiquidityFilter) (*Chain, error) {
	return New(snap.Symbol, snap.UnderlyingPrice, snap.AsOf, snap.Rows, filter)
}

func (c *Chain) Symbol() string           { return c.symbol }
func (c *Chain) UnderlyingPrice() float64 { return c.underlying }
func (c *Chain) AsOf() time.Time          { return c.asOf }
func (c *Chain) Len() int                 { return len(c.rows) }

// Rows returns a copy of the admitted rows.
func (c *Chain) Rows() []models.ChainRow {
	return append([]models.ChainRow(nil), c.rows...)
}

// Filter returns the rows of the given kind matching every predicate, in
// snapshot order.
func (c *Chain) Filter(ctx context.Context, preds []Predicate, kind models.OptionKind) ([]models.ChainRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, p := range preds {
		if err := p.Validate(); err != nil {
			return nil, apperrors.NewValidationError("predicate", p.String(), err.Error())
		}
	}

	out := make([]models.ChainRow, 0)
rows:
	for _, row := range c.rows {
		if row.Kind != kind {
			continue
		}
		for _, p := range preds {
			if !p.Matches(row) {
				continue rows
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// ClosestExpirationBucket returns the admitted bucket nearest days.
func (c *Chain) ClosestExpirationBucket(ctx context.Context, days int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	buckets := make([]float64, len(c.rows))
	for i, row := range c.rows {
		buckets[i] = float64(row.ExpirationBucket)
	}
	v, err := Closest(buckets, float64(days))
	if err != nil {
		return 0, apperrors.NewDataError("expiration_bucket", c.symbol, "chain is empty", err)
	}
	return int(v), nil
}

// ClosestStrike returns the admitted strike nearest price.
func (c *Chain) ClosestStrike(ctx context.Context, price float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	strikes := make([]float64, len(c.rows))
	for i, row := range c.rows {
		strikes[i] = row.Strike
	}
	v, err := Closest(strikes, price)
	if err != nil {
		return 0, apperrors.NewDataError("strike", c.symbol, "chain is empty", err)
	}
	return v, nil
}

// Closest returns the value nearest target. Equidistant values resolve to the
// lower one. ErrDataNotFound when values is empty.
func Closest(values []float64, target float64) (float64, error) {
	if len(values) == 0 {
		return 0, apperrors.ErrDataNotFound
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	best := sorted[0]
	for _, v := range sorted[1:] {
		if math.Abs(v-target) < math.Abs(best-target) {
			best = v
		}
	}
	return best, nil
}
