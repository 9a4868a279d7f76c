package screener

import (
	"fmt"
	"strings"

	apperrors "options-calculator/internal/errors"
)

// Shape names a canonical multi-leg strategy.
type Shape string

const (
	BearPutSpread  Shape = "Bear Put Spread"
	BearCallSpread Shape = "Bear Call Spread"
	BullPutSpread  Shape = "Bull Put Spread"
	BullCallSpread Shape = "Bull Call Spread"
	LongStraddle   Shape = "Long Straddle"
	LongStrangle   Shape = "Long Strangle"
	IronCondor     Shape = "Iron Condor"
	IronButterfly  Shape = "Iron Butterfly"
)

// AllShapes lists every shape in enumeration order.
var AllShapes = []Shape{
	BearPutSpread,
	BearCallSpread,
	BullPutSpread,
	BullCallSpread,
	LongStraddle,
	LongStrangle,
	IronCondor,
	IronButterfly,
}

// Bias returns the market view the shape expresses.
func (s Shape) Bias() string {
	switch s {
	case BearPutSpread, BearCallSpread:
		return "bearish"
	case BullPutSpread, BullCallSpread:
		return "bullish"
	case LongStraddle, LongStrangle:
		return "volatile"
	case IronCondor, IronButterfly:
		return "neutral"
	}
	return ""
}

// Slug returns the lower-case, hyphenated form used on the command line.
func (s Shape) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), " ", "-")
}

// ParseShape accepts a display name or slug in any case.
func ParseShape(name string) (Shape, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	for _, s := range AllShapes {
		if s.Slug() == norm {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownShape, name)
}
