package chain

import (
	"fmt"
	"strconv"
	"strings"

	"options-calculator/internal/models"
)

// Field names a chain row attribute a Predicate can test.
type Field string

const (
	FieldStrike            Field = "strike"
	FieldExpirationBucket  Field = "expiration_bucket"
	FieldMoneyness         Field = "moneyness"
	FieldVolume            Field = "volume"
	FieldBid               Field = "bid"
	FieldAsk               Field = "ask"
	FieldImpliedVolatility Field = "implied_volatility"
)

// Op is a comparison operator.
type Op int

const (
	Eq Op = iota
	Ne
	Gt
	Ge
	Lt
	Le
)

var opSymbols = map[Op]string{Eq: "=", Ne: "!=", Gt: ">", Ge: ">=", Lt: "<", Le: "<="}

// parseOrder lists operators with two-character spellings first.
var parseOrder = []Op{Ge, Le, Ne, Eq, Gt, Lt}

// String returns the SQL spelling of the operator.
func (o Op) String() string {
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Predicate is one typed filter over a chain row. Numeric fields compare
// against Number; FieldMoneyness compares against Class and supports only Eq
// and Ne.
type Predicate struct {
	Field  Field
	Op     Op
	Number float64
	Class  models.Moneyness
}

// StrikeIs matches rows whose strike equals strike.
func StrikeIs(strike float64) Predicate {
	return Predicate{Field: FieldStrike, Op: Eq, Number: strike}
}

// ExpiresIn matches rows in the given expiration bucket (days to expiry).
func ExpiresIn(days int) Predicate {
	return Predicate{Field: FieldExpirationBucket, Op: Eq, Number: float64(days)}
}

// MoneynessIs matches rows with the given moneyness classification.
func MoneynessIs(m models.Moneyness) Predicate {
	return Predicate{Field: FieldMoneyness, Op: Eq, Class: m}
}

// Where builds a numeric comparison.
func Where(field Field, op Op, value float64) Predicate {
	return Predicate{Field: field, Op: op, Number: value}
}

// Validate reports predicates that can never be evaluated.
func (p Predicate) Validate() error {
	if _, ok := opSymbols[p.Op]; !ok {
		return fmt.Errorf("unknown operator %d", int(p.Op))
	}
	switch p.Field {
	case FieldMoneyness:
		if p.Op != Eq && p.Op != Ne {
			return fmt.Errorf("moneyness supports only = and !=, got %s", p.Op)
		}
	case FieldStrike, FieldExpirationBucket, FieldVolume, FieldBid, FieldAsk, FieldImpliedVolatility:
	default:
		return fmt.Errorf("unknown field %q", p.Field)
	}
	return nil
}

// Matches evaluates the predicate against row. Invalid predicates match
// nothing.
func (p Predicate) Matches(row models.ChainRow) bool {
	if p.Field == FieldMoneyness {
		switch p.Op {
		case Eq:
			return row.Moneyness == p.Class
		case Ne:
			return row.Moneyness != p.Class
		}
		return false
	}

	v, ok := numericField(row, p.Field)
	if !ok {
		return false
	}
	switch p.Op {
	case Eq:
		return v == p.Number
	case Ne:
		return v != p.Number
	case Gt:
		return v > p.Number
	case Ge:
		return v >= p.Number
	case Lt:
		return v < p.Number
	case Le:
		return v <= p.Number
	}
	return false
}

func numericField(row models.ChainRow, f Field) (float64, bool) {
	switch f {
	case FieldStrike:
		return row.Strike, true
	case FieldExpirationBucket:
		return float64(row.ExpirationBucket), true
	case FieldVolume:
		return float64(row.Volume), true
	case FieldBid:
		return row.Bid, true
	case FieldAsk:
		return row.Ask, true
	case FieldImpliedVolatility:
		return row.ImpliedVolatility, true
	}
	return 0, false
}

func (p Predicate) String() string {
	if p.Field == FieldMoneyness {
		return fmt.Sprintf("%s %s %s", p.Field, p.Op, p.Class)
	}
	return fmt.Sprintf("%s %s %g", p.Field, p.Op, p.Number)
}

// ParsePredicate parses the String form of a predicate, e.g. "strike >= 100"
// or "moneyness = OTM".
func ParsePredicate(s string) (Predicate, error) {
	for _, op := range parseOrder {
		i := strings.Index(s, opSymbols[op])
		if i < 0 {
			continue
		}
		field := Field(strings.ToLower(strings.TrimSpace(s[:i])))
		value := strings.TrimSpace(s[i+len(opSymbols[op]):])

		p := Predicate{Field: field, Op: op}
		if field == FieldMoneyness {
			m, ok := models.ParseMoneyness(value)
			if !ok {
				return Predicate{}, fmt.Errorf("invalid predicate %q: unknown moneyness %q", s, value)
			}
			p.Class = m
		} else {
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Predicate{}, fmt.Errorf("invalid predicate %q: %w", s, err)
			}
			p.Number = n
		}
		if err := p.Validate(); err != nil {
			return Predicate{}, fmt.Errorf("invalid predicate %q: %w", s, err)
		}
		return p, nil
	}
	return Predicate{}, fmt.Errorf("invalid predicate %q: no operator", s)
}
