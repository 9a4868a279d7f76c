package screener

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"options-calculator/internal/chain"
	"options-calculator/internal/models"
	"options-calculator/internal/options"
)

type quoteInput struct {
	Call     bool
	Strike   int
	AskCents int
}

// quoteGen draws strikes from a narrow grid so equal strikes are common.
func quoteGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(quoteInput{}), map[string]gopter.Gen{
		"Call":     gen.Bool(),
		"Strike":   gen.IntRange(18, 22),
		"AskCents": gen.IntRange(5, 1500),
	})
}

func chainFrom(quotes []quoteInput) (*chain.Chain, error) {
	rows := make([]models.ChainRow, len(quotes))
	for i, q := range quotes {
		kind := models.OptionKindPut
		if q.Call {
			kind = models.OptionKindCall
		}
		ask := float64(q.AskCents) / 100
		rows[i] = models.ChainRow{
			Kind:       kind,
			Strike:     float64(q.Strike * 5),
			Bid:        ask,
			Ask:        ask,
			Volume:     100,
			Expiration: nov20,
		}
	}
	return chain.New("SPY", 100, asOf, rows, chain.NoLiquidityFilter())
}

// orderingHolds checks the strike and side layout each shape promises.
func orderingHolds(shape Shape, s *options.Strategy) bool {
	l := s.Legs()
	switch shape {
	case BearPutSpread:
		return len(l) == 2 && !l[0].IsLong() && l[1].IsLong() && l[0].Strike() < l[1].Strike()
	case BearCallSpread:
		return len(l) == 2 && l[0].IsLong() && !l[1].IsLong() && l[0].Strike() > l[1].Strike()
	case BullPutSpread:
		return len(l) == 2 && !l[0].IsLong() && l[1].IsLong() && l[0].Strike() > l[1].Strike()
	case BullCallSpread:
		return len(l) == 2 && l[0].IsLong() && !l[1].IsLong() && l[1].Strike() > l[0].Strike() &&
			l[0].Moneyness() == models.OutOfTheMoney && l[1].Moneyness() == models.OutOfTheMoney
	case LongStraddle:
		return len(l) == 2 && l[0].Kind() == models.OptionKindCall && l[1].Kind() == models.OptionKindPut &&
			l[0].Strike() == l[1].Strike()
	case LongStrangle:
		return len(l) == 2 && l[0].Kind() == models.OptionKindCall && l[1].Kind() == models.OptionKindPut &&
			l[0].Strike() != l[1].Strike()
	case IronCondor, IronButterfly:
		return len(l) == 4 &&
			l[0].IsLong() && l[1].IsLong() && !l[2].IsLong() && !l[3].IsLong() &&
			l[2].Strike() == l[3].Strike() &&
			l[0].Strike() > l[2].Strike() && l[1].Strike() < l[3].Strike() &&
			l[0].Strike() != l[1].Strike()
	}
	return false
}

// TestProperty_ShapesRespectStrikeOrdering tests that no emitted strategy
// breaks its shape's leg layout, equal strikes included.
func TestProperty_ShapesRespectStrikeOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("every strategy satisfies its shape's ordering", prop.ForAll(
		func(quotes []quoteInput, target int) bool {
			c, err := chainFrom(quotes)
			if err != nil {
				return false
			}
			s, err := New(context.Background(), c, float64(target), 30, zerolog.Nop())
			if err != nil {
				return false
			}
			results, err := s.ScreenAll(context.Background())
			if err != nil {
				return false
			}
			for _, res := range results {
				if res.Err != nil {
					return false
				}
				for _, strategy := range res.Strategies {
					if !orderingHolds(res.Shape, strategy) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(10, quoteGen()),
		gen.IntRange(85, 115),
	))

	properties.TestingRun(t)
}

// TestProperty_RankingPicksMaximum tests that each pick has the highest
// risk:reward of its shape and that the ordering is non-increasing.
func TestProperty_RankingPicksMaximum(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("picks dominate their shape", prop.ForAll(
		func(quotes []quoteInput, target int) bool {
			c, err := chainFrom(quotes)
			if err != nil {
				return false
			}
			s, err := New(context.Background(), c, float64(target), 30, zerolog.Nop())
			if err != nil {
				return false
			}
			results, err := s.ScreenAll(context.Background())
			if err != nil {
				return false
			}
			ranking := TopByShape(results, s.TargetPrice())
			for _, res := range results {
				pick, ok := ranking.Top[res.Shape]
				if ok != (len(res.Strategies) > 0) {
					return false
				}
				for _, strategy := range res.Strategies {
					if strategy.RiskReward(s.TargetPrice()) > pick.RiskReward {
						return false
					}
				}
			}
			ordered := ranking.Ordered()
			for i := 1; i < len(ordered); i++ {
				if ordered[i].RiskReward > ordered[i-1].RiskReward {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(10, quoteGen()),
		gen.IntRange(85, 115),
	))

	properties.TestingRun(t)
}
