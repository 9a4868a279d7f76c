package screener

import (
	"context"

	"options-calculator/internal/chain"
	"options-calculator/internal/models"
	"options-calculator/internal/options"
)

type builder func(ctx context.Context, s *Screener) ([]*options.Strategy, error)

var builders = map[Shape]builder{
	BearPutSpread:  buildBearPutSpread,
	BearCallSpread: buildBearCallSpread,
	BullPutSpread:  buildBullPutSpread,
	BullCallSpread: buildBullCallSpread,
	LongStraddle:   buildLongStraddle,
	LongStrangle:   buildLongStrangle,
	IronCondor:     buildIronCondor,
	IronButterfly:  buildIronButterfly,
}

// combine emits a strategy for every (outer, inner) pair that legs accepts.
// legs returns the ordered legs and false to skip the pair.
func (s *Screener) combine(shape Shape, outer, inner []options.Contract, legs func(o, i options.Contract) ([]options.Contract, bool)) ([]*options.Strategy, error) {
	out := make([]*options.Strategy, 0)
	for _, o := range outer {
		for _, i := range inner {
			ordered, ok := legs(o, i)
			if !ok {
				continue
			}
			strategy, err := s.newStrategy(shape, ordered...)
			if err != nil {
				return nil, err
			}
			out = append(out, strategy)
		}
	}
	return out, nil
}

// verticalCandidates returns the long and short legs of kind in the screen's
// timeframe.
func (s *Screener) verticalCandidates(ctx context.Context, kind models.OptionKind, preds ...chain.Predicate) (longs, shorts []options.Contract, err error) {
	preds = append([]chain.Predicate{chain.ExpiresIn(s.timeframe)}, preds...)
	if longs, err = s.candidates(ctx, kind, true, preds...); err != nil {
		return nil, nil, err
	}
	if shorts, err = s.candidates(ctx, kind, false, preds...); err != nil {
		return nil, nil, err
	}
	return longs, shorts, nil
}

// Long put, short put at a lower strike.
func buildBearPutSpread(ctx context.Context, s *Screener) ([]*options.Strategy, error) {
	longs, shorts, err := s.verticalCandidates(ctx, models.OptionKindPut)
	if err != nil {
		return nil, err
	}
	return s.combine(BearPutSpread, longs, shorts, func(long, short options.Contract) ([]options.Contract, bool) {
		return []options.Contract{short, long}, short.Strike() < long.Strike()
	})
}

// Short call, long call at a higher strike.
func buildBearCallSpread(ctx context.Context, s *Screener) ([]*options.Strategy, error) {
	longs, shorts, err := s.verticalCandidates(ctx, models.OptionKindCall)
	if err != nil {
		return nil, err
	}
	return s.combine(BearCallSpread, longs, shorts, func(long, short options.Contract) ([]options.Contract, bool) {
		return []options.Contract{long, short}, long.Strike() > short.Strike()
	})
}

// Long put, short put at a higher strike.
func buildBullPutSpread(ctx context.Context, s *Screener) ([]*options.Strategy, error) {
	longs, shorts, err := s.verticalCandidates(ctx, models.OptionKindPut)
	if err != nil {
		return nil, err
	}
	return s.combine(BullPutSpread, longs, shorts, func(long, short options.Contract) ([]options.Contract, bool) {
		return []options.Contract{short, long}, short.Strike() > long.Strike()
	})
}

// Long OTM call, short OTM call at a higher strike.
func buildBullCallSpread(ctx context.Context, s *Screener) ([]*options.Strategy, error) {
	longs, shorts, err := s.verticalCandidates(ctx, models.OptionKindCall, chain.MoneynessIs(models.OutOfTheMoney))
	if err != nil {
		return nil, err
	}
	return s.combine(BullCallSpread, longs, shorts, func(long, short options.Contract) ([]options.Contract, bool) {
		return []options.Contract{long, short}, short.Strike() > long.Strike()
	})
}

// atmPair returns the long ATM calls and puts in the screen's timeframe.
func (s *Screener) atmPair(ctx context.Context) (calls, puts []options.Contract, err error) {
	preds := []chain.Predicate{chain.ExpiresIn(s.timeframe), chain.MoneynessIs(models.AtTheMoney)}
	if calls, err = s.candidates(ctx, models.OptionKindCall, true, preds...); err != nil {
		return nil, nil, err
	}
	if puts, err = s.candidates(ctx, models.OptionKindPut, true, preds...); err != nil {
		return nil, nil, err
	}
	return calls, puts, nil
}

// Long ATM call and long ATM put at the same strike.
func buildLongStraddle(ctx context.Context, s *Screener) ([]*options.Strategy, error) {
	calls, puts, err := s.atmPair(ctx)
	if err != nil {
		return nil, err
	}
	return s.combine(LongStraddle, calls, puts, func(call, put options.Contract) ([]options.Contract, bool) {
		return []options.Contract{call, put}, call.Strike() == put.Strike()
	})
}

// Long ATM call and long ATM put at different strikes.
func buildLongStrangle(ctx context.Context, s *Screener) ([]*options.Strategy, error) {
	calls, puts, err := s.atmPair(ctx)
	if err != nil {
		return nil, err
	}
	return s.combine(LongStrangle, calls, puts, func(call, put options.Contract) ([]options.Contract, bool) {
		return []options.Contract{call, put}, call.Strike() != put.Strike()
	})
}

// Short call and put at the strike closest to the underlying, long OTM wings.
func buildIronCondor(ctx context.Context, s *Screener) ([]*options.Strategy, error) {
	body, err := s.source.ClosestStrike(ctx, s.source.UnderlyingPrice())
	if err != nil {
		return nil, err
	}
	return s.ironBody(ctx, IronCondor, body)
}

// Short call and put at the strike closest to the target price, long OTM
// wings.
func buildIronButterfly(ctx context.Context, s *Screener) ([]*options.Strategy, error) {
	return s.ironBody(ctx, IronButterfly, s.targetStrike)
}

// ironBody enumerates four-leg shapes with both shorts at body. Legs are
// ordered long call, long put, short call, short put. The long call must sit
// above the short call and the long put below the short put.
func (s *Screener) ironBody(ctx context.Context, shape Shape, body float64) ([]*options.Strategy, error) {
	shortPreds := []chain.Predicate{chain.ExpiresIn(s.timeframe), chain.StrikeIs(body)}
	wingPreds := []chain.Predicate{chain.ExpiresIn(s.timeframe), chain.MoneynessIs(models.OutOfTheMoney)}

	shortCalls, err := s.candidates(ctx, models.OptionKindCall, false, shortPreds...)
	if err != nil {
		return nil, err
	}
	shortPuts, err := s.candidates(ctx, models.OptionKindPut, false, shortPreds...)
	if err != nil {
		return nil, err
	}
	longCalls, err := s.candidates(ctx, models.OptionKindCall, true, wingPreds...)
	if err != nil {
		return nil, err
	}
	longPuts, err := s.candidates(ctx, models.OptionKindPut, true, wingPreds...)
	if err != nil {
		return nil, err
	}

	out := make([]*options.Strategy, 0)
	for _, lc := range longCalls {
		for _, lp := range longPuts {
			if lc.Strike() == lp.Strike() {
				continue
			}
			for _, sc := range shortCalls {
				if lc.Strike() <= sc.Strike() {
					continue
				}
				for _, sp := range shortPuts {
					if lp.Strike() >= sp.Strike() {
						continue
					}
					strategy, err := s.newStrategy(shape, lc, lp, sc, sp)
					if err != nil {
						return nil, err
					}
					out = append(out, strategy)
				}
			}
		}
	}
	return out, nil
}
