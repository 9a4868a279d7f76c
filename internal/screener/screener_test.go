package screener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-calculator/internal/chain"
	apperrors "options-calculator/internal/errors"
	"options-calculator/internal/models"
	"options-calculator/internal/options"
)

var (
	asOf  = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	nov20 = time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)
	dec18 = time.Date(2026, 12, 18, 0, 0, 0, 0, time.UTC)
)

func row(kind models.OptionKind, strike, ask float64, exp time.Time) models.ChainRow {
	return models.ChainRow{Kind: kind, Strike: strike, Bid: ask - 0.1, Ask: ask, Volume: 100, Expiration: exp}
}

func fixtureChain(t *testing.T) *chain.Chain {
	t.Helper()
	c, err := chain.New("SPY", 100, asOf, []models.ChainRow{
		row(models.OptionKindCall, 90, 11, nov20),
		row(models.OptionKindCall, 100, 4, nov20),
		row(models.OptionKindCall, 105, 2, nov20),
		row(models.OptionKindCall, 110, 1, nov20),
		row(models.OptionKindPut, 90, 1, nov20),
		row(models.OptionKindPut, 95, 2, nov20),
		row(models.OptionKindPut, 100, 3.5, nov20),
		row(models.OptionKindPut, 110, 11, nov20),
		row(models.OptionKindCall, 100, 6, dec18),
	}, chain.NoLiquidityFilter())
	require.NoError(t, err)
	return c
}

func newScreener(t *testing.T, source ChainSource) *Screener {
	t.Helper()
	s, err := New(context.Background(), source, 104, 30, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestNew_NormalizesTargets(t *testing.T) {
	s := newScreener(t, fixtureChain(t))

	assert.Equal(t, 34, s.Timeframe())
	assert.Equal(t, 105.0, s.TargetStrike())
	assert.Equal(t, 104.0, s.TargetPrice())
	assert.NotEmpty(t, s.RunID())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), fixtureChain(t), 0, 30, zerolog.Nop())
	assert.True(t, apperrors.IsValidation(err))

	empty, err := chain.New("SPY", 100, asOf, nil, chain.DefaultLiquidity())
	require.NoError(t, err)
	_, err = New(context.Background(), empty, 100, 30, zerolog.Nop())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBuild_Counts(t *testing.T) {
	s := newScreener(t, fixtureChain(t))
	ctx := context.Background()

	tests := []struct {
		shape Shape
		want  int
	}{
		{BearPutSpread, 6},
		{BearCallSpread, 6},
		{BullPutSpread, 6},
		{BullCallSpread, 1},
		{LongStraddle, 1},
		{LongStrangle, 0},
		{IronCondor, 4},
		{IronButterfly, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.shape), func(t *testing.T) {
			got, err := s.Build(ctx, tt.shape)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			for _, strategy := range got {
				assert.Equal(t, string(tt.shape), strategy.Name())
				assert.Equal(t, tt.shape.Bias(), strategy.Bias())
				assert.Equal(t, 34, strategy.DaysToExpiry())
			}
		})
	}
}

func TestBuild_LegOrder(t *testing.T) {
	s := newScreener(t, fixtureChain(t))
	ctx := context.Background()

	bullCalls, err := s.Build(ctx, BullCallSpread)
	require.NoError(t, err)
	require.Len(t, bullCalls, 1)
	legs := bullCalls[0].Legs()
	assert.True(t, legs[0].IsLong())
	assert.Equal(t, 105.0, legs[0].Strike())
	assert.False(t, legs[1].IsLong())
	assert.Equal(t, 110.0, legs[1].Strike())
	assert.Equal(t, 4.0, bullCalls[0].MaxProfit())
	assert.Equal(t, -1.0, bullCalls[0].RiskReward(104))

	condors, err := s.Build(ctx, IronCondor)
	require.NoError(t, err)
	for _, c := range condors {
		legs := c.Legs()
		require.Len(t, legs, 4)
		assert.Equal(t, models.OptionKindCall, legs[0].Kind())
		assert.True(t, legs[0].IsLong())
		assert.Equal(t, models.OptionKindPut, legs[1].Kind())
		assert.True(t, legs[1].IsLong())
		assert.Equal(t, 100.0, legs[2].Strike())
		assert.False(t, legs[2].IsLong())
		assert.Equal(t, 100.0, legs[3].Strike())
		assert.False(t, legs[3].IsLong())
	}
}

func TestBuild_UnknownShape(t *testing.T) {
	s := newScreener(t, fixtureChain(t))
	_, err := s.Build(context.Background(), "Jade Lizard")
	assert.True(t, errors.Is(err, apperrors.ErrUnknownShape))
}

// faultySource fails every query carrying a strike predicate.
type faultySource struct {
	*chain.Chain
}

func (f faultySource) Filter(ctx context.Context, preds []chain.Predicate, kind models.OptionKind) ([]models.ChainRow, error) {
	for _, p := range preds {
		if p.Field == chain.FieldStrike {
			return nil, errors.New("strike index unavailable")
		}
	}
	return f.Chain.Filter(ctx, preds, kind)
}

func TestScreenAll_IsolatesShapeFailures(t *testing.T) {
	s := newScreener(t, faultySource{fixtureChain(t)})

	results, err := s.ScreenAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, len(AllShapes))

	for i, res := range results {
		assert.Equal(t, AllShapes[i], res.Shape)
		switch res.Shape {
		case IronCondor, IronButterfly:
			assert.Error(t, res.Err)
			assert.Empty(t, res.Strategies)
		default:
			assert.NoError(t, res.Err)
		}
	}
	assert.Len(t, results[0].Strategies, 6)
}

// badRowSource hands back rows a contract cannot be built from.
type badRowSource struct {
	*chain.Chain
}

func (b badRowSource) Filter(ctx context.Context, preds []chain.Predicate, kind models.OptionKind) ([]models.ChainRow, error) {
	rows, err := b.Chain.Filter(ctx, preds, kind)
	if err != nil || kind != models.OptionKindPut {
		return rows, err
	}
	for i := range rows {
		rows[i].Ask = -1
	}
	return rows, nil
}

func TestScreenAll_InvalidLegsSkipShape(t *testing.T) {
	s := newScreener(t, badRowSource{fixtureChain(t)})

	results, err := s.ScreenAll(context.Background())
	require.NoError(t, err)

	byShape := map[Shape]ShapeResult{}
	for _, res := range results {
		byShape[res.Shape] = res
	}
	assert.True(t, apperrors.IsValidation(byShape[BearPutSpread].Err))
	assert.NoError(t, byShape[BearCallSpread].Err)
	assert.Len(t, byShape[BearCallSpread].Strategies, 6)
}

func TestScreenAll_Cancelled(t *testing.T) {
	s := newScreener(t, fixtureChain(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ScreenAll(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRankTopByShape(t *testing.T) {
	s := newScreener(t, fixtureChain(t))

	ranking, err := s.RankTopByShape(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 104.0, ranking.TargetPrice)
	assert.NotContains(t, ranking.Top, LongStrangle)
	assert.NotContains(t, ranking.Top, IronButterfly)
	assert.Len(t, ranking.Top, 6)

	ordered := ranking.Ordered()
	require.Len(t, ordered, 6)
	for i := 1; i < len(ordered); i++ {
		assert.GreaterOrEqual(t, ordered[i-1].RiskReward, ordered[i].RiskReward)
	}

	results, err := s.ScreenAll(context.Background())
	require.NoError(t, err)
	for _, res := range results {
		pick, ok := ranking.Top[res.Shape]
		if !ok {
			continue
		}
		for _, strategy := range res.Strategies {
			assert.LessOrEqual(t, strategy.RiskReward(104), pick.RiskReward)
		}
	}
}

func legs(t *testing.T, specs ...options.ContractSpec) []options.Contract {
	t.Helper()
	out := make([]options.Contract, len(specs))
	for i, spec := range specs {
		spec.Symbol, spec.UnderlyingPrice, spec.Expiration, spec.AsOf = "SPY", 100, nov20, asOf
		c, err := options.NewContract(spec)
		require.NoError(t, err)
		out[i] = c
	}
	return out
}

func TestTopByShape_FirstSeenWinsTies(t *testing.T) {
	spec := []options.ContractSpec{
		{Strike: 100, Ask: 4, Kind: models.OptionKindCall, Long: true},
		{Strike: 110, Ask: 1.5, Kind: models.OptionKindCall, Long: false},
	}
	first, err := options.NewStrategy(string(BullCallSpread), "bullish", "SPY", 100, legs(t, spec...))
	require.NoError(t, err)
	second, err := options.NewStrategy(string(BullCallSpread), "bullish", "SPY", 100, legs(t, spec...))
	require.NoError(t, err)

	ranking := TopByShape([]ShapeResult{{Shape: BullCallSpread, Strategies: []*options.Strategy{first, second}}}, 110)
	assert.Same(t, first, ranking.Top[BullCallSpread].Strategy)
	assert.Equal(t, 3.0, ranking.Top[BullCallSpread].RiskReward)
}

func TestRanking_OrderedKeepsShapeOrderOnTies(t *testing.T) {
	r := Ranking{Top: map[Shape]Pick{
		IronCondor:    {Shape: IronCondor, RiskReward: 1},
		BearPutSpread: {Shape: BearPutSpread, RiskReward: 1},
		LongStraddle:  {Shape: LongStraddle, RiskReward: 2},
	}}
	got := r.Ordered()
	require.Len(t, got, 3)
	assert.Equal(t, LongStraddle, got[0].Shape)
	assert.Equal(t, BearPutSpread, got[1].Shape)
	assert.Equal(t, IronCondor, got[2].Shape)
}

func TestSummarize(t *testing.T) {
	s := newScreener(t, fixtureChain(t))
	results, err := s.ScreenAll(context.Background())
	require.NoError(t, err)

	summary := Summarize(results, s.TargetPrice())
	require.Len(t, summary, len(AllShapes))

	for _, st := range summary {
		switch st.Shape {
		case LongStrangle, IronButterfly:
			assert.Zero(t, st.Count)
			assert.Zero(t, st.Mean)
		case BullCallSpread, LongStraddle:
			assert.Equal(t, 1, st.Count)
			assert.Equal(t, st.Best, st.Worst)
			assert.Equal(t, st.Best, st.Median)
		default:
			assert.Positive(t, st.Count)
			assert.GreaterOrEqual(t, st.Best, st.Median)
			assert.LessOrEqual(t, st.Worst, st.Median)
		}
	}
}

func TestParseShape(t *testing.T) {
	for _, in := range []string{"iron-condor", "Iron Condor", "IRON_CONDOR", " iron condor "} {
		got, err := ParseShape(in)
		require.NoError(t, err, in)
		assert.Equal(t, IronCondor, got)
	}
	_, err := ParseShape("butterfly")
	assert.True(t, errors.Is(err, apperrors.ErrUnknownShape))
	assert.Equal(t, "bull-call-spread", BullCallSpread.Slug())
}
