package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "options-calculator/internal/errors"
	"options-calculator/internal/models"
)

var (
	asOf  = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	nov20 = time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)
	dec18 = time.Date(2026, 12, 18, 0, 0, 0, 0, time.UTC)
)

func strikesOf(rows []models.ChainRow) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Strike
	}
	return out
}

func fixtureRows() []models.ChainRow {
	return []models.ChainRow{
		{Kind: models.OptionKindCall, Strike: 95, Bid: 6, Ask: 6.2, Volume: 50, Expiration: nov20},
		{Kind: models.OptionKindCall, Strike: 100, Bid: 3, Ask: 3.2, Volume: 100, Expiration: nov20},
		{Kind: models.OptionKindCall, Strike: 110, Bid: 1.1, Ask: 1.3, Volume: 40, Expiration: nov20},
		{Kind: models.OptionKindCall, Strike: 100, Bid: 0.5, Ask: 0.6, Volume: 5, Expiration: nov20},
		{Kind: models.OptionKindPut, Strike: 100, Bid: 2.5, Ask: 2.7, Volume: 80, Expiration: nov20},
		{Kind: models.OptionKindPut, Strike: 90, Bid: 1.2, Ask: 1.4, Volume: 30, Expiration: nov20},
		{Kind: models.OptionKindCall, Strike: 100, Bid: 4, Ask: 4.2, Volume: 20, Expiration: dec18},
	}
}

func fixtureChain(t *testing.T) *Chain {
	t.Helper()
	c, err := New("SPY", 100, asOf, fixtureRows(), DefaultLiquidity())
	require.NoError(t, err)
	return c
}

func TestNew_AdmitsLiquidRows(t *testing.T) {
	c := fixtureChain(t)

	assert.Equal(t, 6, c.Len())
	assert.Equal(t, "SPY", c.Symbol())
	assert.Equal(t, 100.0, c.UnderlyingPrice())

	rows := c.Rows()
	assert.Equal(t, 34, rows[0].ExpirationBucket)
	assert.Equal(t, models.InTheMoney, rows[0].Moneyness)
	assert.Equal(t, models.AtTheMoney, rows[1].Moneyness)
	assert.Equal(t, models.OutOfTheMoney, rows[2].Moneyness)
	assert.Equal(t, 62, rows[5].ExpirationBucket)
}

func TestNew_NoLiquidityFilterKeepsEverything(t *testing.T) {
	c, err := New("SPY", 100, asOf, fixtureRows(), NoLiquidityFilter())
	require.NoError(t, err)
	assert.Equal(t, 7, c.Len())
}

func TestNew_RejectsMalformedRows(t *testing.T) {
	rows := fixtureRows()
	rows[2].Kind = "STRADDLE"
	_, err := New("SPY", 100, asOf, rows, DefaultLiquidity())
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = New("SPY", 0, asOf, fixtureRows(), DefaultLiquidity())
	assert.True(t, apperrors.IsValidation(err))
}

func TestChain_Filter(t *testing.T) {
	c := fixtureChain(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		preds []Predicate
		kind  models.OptionKind
		want  []float64
	}{
		{"bucket only", []Predicate{ExpiresIn(34)}, models.OptionKindCall, []float64{95, 100, 110}},
		{"otm calls", []Predicate{ExpiresIn(34), MoneynessIs(models.OutOfTheMoney)}, models.OptionKindCall, []float64{110}},
		{"strike match", []Predicate{StrikeIs(100)}, models.OptionKindCall, []float64{100, 100}},
		{"puts", []Predicate{ExpiresIn(34)}, models.OptionKindPut, []float64{100, 90}},
		{"numeric comparison", []Predicate{Where(FieldVolume, Ge, 50)}, models.OptionKindCall, []float64{95, 100}},
		{"not atm", []Predicate{{Field: FieldMoneyness, Op: Ne, Class: models.AtTheMoney}}, models.OptionKindCall, []float64{95, 110}},
		{"no match", []Predicate{ExpiresIn(7)}, models.OptionKindPut, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := c.Filter(ctx, tt.preds, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strikesOf(rows))
		})
	}
}

func TestChain_FilterRejectsInvalidPredicate(t *testing.T) {
	c := fixtureChain(t)

	_, err := c.Filter(context.Background(), []Predicate{Where(FieldMoneyness, Gt, 1)}, models.OptionKindCall)
	assert.True(t, apperrors.IsValidation(err))

	_, err = c.Filter(context.Background(), []Predicate{Where("delta", Gt, 1)}, models.OptionKindCall)
	assert.True(t, apperrors.IsValidation(err))
}

func TestChain_FilterHonorsContext(t *testing.T) {
	c := fixtureChain(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Filter(ctx, nil, models.OptionKindCall)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestChain_Closest(t *testing.T) {
	c := fixtureChain(t)
	ctx := context.Background()

	bucketTests := []struct{ days, want int }{
		{40, 34},
		{48, 34},
		{49, 62},
		{365, 62},
		{0, 34},
	}
	for _, tt := range bucketTests {
		got, err := c.ClosestExpirationBucket(ctx, tt.days)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "days=%d", tt.days)
	}

	strikeTests := []struct{ price, want float64 }{
		{104, 100},
		{105, 100},
		{92.5, 90},
		{500, 110},
	}
	for _, tt := range strikeTests {
		got, err := c.ClosestStrike(ctx, tt.price)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "price=%v", tt.price)
	}
}

func TestChain_ClosestOnEmptyChain(t *testing.T) {
	c, err := New("SPY", 100, asOf, nil, DefaultLiquidity())
	require.NoError(t, err)

	_, err = c.ClosestStrike(context.Background(), 100)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = c.ClosestExpirationBucket(context.Background(), 30)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPredicate_String(t *testing.T) {
	assert.Equal(t, "strike = 100", StrikeIs(100).String())
	assert.Equal(t, "moneyness = OTM", MoneynessIs(models.OutOfTheMoney).String())
	assert.Equal(t, "volume >= 10", Where(FieldVolume, Ge, 10).String())
}

func TestParsePredicate(t *testing.T) {
	tests := []struct {
		in   string
		want Predicate
	}{
		{"strike >= 100", Where(FieldStrike, Ge, 100)},
		{"volume>10", Where(FieldVolume, Gt, 10)},
		{" Bid != 0.5 ", Where(FieldBid, Ne, 0.5)},
		{"expiration_bucket = 34", ExpiresIn(34)},
		{"moneyness = otm", MoneynessIs(models.OutOfTheMoney)},
		{"implied_volatility <= 0.3", Where(FieldImpliedVolatility, Le, 0.3)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePredicate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, p := range []Predicate{StrikeIs(100), MoneynessIs(models.InTheMoney), Where(FieldAsk, Lt, 2.5)} {
		back, err := ParsePredicate(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, back)
	}

	for _, bad := range []string{"strike", "delta > 1", "strike >= abc", "moneyness > ITM", "moneyness = DEEP"} {
		_, err := ParsePredicate(bad)
		assert.Error(t, err, bad)
	}
}
