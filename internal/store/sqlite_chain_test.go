package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-calculator/internal/chain"
	apperrors "options-calculator/internal/errors"
	"options-calculator/internal/models"
)

var (
	asOf  = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	nov20 = time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)
	dec18 = time.Date(2026, 12, 18, 0, 0, 0, 0, time.UTC)
)

func fixtureRows() []models.ChainRow {
	return []models.ChainRow{
		{Kind: models.OptionKindCall, Strike: 95, Bid: 6, Ask: 6.2, ImpliedVolatility: 0.2, Volume: 50, Expiration: nov20},
		{Kind: models.OptionKindCall, Strike: 100, Bid: 3, Ask: 3.2, ImpliedVolatility: 0.21, Volume: 100, Expiration: nov20},
		{Kind: models.OptionKindCall, Strike: 110, Bid: 1.1, Ask: 1.3, ImpliedVolatility: 0.24, Volume: 40, Expiration: nov20},
		{Kind: models.OptionKindCall, Strike: 100, Bid: 0.5, Ask: 0.6, Volume: 5, Expiration: nov20},
		{Kind: models.OptionKindPut, Strike: 100, Bid: 2.5, Ask: 2.7, ImpliedVolatility: 0.22, Volume: 80, Expiration: nov20},
		{Kind: models.OptionKindPut, Strike: 90, Bid: 1.2, Ask: 1.4, ImpliedVolatility: 0.3, Volume: 30, Expiration: nov20},
		{Kind: models.OptionKindCall, Strike: 100, Bid: 4, Ask: 4.2, ImpliedVolatility: 0.19, Volume: 20, Expiration: dec18},
	}
}

// rowKey flattens a row into a comparable value, normalizing the expiration.
type rowKey struct {
	Kind       models.OptionKind
	Strike     float64
	Bid        float64
	Ask        float64
	IV         float64
	Volume     int64
	Expiration string
	Bucket     int
	Moneyness  models.Moneyness
}

func keys(rows []models.ChainRow) []rowKey {
	out := make([]rowKey, len(rows))
	for i, r := range rows {
		out[i] = rowKey{
			Kind:       r.Kind,
			Strike:     r.Strike,
			Bid:        r.Bid,
			Ask:        r.Ask,
			IV:         r.ImpliedVolatility,
			Volume:     r.Volume,
			Expiration: r.Expiration.UTC().Format("2006-01-02"),
			Bucket:     r.ExpirationBucket,
			Moneyness:  r.Moneyness,
		}
	}
	return out
}

func newBackends(t *testing.T, rows []models.ChainRow) (*chain.Chain, *SQLiteChain) {
	t.Helper()
	mem, err := chain.New("SPY", 100, asOf, rows, chain.DefaultLiquidity())
	require.NoError(t, err)

	sq, err := NewSQLiteChain(context.Background(), "SPY", 100, asOf, rows, chain.DefaultLiquidity())
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	return mem, sq
}

func TestSQLiteChain_MatchesMemoryChain(t *testing.T) {
	mem, sq := newBackends(t, fixtureRows())
	ctx := context.Background()

	assert.Equal(t, mem.Len(), sq.Len())
	assert.Equal(t, "SPY", sq.Symbol())
	assert.Equal(t, 100.0, sq.UnderlyingPrice())
	assert.True(t, asOf.Equal(sq.AsOf()))

	queries := [][]chain.Predicate{
		nil,
		{chain.ExpiresIn(34)},
		{chain.ExpiresIn(34), chain.MoneynessIs(models.OutOfTheMoney)},
		{chain.StrikeIs(100)},
		{chain.Where(chain.FieldVolume, chain.Gt, 40), chain.Where(chain.FieldAsk, chain.Le, 4.2)},
		{{Field: chain.FieldMoneyness, Op: chain.Ne, Class: models.AtTheMoney}},
		{chain.Where(chain.FieldImpliedVolatility, chain.Lt, 0.22)},
		{chain.ExpiresIn(1)},
	}

	for _, kind := range []models.OptionKind{models.OptionKindCall, models.OptionKindPut} {
		for _, q := range queries {
			want, err := mem.Filter(ctx, q, kind)
			require.NoError(t, err)
			got, err := sq.Filter(ctx, q, kind)
			require.NoError(t, err)
			assert.Equal(t, keys(want), keys(got), "kind=%s preds=%v", kind, q)
		}
	}

	for _, days := range []int{0, 34, 48, 49, 400} {
		want, err := mem.ClosestExpirationBucket(ctx, days)
		require.NoError(t, err)
		got, err := sq.ClosestExpirationBucket(ctx, days)
		require.NoError(t, err)
		assert.Equal(t, want, got, "days=%d", days)
	}

	for _, price := range []float64{0, 92.5, 97.5, 104, 105, 1000} {
		want, err := mem.ClosestStrike(ctx, price)
		require.NoError(t, err)
		got, err := sq.ClosestStrike(ctx, price)
		require.NoError(t, err)
		assert.Equal(t, want, got, "price=%v", price)
	}
}

func TestSQLiteChain_EmptyChain(t *testing.T) {
	sq, err := NewSQLiteChain(context.Background(), "SPY", 100, asOf, nil, chain.DefaultLiquidity())
	require.NoError(t, err)
	defer sq.Close()

	rows, err := sq.Filter(context.Background(), []chain.Predicate{chain.ExpiresIn(30)}, models.OptionKindCall)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = sq.ClosestStrike(context.Background(), 100)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = sq.ClosestExpirationBucket(context.Background(), 30)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSQLiteChain_RejectsInvalidInput(t *testing.T) {
	rows := fixtureRows()
	rows[0].Strike = -5
	_, err := NewSQLiteChain(context.Background(), "SPY", 100, asOf, rows, chain.DefaultLiquidity())
	assert.True(t, apperrors.IsValidation(err))

	_, sq := newBackends(t, fixtureRows())
	_, err = sq.Filter(context.Background(), []chain.Predicate{chain.Where(chain.FieldMoneyness, chain.Ge, 0)}, models.OptionKindCall)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCompileWhere(t *testing.T) {
	where, args, err := compileWhere(models.OptionKindPut, []chain.Predicate{
		chain.ExpiresIn(30),
		chain.MoneynessIs(models.AtTheMoney),
		chain.Where(chain.FieldBid, chain.Gt, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "WHERE kind = ? AND expiration_bucket = ? AND moneyness = ? AND bid > ?", where)
	assert.Equal(t, []interface{}{"PUT", 30.0, "ATM", 1.0}, args)
}
