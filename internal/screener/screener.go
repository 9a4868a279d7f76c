// Package screener enumerates canonical multi-leg strategies from an options
// chain and ranks them by risk:reward at a target price.
package screener

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"options-calculator/internal/chain"
	apperrors "options-calculator/internal/errors"
	"options-calculator/internal/logging"
	"options-calculator/internal/models"
	"options-calculator/internal/options"
)

// ChainSource is the queryable chain the screener draws legs from.
type ChainSource interface {
	Symbol() string
	UnderlyingPrice() float64
	AsOf() time.Time
	Filter(ctx context.Context, preds []chain.Predicate, kind models.OptionKind) ([]models.ChainRow, error)
	ClosestExpirationBucket(ctx context.Context, days int) (int, error)
	ClosestStrike(ctx context.Context, price float64) (float64, error)
}

// Screener builds every valid instance of each shape for one target.
type Screener struct {
	source       ChainSource
	targetPrice  float64
	timeframe    int
	targetStrike float64
	runID        string
	logger       zerolog.Logger
}

// New normalizes targetDays to the closest expiration bucket in the chain and
// targetPrice to the closest strike.
func New(ctx context.Context, source ChainSource, targetPrice float64, targetDays int, logger zerolog.Logger) (*Screener, error) {
	if math.IsNaN(targetPrice) || math.IsInf(targetPrice, 0) || targetPrice <= 0 {
		return nil, apperrors.NewValidationError("target_price", targetPrice, "must be a positive number")
	}

	timeframe, err := source.ClosestExpirationBucket(ctx, targetDays)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve timeframe: %w", err)
	}
	strike, err := source.ClosestStrike(ctx, targetPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target strike: %w", err)
	}

	runID := uuid.New().String()
	return &Screener{
		source:       source,
		targetPrice:  targetPrice,
		timeframe:    timeframe,
		targetStrike: strike,
		runID:        runID,
		logger:       logging.WithRunID(logging.WithSymbol(logger, source.Symbol()), runID),
	}, nil
}

func (s *Screener) TargetPrice() float64  { return s.targetPrice }
func (s *Screener) Timeframe() int        { return s.timeframe }
func (s *Screener) TargetStrike() float64 { return s.targetStrike }
func (s *Screener) RunID() string         { return s.runID }

// Build enumerates one shape. An empty candidate list yields no strategies
// and no error.
func (s *Screener) Build(ctx context.Context, shape Shape) ([]*options.Strategy, error) {
	build, ok := builders[shape]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownShape, shape)
	}
	return build(ctx, s)
}

// ShapeResult is the outcome of enumerating one shape.
type ShapeResult struct {
	Shape      Shape
	Strategies []*options.Strategy
	Err        error
}

// ScreenAll enumerates every shape. A shape that fails is logged and recorded
// in its result; the others still run. Only context cancellation aborts.
func (s *Screener) ScreenAll(ctx context.Context) ([]ShapeResult, error) {
	start := time.Now()
	results := make([]ShapeResult, 0, len(AllShapes))
	total := 0

	for _, shape := range AllShapes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		shapeStart := time.Now()
		strategies, err := s.Build(ctx, shape)
		logging.LogShapeBuilt(logging.WithShape(s.logger, string(shape)), len(strategies), time.Since(shapeStart), err)

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			results = append(results, ShapeResult{Shape: shape, Err: err})
			continue
		}
		total += len(strategies)
		results = append(results, ShapeResult{Shape: shape, Strategies: strategies})
	}

	logging.LogScreenRun(s.logger, s.targetPrice, s.timeframe, len(results), total, time.Since(start))
	return results, nil
}

// RankTopByShape screens every shape and keeps the best strategy of each.
func (s *Screener) RankTopByShape(ctx context.Context) (Ranking, error) {
	results, err := s.ScreenAll(ctx)
	if err != nil {
		return Ranking{}, err
	}
	return TopByShape(results, s.targetPrice), nil
}

// candidates pulls the rows of kind matching preds and turns them into legs.
func (s *Screener) candidates(ctx context.Context, kind models.OptionKind, long bool, preds ...chain.Predicate) ([]options.Contract, error) {
	rows, err := s.source.Filter(ctx, preds, kind)
	if err != nil {
		return nil, err
	}

	legs := make([]options.Contract, 0, len(rows))
	for _, row := range rows {
		leg, err := options.NewContract(options.SpecFromRow(s.source.Symbol(), s.source.UnderlyingPrice(), s.source.AsOf(), row, long))
		if err != nil {
			return nil, fmt.Errorf("%s %.2f: %w", kind, row.Strike, err)
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

func (s *Screener) newStrategy(shape Shape, legs ...options.Contract) (*options.Strategy, error) {
	return options.NewStrategy(string(shape), shape.Bias(), s.source.Symbol(), s.source.UnderlyingPrice(), legs)
}
