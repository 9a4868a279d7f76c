package screener

import (
	"sort"

	"github.com/montanaflynn/stats"

	"options-calculator/internal/options"
)

// Pick is the best strategy of one shape.
type Pick struct {
	Shape      Shape
	Strategy   *options.Strategy
	RiskReward float64
}

// Ranking holds the best strategy per shape at a target price.
type Ranking struct {
	TargetPrice float64
	Top         map[Shape]Pick
}

// TopByShape keeps, for every shape with at least one strategy, the one with
// the highest risk:reward at targetPrice. On ties the first enumerated wins.
func TopByShape(results []ShapeResult, targetPrice float64) Ranking {
	r := Ranking{TargetPrice: targetPrice, Top: make(map[Shape]Pick)}
	for _, res := range results {
		for _, strategy := range res.Strategies {
			rr := strategy.RiskReward(targetPrice)
			if best, ok := r.Top[res.Shape]; ok && rr <= best.RiskReward {
				continue
			}
			r.Top[res.Shape] = Pick{Shape: res.Shape, Strategy: strategy, RiskReward: rr}
		}
	}
	return r
}

// Ordered returns the picks by risk:reward, highest first. Equal ratios keep
// the shape enumeration order.
func (r Ranking) Ordered() []Pick {
	picks := make([]Pick, 0, len(r.Top))
	for _, shape := range AllShapes {
		if p, ok := r.Top[shape]; ok {
			picks = append(picks, p)
		}
	}
	sort.SliceStable(picks, func(i, j int) bool {
		return picks[i].RiskReward > picks[j].RiskReward
	})
	return picks
}

// ShapeStats summarizes the risk:reward distribution of one shape.
type ShapeStats struct {
	Shape  Shape   `json:"shape"`
	Count  int     `json:"count"`
	Failed bool    `json:"failed"`
	Mean   float64 `json:"mean_risk_reward"`
	Median float64 `json:"median_risk_reward"`
	Best   float64 `json:"best_risk_reward"`
	Worst  float64 `json:"worst_risk_reward"`
}

// Summarize computes per-shape risk:reward statistics at targetPrice.
func Summarize(results []ShapeResult, targetPrice float64) []ShapeStats {
	out := make([]ShapeStats, 0, len(results))
	for _, res := range results {
		st := ShapeStats{Shape: res.Shape, Count: len(res.Strategies), Failed: res.Err != nil}
		if len(res.Strategies) == 0 {
			out = append(out, st)
			continue
		}

		ratios := make(stats.Float64Data, len(res.Strategies))
		for i, strategy := range res.Strategies {
			ratios[i] = strategy.RiskReward(targetPrice)
		}
		st.Mean, _ = stats.Mean(ratios)
		st.Median, _ = stats.Median(ratios)
		st.Best, _ = stats.Max(ratios)
		st.Worst, _ = stats.Min(ratios)
		st.Mean = options.Round2(st.Mean)
		st.Median = options.Round2(st.Median)
		out = append(out, st)
	}
	return out
}
