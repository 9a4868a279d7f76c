package cli

import (
	"options-calculator/internal/options"
	"options-calculator/internal/screener"
)

// ContractView is the JSON rendering of a contract.
type ContractView struct {
	Identifier        string  `json:"identifier"`
	Symbol            string  `json:"symbol"`
	Kind              string  `json:"kind"`
	Direction         string  `json:"direction"`
	Strike            float64 `json:"strike"`
	Bid               float64 `json:"bid"`
	Ask               float64 `json:"ask"`
	ImpliedVolatility float64 `json:"implied_volatility"`
	Volume            int64   `json:"volume"`
	Expiration        string  `json:"expiration"`
	DaysToExpiry      int     `json:"days_to_expiry"`
	Premium           float64 `json:"premium"`
	Moneyness         string  `json:"moneyness"`
	IntrinsicValue    float64 `json:"intrinsic_value"`
	TimeValue         float64 `json:"time_value"`
	CapitalCommitted  float64 `json:"capital_committed"`
	BreakEven         float64 `json:"break_even"`
}

// NewContractView builds the JSON view of c.
func NewContractView(c options.Contract) ContractView {
	return ContractView{
		Identifier:        c.Identifier(),
		Symbol:            c.Symbol(),
		Kind:              string(c.Kind()),
		Direction:         c.Direction().String(),
		Strike:            c.Strike(),
		Bid:               c.Bid(),
		Ask:               c.Ask(),
		ImpliedVolatility: c.ImpliedVolatility(),
		Volume:            c.Volume(),
		Expiration:        FormatDate(c.Expiration()),
		DaysToExpiry:      c.DaysToExpiry(),
		Premium:           c.Premium(),
		Moneyness:         string(c.Moneyness()),
		IntrinsicValue:    c.IntrinsicValue(),
		TimeValue:         c.TimeValue(),
		CapitalCommitted:  c.CapitalCommitted(),
		BreakEven:         c.BreakEven(),
	}
}

// StrategyView is the JSON rendering of a strategy.
type StrategyView struct {
	Name             string         `json:"name"`
	Bias             string         `json:"bias"`
	Symbol           string         `json:"symbol"`
	UnderlyingPrice  float64        `json:"underlying_price"`
	Legs             []ContractView `json:"legs"`
	Strikes          []float64      `json:"strikes"`
	NetPremium       float64        `json:"net_premium"`
	CapitalCommitted float64        `json:"capital_committed"`
	MaxProfit        Amount         `json:"max_profit"`
	MaxProfitPrices  []Amount       `json:"max_profit_prices"`
	MaxLoss          Amount         `json:"max_loss"`
	MaxLossPrices    []Amount       `json:"max_loss_prices"`
	BreakEvens       []float64      `json:"break_evens"`
	Expiration       string         `json:"expiration"`
	DaysToExpiry     int            `json:"days_to_expiry"`
	RiskReward       *float64       `json:"risk_reward,omitempty"`
}

// NewStrategyView builds the JSON view of s. A positive target price adds
// the risk:reward at that price.
func NewStrategyView(s *options.Strategy, targetPrice float64) StrategyView {
	legs := s.Legs()
	v := StrategyView{
		Name:             s.Name(),
		Bias:             s.Bias(),
		Symbol:           s.Symbol(),
		UnderlyingPrice:  s.UnderlyingPrice(),
		Legs:             make([]ContractView, len(legs)),
		Strikes:          s.Strikes(),
		NetPremium:       s.NetPremium(),
		CapitalCommitted: s.CapitalCommitted(),
		MaxProfit:        Amount(s.MaxProfit()),
		MaxProfitPrices:  Amounts(s.MaxProfitPrices()),
		MaxLoss:          Amount(s.MaxLoss()),
		MaxLossPrices:    Amounts(s.MaxLossPrices()),
		BreakEvens:       s.BreakEvens(),
		Expiration:       FormatDate(s.Expiration()),
		DaysToExpiry:     s.DaysToExpiry(),
	}
	for i, leg := range legs {
		v.Legs[i] = NewContractView(leg)
	}
	if targetPrice > 0 {
		rr := s.RiskReward(targetPrice)
		v.RiskReward = &rr
	}
	return v
}

// ScreenView is the JSON rendering of one target's screening run.
type ScreenView struct {
	RunID        string                `json:"run_id"`
	Symbol       string                `json:"symbol"`
	Underlying   float64               `json:"underlying_price"`
	AsOf         string                `json:"as_of"`
	Backend      string                `json:"backend"`
	TargetPrice  float64               `json:"target_price"`
	Timeframe    int                   `json:"timeframe_days"`
	TargetStrike float64               `json:"target_strike"`
	Top          []StrategyView        `json:"top"`
	Strategies   []StrategyView        `json:"strategies,omitempty"`
	Stats        []screener.ShapeStats `json:"stats"`
	Failures     map[string]string     `json:"failures,omitempty"`
	Error        string                `json:"error,omitempty"`
}
