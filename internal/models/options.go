// Package models provides domain models shared across the application.
package models

import (
	"strings"
	"time"
)

// OptionKind represents the kind of an option contract.
type OptionKind string

const (
	OptionKindCall OptionKind = "CALL"
	OptionKindPut  OptionKind = "PUT"
)

// ParseOptionKind parses "call", "c", "ce", "put", "p" or "pe" in any case.
func ParseOptionKind(s string) (OptionKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "C", "CE", "CALLS":
		return OptionKindCall, true
	case "PUT", "P", "PE", "PUTS":
		return OptionKindPut, true
	default:
		return OptionKind(s), false
	}
}

// Valid reports whether k is CALL or PUT.
func (k OptionKind) Valid() bool {
	return k == OptionKindCall || k == OptionKindPut
}

// Letter returns the single-letter code used in contract identifiers.
func (k OptionKind) Letter() string {
	if k == "" {
		return ""
	}
	return string(k[0])
}

// Moneyness classifies a strike relative to the underlying price.
type Moneyness string

const (
	InTheMoney    Moneyness = "ITM"
	AtTheMoney    Moneyness = "ATM"
	OutOfTheMoney Moneyness = "OTM"
)

// ParseMoneyness parses ITM, ATM or OTM, case-insensitively.
func ParseMoneyness(s string) (Moneyness, bool) {
	switch m := Moneyness(strings.ToUpper(strings.TrimSpace(s))); m {
	case InTheMoney, AtTheMoney, OutOfTheMoney:
		return m, true
	}
	return Moneyness(s), false
}

// Direction is the sign applied to a leg's premium and payoff.
type Direction int

const (
	Long  Direction = 1
	Short Direction = -1
)

// DirectionOf maps an is-long flag to a Direction.
func DirectionOf(isLong bool) Direction {
	if isLong {
		return Long
	}
	return Short
}

func (d Direction) String() string {
	if d == Short {
		return "SHORT"
	}
	return "LONG"
}

// ChainRow is one raw contract row of an options chain snapshot.
type ChainRow struct {
	Kind              OptionKind `json:"kind"`
	Strike            float64    `json:"strike"`
	Bid               float64    `json:"bid"`
	Ask               float64    `json:"ask"`
	ImpliedVolatility float64    `json:"implied_volatility"`
	Volume            int64      `json:"volume"`
	Expiration        time.Time  `json:"expiration"`

	// Derived when the row is admitted into a chain.
	ExpirationBucket int       `json:"expiration_bucket"`
	Moneyness        Moneyness `json:"moneyness"`
}

// OptionChain is a snapshot of every admitted row for one underlying.
type OptionChain struct {
	Symbol          string     `json:"symbol"`
	UnderlyingPrice float64    `json:"underlying_price"`
	AsOf            time.Time  `json:"as_of"`
	Rows            []ChainRow `json:"rows"`
}
