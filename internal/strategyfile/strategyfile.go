// Package strategyfile reads strategy definitions from YAML documents.
package strategyfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "options-calculator/internal/errors"
	"options-calculator/internal/models"
	"options-calculator/internal/options"
)

// Leg is one YAML leg entry.
type Leg struct {
	Kind              string  `yaml:"kind"`
	Long              bool    `yaml:"long"`
	Strike            float64 `yaml:"strike"`
	Bid               float64 `yaml:"bid"`
	Ask               float64 `yaml:"ask"`
	ImpliedVolatility float64 `yaml:"implied_volatility"`
	Volume            int64   `yaml:"volume"`
	Expiration        string  `yaml:"expiration"`
}

// File is a strategy definition document.
type File struct {
	Name            string  `yaml:"name"`
	Bias            string  `yaml:"bias"`
	Symbol          string  `yaml:"symbol"`
	UnderlyingPrice float64 `yaml:"underlying_price"`
	// AsOf is the evaluation date, YYYY-MM-DD. Empty means today.
	AsOf string `yaml:"as_of"`
	Legs []Leg  `yaml:"legs"`
}

// Decode parses a document from r, rejecting unknown keys.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, apperrors.NewValidationError("document", "", "is empty")
		}
		return nil, fmt.Errorf("failed to parse strategy file: %w", err)
	}
	return &f, nil
}

// Load reads and decodes the document at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategy file: %w", err)
	}
	f, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Encode writes f as YAML.
func Encode(w io.Writer, f *File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode strategy file: %w", err)
	}
	return enc.Close()
}

// Strategy validates the document and builds the strategy it describes.
func (f *File) Strategy() (*options.Strategy, error) {
	asOf := time.Time{}
	if f.AsOf != "" {
		t, err := time.Parse("2006-01-02", f.AsOf)
		if err != nil {
			return nil, apperrors.NewValidationError("as_of", f.AsOf, "must be YYYY-MM-DD")
		}
		asOf = t
	}

	legs := make([]options.Contract, 0, len(f.Legs))
	for i, l := range f.Legs {
		kind, ok := models.ParseOptionKind(l.Kind)
		if !ok {
			return nil, fmt.Errorf("leg %d: %w", i+1, apperrors.NewValidationError("kind", l.Kind, "must be call or put"))
		}
		expiration, err := time.Parse("2006-01-02", l.Expiration)
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i+1, apperrors.NewValidationError("expiration", l.Expiration, "must be YYYY-MM-DD"))
		}

		c, err := options.NewContract(options.ContractSpec{
			Symbol:            f.Symbol,
			UnderlyingPrice:   f.UnderlyingPrice,
			Strike:            l.Strike,
			Bid:               l.Bid,
			Ask:               l.Ask,
			ImpliedVolatility: l.ImpliedVolatility,
			Volume:            l.Volume,
			Expiration:        expiration,
			Kind:              kind,
			Long:              l.Long,
			AsOf:              asOf,
		})
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i+1, err)
		}
		legs = append(legs, c)
	}

	return options.NewStrategy(f.Name, f.Bias, f.Symbol, f.UnderlyingPrice, legs)
}

// FromStrategy renders a strategy back into a document.
func FromStrategy(s *options.Strategy) *File {
	f := &File{
		Name:            s.Name(),
		Bias:            s.Bias(),
		Symbol:          s.Symbol(),
		UnderlyingPrice: s.UnderlyingPrice(),
	}
	for _, leg := range s.Legs() {
		if f.AsOf == "" {
			f.AsOf = leg.AsOf().Format("2006-01-02")
		}
		f.Legs = append(f.Legs, Leg{
			Kind:              string(leg.Kind()),
			Long:              leg.IsLong(),
			Strike:            leg.Strike(),
			Bid:               leg.Bid(),
			Ask:               leg.Ask(),
			ImpliedVolatility: leg.ImpliedVolatility(),
			Volume:            leg.Volume(),
			Expiration:        leg.Expiration().Format("2006-01-02"),
		})
	}
	return f
}
