package chain

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"options-calculator/internal/models"
)

// RowDTO is one CSV line of a chain snapshot. The type column is optional
// when the whole file holds a single kind.
type RowDTO struct {
	Type              string `csv:"type"`
	Strike            string `csv:"strike"`
	Bid               string `csv:"bid"`
	Ask               string `csv:"ask"`
	ImpliedVolatility string `csv:"impliedVolatility"`
	Volume            string `csv:"volume"`
	ExpirationDate    string `csv:"expirationDate"`
}

// ToRow converts the DTO, using defaultKind when the type column is empty.
// Blank and NaN numeric cells read as zero.
func (dto *RowDTO) ToRow(defaultKind models.OptionKind) (models.ChainRow, error) {
	kind := defaultKind
	if strings.TrimSpace(dto.Type) != "" {
		k, ok := models.ParseOptionKind(dto.Type)
		if !ok {
			return models.ChainRow{}, fmt.Errorf("unknown option type %q", dto.Type)
		}
		kind = k
	}
	if kind == "" {
		return models.ChainRow{}, fmt.Errorf("missing option type")
	}

	strike, err := parseNumber(dto.Strike)
	if err != nil {
		return models.ChainRow{}, fmt.Errorf("error parsing strike: %w", err)
	}
	bid, err := parseNumber(dto.Bid)
	if err != nil {
		return models.ChainRow{}, fmt.Errorf("error parsing bid: %w", err)
	}
	ask, err := parseNumber(dto.Ask)
	if err != nil {
		return models.ChainRow{}, fmt.Errorf("error parsing ask: %w", err)
	}
	iv, err := parseNumber(dto.ImpliedVolatility)
	if err != nil {
		return models.ChainRow{}, fmt.Errorf("error parsing impliedVolatility: %w", err)
	}
	volume, err := parseNumber(dto.Volume)
	if err != nil {
		return models.ChainRow{}, fmt.Errorf("error parsing volume: %w", err)
	}
	expiration, err := ParseDate(dto.ExpirationDate)
	if err != nil {
		return models.ChainRow{}, fmt.Errorf("error parsing expirationDate: %w", err)
	}

	return models.ChainRow{
		Kind:              kind,
		Strike:            strike,
		Bid:               bid,
		Ask:               ask,
		ImpliedVolatility: iv,
		Volume:            int64(volume),
		Expiration:        expiration,
	}, nil
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// ParseDate accepts YYYY-MM-DD or RFC3339.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ReadCSV decodes chain rows from r. defaultKind applies to rows without a
// type; pass "" to require the column.
func ReadCSV(r io.Reader, defaultKind models.OptionKind) ([]models.ChainRow, error) {
	var dtos []*RowDTO
	if err := gocsv.Unmarshal(r, &dtos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal CSV: %w", err)
	}

	rows := make([]models.ChainRow, 0, len(dtos))
	for i, dto := range dtos {
		row, err := dto.ToRow(defaultKind)
		if err != nil {
			// Line 1 is the header.
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadCSV reads a snapshot file whose rows carry a type column.
func LoadCSV(path string) ([]models.ChainRow, error) {
	return loadFile(path, "")
}

// LoadSnapshotDir reads the calls/<date>.csv and puts/<date>.csv pair under
// dir. Calls come first.
func LoadSnapshotDir(dir, date string) ([]models.ChainRow, error) {
	calls, err := loadFile(filepath.Join(dir, "calls", date+".csv"), models.OptionKindCall)
	if err != nil {
		return nil, err
	}
	puts, err := loadFile(filepath.Join(dir, "puts", date+".csv"), models.OptionKindPut)
	if err != nil {
		return nil, err
	}
	return append(calls, puts...), nil
}

func loadFile(path string, defaultKind models.OptionKind) ([]models.ChainRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	rows, err := ReadCSV(f, defaultKind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}
