// Package store provides an SQLite-backed options chain engine.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"options-calculator/internal/chain"
	apperrors "options-calculator/internal/errors"
	"options-calculator/internal/models"
)

// columns maps predicate fields to chain_rows columns.
var columns = map[chain.Field]string{
	chain.FieldStrike:            "strike",
	chain.FieldExpirationBucket:  "expiration_bucket",
	chain.FieldMoneyness:         "moneyness",
	chain.FieldVolume:            "volume",
	chain.FieldBid:               "bid",
	chain.FieldAsk:               "ask",
	chain.FieldImpliedVolatility: "implied_volatility",
}

// SQLiteChain answers chain queries from an in-memory SQLite database. Nothing
// touches disk; the data lives as long as the value is open.
type SQLiteChain struct {
	db         *sql.DB
	symbol     string
	underlying float64
	asOf       time.Time
	size       int
}

// NewSQLiteChain admits rows with the same rules as chain.New and loads them
// into a fresh in-memory database.
func NewSQLiteChain(ctx context.Context, symbol string, underlying float64, asOf time.Time, rows []models.ChainRow, filter chain.LiquidityFilter) (*SQLiteChain, error) {
	admitted, err := chain.Admit(underlying, asOf, rows, filter)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is its own database, so pin one forever.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	c := &SQLiteChain{
		db:         db,
		symbol:     symbol,
		underlying: underlying,
		asOf:       asOf,
	}

	if err := c.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := c.insertRows(ctx, admitted); err != nil {
		db.Close()
		return nil, err
	}
	c.size = len(admitted)

	return c, nil
}

// initSchema creates the chain table and its indexes.
func (c *SQLiteChain) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chain_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		strike REAL NOT NULL,
		bid REAL NOT NULL,
		ask REAL NOT NULL,
		implied_volatility REAL NOT NULL,
		volume INTEGER NOT NULL,
		expiration DATETIME NOT NULL,
		expiration_bucket INTEGER NOT NULL,
		moneyness TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chain_rows_kind_bucket ON chain_rows(kind, expiration_bucket);
	CREATE INDEX IF NOT EXISTS idx_chain_rows_strike ON chain_rows(strike);
	`
	_, err := c.db.ExecContext(ctx, schema)
	return err
}

func (c *SQLiteChain) insertRows(ctx context.Context, rows []models.ChainRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chain_rows (kind, strike, bid, ask, implied_volatility, volume, expiration, expiration_bucket, moneyness)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx, string(r.Kind), r.Strike, r.Bid, r.Ask, r.ImpliedVolatility, r.Volume, r.Expiration.UTC(), r.ExpirationBucket, string(r.Moneyness))
		if err != nil {
			return fmt.Errorf("failed to insert chain row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close releases the database.
func (c *SQLiteChain) Close() error {
	return c.db.Close()
}

func (c *SQLiteChain) Symbol() string           { return c.symbol }
func (c *SQLiteChain) UnderlyingPrice() float64 { return c.underlying }
func (c *SQLiteChain) AsOf() time.Time          { return c.asOf }
func (c *SQLiteChain) Len() int                 { return c.size }

// compileWhere turns predicates into a parameterized WHERE clause.
func compileWhere(kind models.OptionKind, preds []chain.Predicate) (string, []interface{}, error) {
	var b strings.Builder
	b.WriteString("WHERE kind = ?")
	args := []interface{}{string(kind)}

	for _, p := range preds {
		if err := p.Validate(); err != nil {
			return "", nil, apperrors.NewValidationError("predicate", p.String(), err.Error())
		}
		fmt.Fprintf(&b, " AND %s %s ?", columns[p.Field], p.Op)
		if p.Field == chain.FieldMoneyness {
			args = append(args, string(p.Class))
		} else {
			args = append(args, p.Number)
		}
	}
	return b.String(), args, nil
}

// Filter returns the rows of kind matching every predicate, in load order.
func (c *SQLiteChain) Filter(ctx context.Context, preds []chain.Predicate, kind models.OptionKind) ([]models.ChainRow, error) {
	where, args, err := compileWhere(kind, preds)
	if err != nil {
		return nil, err
	}

	query := `SELECT kind, strike, bid, ask, implied_volatility, volume, expiration, expiration_bucket, moneyness
		FROM chain_rows ` + where + ` ORDER BY id ASC`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain rows: %w", err)
	}
	defer rows.Close()

	out := make([]models.ChainRow, 0)
	for rows.Next() {
		var r models.ChainRow
		var kindText, moneyness string
		if err := rows.Scan(&kindText, &r.Strike, &r.Bid, &r.Ask, &r.ImpliedVolatility, &r.Volume, &r.Expiration, &r.ExpirationBucket, &moneyness); err != nil {
			return nil, fmt.Errorf("failed to scan chain row: %w", err)
		}
		r.Kind = models.OptionKind(kindText)
		r.Moneyness = models.Moneyness(moneyness)
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chain rows: %w", err)
	}
	return out, nil
}

// ClosestExpirationBucket returns the stored bucket nearest days, the lower
// one on ties.
func (c *SQLiteChain) ClosestExpirationBucket(ctx context.Context, days int) (int, error) {
	var bucket int
	err := c.db.QueryRowContext(ctx, `
		SELECT expiration_bucket FROM chain_rows
		ORDER BY ABS(expiration_bucket - ?) ASC, expiration_bucket ASC
		LIMIT 1
	`, days).Scan(&bucket)
	if err != nil {
		return 0, c.lookupError("expiration_bucket", err)
	}
	return bucket, nil
}

// ClosestStrike returns the stored strike nearest price, the lower one on
// ties.
func (c *SQLiteChain) ClosestStrike(ctx context.Context, price float64) (float64, error) {
	var strike float64
	err := c.db.QueryRowContext(ctx, `
		SELECT strike FROM chain_rows
		ORDER BY ABS(strike - ?) ASC, strike ASC
		LIMIT 1
	`, price).Scan(&strike)
	if err != nil {
		return 0, c.lookupError("strike", err)
	}
	return strike, nil
}

func (c *SQLiteChain) lookupError(dataType string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewDataError(dataType, c.symbol, "chain is empty", apperrors.ErrDataNotFound)
	}
	return apperrors.NewDataError(dataType, c.symbol, "lookup failed", fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err))
}
