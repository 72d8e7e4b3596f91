package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Ticker is one observed market price for a pair.
type Ticker struct {
	BaseAsset  string
	QuoteAsset string
	Price      decimal.Decimal
	LastPrice  decimal.Decimal
	AsOf       time.Time
}

// LatestTicker returns the last observed price for the pair at or before
// asOf. A pair with no observation prices at zero; callers treat zero as
// "unpriced", never as an error.
func (db *DB) LatestTicker(ctx context.Context, baseAsset, quoteAsset string, asOf time.Time) (price, lastPrice decimal.Decimal, err error) {
	err = db.sql.QueryRowContext(ctx, `
		SELECT price, last_price FROM tickers
		WHERE base_asset = $1 AND quote_asset = $2 AND as_of <= $3
		ORDER BY as_of DESC
		LIMIT 1
	`, baseAsset, quoteAsset, asOf).Scan(&price, &lastPrice)
	if err == sql.ErrNoRows {
		return decimal.Zero, decimal.Zero, nil
	}
	return price, lastPrice, err
}

// InsertTickers writes a batch of price observations.
func (db *DB) InsertTickers(ctx context.Context, tickers []Ticker) error {
	if len(tickers) == 0 {
		return nil
	}

	query := `INSERT INTO tickers (base_asset, quote_asset, price, last_price, as_of) VALUES `
	values := make([]string, 0, len(tickers))
	args := make([]interface{}, 0, len(tickers)*5)

	for i, t := range tickers {
		base := i * 5
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5))
		args = append(args, t.BaseAsset, t.QuoteAsset, t.Price, t.LastPrice, t.AsOf)
	}

	query += strings.Join(values, ", ")
	_, err := db.sql.ExecContext(ctx, query, args...)
	return err
}
