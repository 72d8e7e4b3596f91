package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"acefeed/internal/feed"
)

// FeedFilter narrows the snapshot item fetch to one snapshot key. Optional
// fields filter only when set; Contract distinguishes "no filter" from
// "contract IS NULL".
type FeedFilter struct {
	Portfolio string
	Asset     string

	CounterpartyRef  *string
	CounterpartyName *string
	Product          *string
	Contract         *sql.NullString
}

func (f FeedFilter) where(args *[]interface{}) string {
	where := ""
	add := func(clause string, val interface{}) {
		*args = append(*args, val)
		where += fmt.Sprintf(" AND %s = $%d", clause, len(*args))
	}

	add("portfolio", f.Portfolio)
	add("asset", f.Asset)
	if f.CounterpartyRef != nil {
		add("counterparty_ref", *f.CounterpartyRef)
	}
	if f.CounterpartyName != nil {
		add("counterparty_name", *f.CounterpartyName)
	}
	if f.Product != nil {
		add("product", *f.Product)
	}
	if f.Contract != nil {
		if f.Contract.Valid {
			add("contract", f.Contract.String)
		} else {
			where += " AND contract IS NULL"
		}
	}
	return where
}

// feedsAt fetches the rows of one table that were knowledge at effective and
// whose trade date lies in [start, end), margin legs excluded, ordered the
// way snapshot folds consume them.
func feedsAt(ctx context.Context, q querier, table string, filter FeedFilter, tradeDateStart, tradeDateEnd, effective time.Time) ([]feed.Feed, error) {
	args := []interface{}{tradeDateStart, tradeDateEnd, effective}
	where := filter.where(&args)

	return queryFeeds(ctx, q, `
		SELECT `+feedColumns+` FROM `+table+`
		WHERE comp_code NOT IN ('6001', '6002', '6003')
		  AND trade_date >= $1 AND trade_date < $2
		  AND effective_date_start <= $3
		  AND (effective_date_end > $3 OR effective_date_end IS NULL)
		`+where+`
		ORDER BY effective_date_start
	`, args...)
}

// FeedsAt returns the system feeds plus the manual overlay for one snapshot
// key, both in fold order.
func (db *DB) FeedsAt(ctx context.Context, filter FeedFilter, tradeDateStart, tradeDateEnd, effective time.Time) ([]feed.Feed, error) {
	system, err := feedsAt(ctx, db.sql, "feeds", filter, tradeDateStart, tradeDateEnd, effective)
	if err != nil {
		return nil, err
	}
	manual, err := feedsAt(ctx, db.sql, "manual_feeds", filter, tradeDateStart, tradeDateEnd, effective)
	if err != nil {
		return nil, err
	}
	return append(system, manual...), nil
}

// InsertManualFeeds writes operator-entered adjustment rows.
func (db *DB) InsertManualFeeds(ctx context.Context, feeds []feed.Feed) error {
	return insertFeeds(ctx, db.sql, "manual_feeds", feeds)
}

// Portfolios lists every portfolio that ever appeared in the ledger.
func (db *DB) Portfolios(ctx context.Context) ([]string, error) {
	return db.stringColumn(ctx, `SELECT DISTINCT portfolio FROM feeds`)
}

// Assets lists every asset booked under a portfolio.
func (db *DB) Assets(ctx context.Context, portfolio string) ([]string, error) {
	return db.stringColumn(ctx, `SELECT DISTINCT asset FROM feeds WHERE portfolio = $1`, portfolio)
}

// Counterparties lists the (ref, name) pairs booked under a portfolio and
// asset.
func (db *DB) Counterparties(ctx context.Context, portfolio, asset string) ([][2]string, error) {
	rows, err := db.sql.QueryContext(ctx, `
		SELECT DISTINCT counterparty_ref, counterparty_name FROM feeds
		WHERE portfolio = $1 AND asset = $2
	`, portfolio, asset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var ref, name string
		if err := rows.Scan(&ref, &name); err != nil {
			return nil, err
		}
		out = append(out, [2]string{ref, name})
	}
	return out, rows.Err()
}

// ProductContractPairs lists the (product, contract) pairs booked under a
// portfolio and asset. Contract is empty for uncontracted products.
func (db *DB) ProductContractPairs(ctx context.Context, portfolio, asset string) ([][2]string, error) {
	rows, err := db.sql.QueryContext(ctx, `
		SELECT DISTINCT product, COALESCE(contract, '') FROM feeds
		WHERE portfolio = $1 AND asset = $2
	`, portfolio, asset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var product, contract string
		if err := rows.Scan(&product, &contract); err != nil {
			return nil, err
		}
		out = append(out, [2]string{product, contract})
	}
	return out, rows.Err()
}

func (db *DB) stringColumn(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
