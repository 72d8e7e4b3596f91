package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"acefeed/internal/feed"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const tradeColumns = `id, source, record_date, version, ref_id, feed_type, record_type,
	deal_id, master_deal_id, portfolio, product, transfer_type, contract,
	deal_ref, master_deal_ref,
	base_asset, base_amount, quote_asset, quote_amount, fee_asset, fee_amount,
	counterparty_ref, counterparty_name, account, entity,
	value_date, trade_date, effective_date_start, effective_date_end`

const tradeColumnCount = 29

func scanTrade(row interface{ Scan(...interface{}) error }) (*feed.Trade, error) {
	var (
		t             feed.Trade
		refID         uuid.NullUUID
		masterDealID  sql.NullInt64
		contract      sql.NullString
		masterDealRef sql.NullString
		end           sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.Source, &t.RecordDate, &t.Version, &refID, &t.FeedType, &t.RecordType,
		&t.DealID, &masterDealID, &t.Portfolio, &t.Product, &t.TransferType, &contract,
		&t.DealRef, &masterDealRef,
		&t.BaseAsset, &t.BaseAmount, &t.QuoteAsset, &t.QuoteAmount, &t.FeeAsset, &t.FeeAmount,
		&t.CounterpartyRef, &t.CounterpartyName, &t.Account, &t.Entity,
		&t.ValueDate, &t.TradeDate, &t.EffectiveDateStart, &end,
	)
	if err != nil {
		return nil, err
	}
	if refID.Valid {
		t.RefID = &refID.UUID
	}
	if masterDealID.Valid {
		t.MasterDealID = &masterDealID.Int64
	}
	if contract.Valid {
		t.Contract = &contract.String
	}
	if masterDealRef.Valid {
		t.MasterDealRef = &masterDealRef.String
	}
	if end.Valid {
		t.EffectiveDateEnd = &end.Time
	}
	return &t, nil
}

func tradeArgs(t *feed.Trade) []interface{} {
	var refID interface{}
	if t.RefID != nil {
		refID = *t.RefID
	}
	var masterDealID interface{}
	if t.MasterDealID != nil {
		masterDealID = *t.MasterDealID
	}
	var contract interface{}
	if t.Contract != nil {
		contract = *t.Contract
	}
	var masterDealRef interface{}
	if t.MasterDealRef != nil {
		masterDealRef = *t.MasterDealRef
	}
	var end interface{}
	if t.EffectiveDateEnd != nil {
		end = *t.EffectiveDateEnd
	}
	return []interface{}{
		t.ID, t.Source, t.RecordDate, t.Version, refID, t.FeedType, t.RecordType,
		t.DealID, masterDealID, t.Portfolio, t.Product, t.TransferType, contract,
		t.DealRef, masterDealRef,
		t.BaseAsset, t.BaseAmount, t.QuoteAsset, t.QuoteAmount, t.FeeAsset, t.FeeAmount,
		t.CounterpartyRef, t.CounterpartyName, t.Account, t.Entity,
		t.ValueDate, t.TradeDate, t.EffectiveDateStart, end,
	}
}

func queryTrades(ctx context.Context, q querier, query string, args ...interface{}) ([]feed.Trade, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []feed.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func queryTrade(ctx context.Context, q querier, query string, args ...interface{}) (*feed.Trade, error) {
	t, err := scanTrade(q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (tx *Tx) CurrentTradeByProduct(ctx context.Context, dealID int64, product string) (*feed.Trade, error) {
	return queryTrade(ctx, tx.q, `
		SELECT `+tradeColumns+` FROM trades
		WHERE deal_id = $1 AND product = $2 AND effective_date_end IS NULL
		ORDER BY effective_date_start DESC
		LIMIT 1
	`, dealID, product)
}

func (tx *Tx) OpenTradesByDeal(ctx context.Context, dealID int64) ([]feed.Trade, error) {
	return queryTrades(ctx, tx.q, `
		SELECT `+tradeColumns+` FROM trades
		WHERE deal_id = $1 AND effective_date_end IS NULL
	`, dealID)
}

func (tx *Tx) CountOpenSiblingTrades(ctx context.Context, masterDealID, excludeDealID int64) (int, error) {
	var n int
	err := tx.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM trades
		WHERE master_deal_id = $1 AND deal_id <> $2 AND effective_date_end IS NULL
	`, masterDealID, excludeDealID).Scan(&n)
	return n, err
}

func (tx *Tx) LastClosedCreateTrades(ctx context.Context, dealID int64) ([]feed.Trade, error) {
	return queryTrades(ctx, tx.q, `
		SELECT `+tradeColumns+` FROM trades
		WHERE deal_id = $1
		  AND record_type = 'CREATE'
		  AND effective_date_end = (
			SELECT MAX(effective_date_end) FROM trades WHERE deal_id = $1
		  )
	`, dealID)
}

func (tx *Tx) InsertTrades(ctx context.Context, trades []feed.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	query := "INSERT INTO trades (" + tradeColumns + ") VALUES "
	values := make([]string, 0, len(trades))
	args := make([]interface{}, 0, len(trades)*tradeColumnCount)

	for i := range trades {
		base := i * tradeColumnCount
		ph := make([]string, tradeColumnCount)
		for j := 0; j < tradeColumnCount; j++ {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(ph, ", ")+")")
		args = append(args, tradeArgs(&trades[i])...)
	}

	query += strings.Join(values, ", ")
	_, err := tx.q.ExecContext(ctx, query, args...)
	return err
}

func (tx *Tx) CloseTrades(ctx context.Context, ids []uuid.UUID, end time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	_, err := tx.q.ExecContext(ctx, `
		UPDATE trades SET effective_date_end = $1 WHERE id = ANY($2)
	`, end, pq.Array(strIDs))
	return err
}

// TradesAt returns the trade rows that were knowledge at effective for one
// (portfolio, base, quote) pair with trade dates in [start, end), in fold
// order.
func (db *DB) TradesAt(ctx context.Context, portfolio, baseAsset, quoteAsset string, tradeDateStart, tradeDateEnd, effective time.Time) ([]feed.Trade, error) {
	return queryTrades(ctx, db.sql, `
		SELECT `+tradeColumns+` FROM trades
		WHERE portfolio = $1 AND base_asset = $2 AND quote_asset = $3
		  AND trade_date >= $4 AND trade_date < $5
		  AND effective_date_start <= $6
		  AND (effective_date_end > $6 OR effective_date_end IS NULL)
		ORDER BY effective_date_start
	`, portfolio, baseAsset, quoteAsset, tradeDateStart, tradeDateEnd, effective)
}

// TradePairs lists the (base, quote) pairs traded under a portfolio.
func (db *DB) TradePairs(ctx context.Context, portfolio string) ([][2]string, error) {
	rows, err := db.sql.QueryContext(ctx, `
		SELECT DISTINCT base_asset, quote_asset FROM trades WHERE portfolio = $1
	`, portfolio)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var base, quote string
		if err := rows.Scan(&base, &quote); err != nil {
			return nil, err
		}
		out = append(out, [2]string{base, quote})
	}
	return out, rows.Err()
}

// TradePortfolios lists every portfolio present in the trade ledger.
func (db *DB) TradePortfolios(ctx context.Context) ([]string, error) {
	return db.stringColumn(ctx, `SELECT DISTINCT portfolio FROM trades`)
}
