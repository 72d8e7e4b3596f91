package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"acefeed/internal/compcode"
	"acefeed/internal/feed"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const feedColumns = `id, source, record_date, version, ref_id, record_type,
	deal_id, master_deal_id, feed_type, portfolio, transfer_type, contract,
	deal_ref, master_deal_ref, product, coa_code, comp_code, asset, amount,
	counterparty_ref, counterparty_name, account, entity,
	value_date, trade_date, effective_date_start, effective_date_end`

const feedColumnCount = 27

func scanFeed(row interface{ Scan(...interface{}) error }) (*feed.Feed, error) {
	var (
		f             feed.Feed
		refID         uuid.NullUUID
		masterDealID  sql.NullInt64
		contract      sql.NullString
		masterDealRef sql.NullString
		end           sql.NullTime
	)
	err := row.Scan(
		&f.ID, &f.Source, &f.RecordDate, &f.Version, &refID, &f.RecordType,
		&f.DealID, &masterDealID, &f.FeedType, &f.Portfolio, &f.TransferType, &contract,
		&f.DealRef, &masterDealRef, &f.Product, &f.CoaCode, &f.CompCode, &f.Asset, &f.Amount,
		&f.CounterpartyRef, &f.CounterpartyName, &f.Account, &f.Entity,
		&f.ValueDate, &f.TradeDate, &f.EffectiveDateStart, &end,
	)
	if err != nil {
		return nil, err
	}
	if refID.Valid {
		f.RefID = &refID.UUID
	}
	if masterDealID.Valid {
		f.MasterDealID = &masterDealID.Int64
	}
	if contract.Valid {
		f.Contract = &contract.String
	}
	if masterDealRef.Valid {
		f.MasterDealRef = &masterDealRef.String
	}
	if end.Valid {
		f.EffectiveDateEnd = &end.Time
	}
	return &f, nil
}

func feedArgs(f *feed.Feed) []interface{} {
	var refID interface{}
	if f.RefID != nil {
		refID = *f.RefID
	}
	var masterDealID interface{}
	if f.MasterDealID != nil {
		masterDealID = *f.MasterDealID
	}
	var contract interface{}
	if f.Contract != nil {
		contract = *f.Contract
	}
	var masterDealRef interface{}
	if f.MasterDealRef != nil {
		masterDealRef = *f.MasterDealRef
	}
	var end interface{}
	if f.EffectiveDateEnd != nil {
		end = *f.EffectiveDateEnd
	}
	return []interface{}{
		f.ID, f.Source, f.RecordDate, f.Version, refID, f.RecordType,
		f.DealID, masterDealID, f.FeedType, f.Portfolio, f.TransferType, contract,
		f.DealRef, masterDealRef, f.Product, f.CoaCode, f.CompCode, f.Asset, f.Amount,
		f.CounterpartyRef, f.CounterpartyName, f.Account, f.Entity,
		f.ValueDate, f.TradeDate, f.EffectiveDateStart, end,
	}
}

// insertFeeds writes a batch using one multi-row INSERT.
func insertFeeds(ctx context.Context, q querier, table string, feeds []feed.Feed) error {
	if len(feeds) == 0 {
		return nil
	}

	query := "INSERT INTO " + table + " (" + feedColumns + ") VALUES "
	values := make([]string, 0, len(feeds))
	args := make([]interface{}, 0, len(feeds)*feedColumnCount)

	for i := range feeds {
		base := i * feedColumnCount
		ph := make([]string, feedColumnCount)
		for j := 0; j < feedColumnCount; j++ {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(ph, ", ")+")")
		args = append(args, feedArgs(&feeds[i])...)
	}

	query += strings.Join(values, ", ")
	_, err := q.ExecContext(ctx, query, args...)
	return err
}

func queryFeeds(ctx context.Context, q querier, query string, args ...interface{}) ([]feed.Feed, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []feed.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func queryFeed(ctx context.Context, q querier, query string, args ...interface{}) (*feed.Feed, error) {
	f, err := scanFeed(q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

func (tx *Tx) CurrentFeedByCompCode(ctx context.Context, dealID int64, code compcode.Code) (*feed.Feed, error) {
	return queryFeed(ctx, tx.q, `
		SELECT `+feedColumns+` FROM feeds
		WHERE deal_id = $1 AND comp_code = $2 AND effective_date_end IS NULL
		ORDER BY effective_date_start DESC
		LIMIT 1
	`, dealID, code)
}

func (tx *Tx) CurrentFeedByDeal(ctx context.Context, dealID int64) (*feed.Feed, error) {
	return queryFeed(ctx, tx.q, `
		SELECT `+feedColumns+` FROM feeds
		WHERE deal_id = $1 AND effective_date_end IS NULL
		ORDER BY effective_date_start DESC
		LIMIT 1
	`, dealID)
}

func (tx *Tx) OpenFeedsByDeal(ctx context.Context, dealID int64) ([]feed.Feed, error) {
	return queryFeeds(ctx, tx.q, `
		SELECT `+feedColumns+` FROM feeds
		WHERE deal_id = $1 AND effective_date_end IS NULL
	`, dealID)
}

func (tx *Tx) CountOpenChildFeeds(ctx context.Context, masterDealID int64) (int, error) {
	var n int
	err := tx.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM feeds
		WHERE master_deal_id = $1 AND effective_date_end IS NULL
	`, masterDealID).Scan(&n)
	return n, err
}

func (tx *Tx) CountOpenSiblingFeeds(ctx context.Context, masterDealID, excludeDealID int64) (int, error) {
	var n int
	err := tx.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM feeds
		WHERE master_deal_id = $1 AND deal_id <> $2 AND effective_date_end IS NULL
	`, masterDealID, excludeDealID).Scan(&n)
	return n, err
}

// LastClosedCreateFeeds returns the CREATE rows closed at the deal's most
// recent closing time, the rows a parent reopen copies forward.
func (tx *Tx) LastClosedCreateFeeds(ctx context.Context, dealID int64) ([]feed.Feed, error) {
	return queryFeeds(ctx, tx.q, `
		SELECT `+feedColumns+` FROM feeds
		WHERE deal_id = $1
		  AND record_type = 'CREATE'
		  AND effective_date_end = (
			SELECT MAX(effective_date_end) FROM feeds WHERE deal_id = $1
		  )
	`, dealID)
}

func (tx *Tx) InsertFeeds(ctx context.Context, feeds []feed.Feed) error {
	return insertFeeds(ctx, tx.q, "feeds", feeds)
}

func (tx *Tx) CloseFeeds(ctx context.Context, ids []uuid.UUID, end time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	_, err := tx.q.ExecContext(ctx, `
		UPDATE feeds SET effective_date_end = $1 WHERE id = ANY($2)
	`, end, pq.Array(strIDs))
	return err
}
