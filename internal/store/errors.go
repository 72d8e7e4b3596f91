package store

import (
	"context"
	"time"
)

// ErrorRecord is one persisted deal processing failure.
type ErrorRecord struct {
	Source    string
	ErrorType string
	Product   string
	Reason    string
	DealID    int64
}

// RecordError persists one deal processing failure.
func (db *DB) RecordError(ctx context.Context, rec ErrorRecord) error {
	_, err := db.sql.ExecContext(ctx, `
		INSERT INTO processing_errors (source, error_type, product, reason, deal_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.Source, rec.ErrorType, rec.Product, rec.Reason, rec.DealID, time.Now().UTC())
	return err
}
