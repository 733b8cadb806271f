package store

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey int

const (
	transactionKey contextKey = iota
)

// FromContext returns the transaction carried by ctx, if any.
func FromContext(ctx context.Context) *gorm.DB {
	if tx, found := ctx.Value(transactionKey).(*gorm.DB); found {
		return tx
	}
	return nil
}

// Snapshot runs fn inside one read-only transaction. Store calls made with the
// context passed to fn read from that transaction. A nested Snapshot reuses the
// outer transaction.
func (s *DataStore) Snapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	if FromContext(ctx) != nil {
		return fn(ctx)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, transactionKey, tx))
	}, snapshotOptions(s.db)...)
	if err != nil {
		zap.S().Named("store").Debugw("snapshot rolled back", "error", err)
	}
	return err
}

func snapshotOptions(db *gorm.DB) []*sql.TxOptions {
	// sqlite runs every transaction serializable and rejects explicit levels
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
}
