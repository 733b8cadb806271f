package store

import (
	"context"

	"gorm.io/gorm"
)

type Store interface {
	Snapshot(ctx context.Context, fn func(ctx context.Context) error) error
	Upload() Upload
	Analysis() Analysis
	Audit() Audit
	Ping(ctx context.Context) error
	Close() error
}

type DataStore struct {
	db       *gorm.DB
	upload   Upload
	analysis Analysis
	audit    Audit
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		upload:   NewUploadStore(db),
		analysis: NewAnalysisStore(db),
		audit:    NewAuditStore(db),
		db:       db,
	}
}

func (s *DataStore) Upload() Upload {
	return s.upload
}

func (s *DataStore) Analysis() Analysis {
	return s.analysis
}

func (s *DataStore) Audit() Audit {
	return s.audit
}

func (s *DataStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}
