package store

import (
	"context"

	"github.com/retinalab/retina-dashboard/internal/store/model"
	"gorm.io/gorm"
)

// Audit is append only.
type Audit interface {
	Append(ctx context.Context, event model.AuditEvent) error
}

type AuditStore struct {
	db *gorm.DB
}

var _ Audit = (*AuditStore)(nil)

func NewAuditStore(db *gorm.DB) Audit {
	return &AuditStore{db: db}
}

func (a *AuditStore) Append(ctx context.Context, event model.AuditEvent) error {
	event.ID = 0
	return getDB(ctx, a.db).Create(&event).Error
}
