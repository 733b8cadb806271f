package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Upload is a fundus image or an ERG recording together with its processing state.
// QualityScore and ExtractedFeatures are only set once Status is completed.
type Upload struct {
	ID                  uuid.UUID            `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	OwnerID             string               `gorm:"not null;type:VARCHAR(255);index:uploads_owner_modality_idx"`
	Modality            Modality             `gorm:"not null;type:VARCHAR(20);index:uploads_owner_modality_idx"`
	FileName            string               `gorm:"not null;type:VARCHAR(512)"`
	ContentType         string               `gorm:"type:VARCHAR(255)"`
	Size                int64                `gorm:"not null"`
	ArtifactURL         string               `gorm:"not null;uniqueIndex:uploads_artifact_url_idx"`
	Status              ProcessingStatus     `gorm:"not null;type:VARCHAR(20);index:uploads_status_idx"`
	QualityScore        *float64             `gorm:"column:quality_score"`
	ExtractedFeatures   *JSONField[Features] `gorm:"type:jsonb"`
	FailureReason       *string
	CreatedAt           time.Time `gorm:"not null"`
	ProcessingStartedAt *time.Time
	ProcessedAt         *time.Time
}

type UploadList []Upload

func (u Upload) String() string {
	val, _ := json.Marshal(u)
	return string(val)
}

func (Upload) TableName() string {
	return "uploads"
}
