package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Analysis is a multimodal analysis over one completed fundus upload and one completed
// ERG upload. Scoring fields are only set once Status is completed.
type Analysis struct {
	ID                 uuid.UUID        `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	OwnerID            string           `gorm:"not null;type:VARCHAR(255);index:analyses_owner_idx"`
	FundusRecordID     uuid.UUID        `gorm:"not null;type:VARCHAR(255)"`
	ErgRecordID        uuid.UUID        `gorm:"not null;type:VARCHAR(255)"`
	Status             ProcessingStatus `gorm:"not null;type:VARCHAR(20);index:analyses_status_idx"`
	FundusConfidence   *float64
	ErgConfidence      *float64
	CombinedConfidence *float64
	ColorBlindnessType *string                     `gorm:"type:VARCHAR(50)"`
	SeverityLevel      *string                     `gorm:"type:VARCHAR(20)"`
	Details            *JSONField[AnalysisDetails] `gorm:"column:analysis_details;type:jsonb"`
	FailureReason      *string
	CreatedAt          time.Time `gorm:"not null"`
	CompletedAt        *time.Time
}

type AnalysisList []Analysis

// AnalysisResult carries every field written when an analysis completes.
type AnalysisResult struct {
	FundusConfidence   float64
	ErgConfidence      float64
	CombinedConfidence float64
	ColorBlindnessType string
	SeverityLevel      string
	Details            AnalysisDetails
	CompletedAt        time.Time
}

func (a Analysis) String() string {
	val, _ := json.Marshal(a)
	return string(val)
}

func (Analysis) TableName() string {
	return "analyses"
}
