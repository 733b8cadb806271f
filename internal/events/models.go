package events

import "time"

type UploadEvent struct {
	RecordID      string    `json:"record_id"`
	OwnerID       string    `json:"owner_id"`
	Modality      string    `json:"modality"`
	Status        string    `json:"status"`
	QualityScore  *float64  `json:"quality_score,omitempty"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	At            time.Time `json:"at"`
}

type AnalysisEvent struct {
	AnalysisID         string    `json:"analysis_id"`
	OwnerID            string    `json:"owner_id"`
	Status             string    `json:"status"`
	CombinedConfidence *float64  `json:"combined_confidence,omitempty"`
	ColorBlindnessType *string   `json:"color_blindness_type,omitempty"`
	SeverityLevel      *string   `json:"severity_level,omitempty"`
	FailureReason      *string   `json:"failure_reason,omitempty"`
	At                 time.Time `json:"at"`
}
