package types

import (
	"github.com/retinalab/retina-dashboard/internal/store/model"
)

type ReportRenderer interface {
	Render(data *ReportData) (string, error)
	SupportedFormat() ReportFormat
	ContentType() string
}

type AnalysisProcessor interface {
	ProcessAnalysis(analysis *model.Analysis, fundus, erg *model.Upload) (*ReportData, error)
}

type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatJSON ReportFormat = "json"
	ReportFormatHTML ReportFormat = "html"
)

type ConfidenceBand string

const (
	ConfidenceHigh     ConfidenceBand = "High"
	ConfidenceModerate ConfidenceBand = "Moderate"
	ConfidenceLow      ConfidenceBand = "Low"
)

type ReportData struct {
	Analysis   *model.Analysis
	Metrics    ProcessedMetrics
	Inputs     []InputDetail
	Timestamps ReportTimestamps
}

type ProcessedMetrics struct {
	AnalysisID         string
	Status             string
	ColorBlindnessType string
	SeverityLevel      string
	Combined           ConfidenceDetail
	Fundus             ConfidenceDetail
	Erg                ConfidenceDetail
	FailureReason      string
	Details            *model.AnalysisDetails
}

type ConfidenceDetail struct {
	Value   float64
	Percent string
	Band    ConfidenceBand
}

// InputDetail describes one of the uploads an analysis was computed from.
// Missing is set when the upload has since been deleted.
type InputDetail struct {
	Modality     string
	RecordID     string
	FileName     string
	QualityScore *float64
	Missing      bool
}

type ReportTimestamps struct {
	Generated     string
	GeneratedTime string
	AnalysisDate  string
	CompletedDate string
}
