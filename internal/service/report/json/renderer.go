package json

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/retinalab/retina-dashboard/internal/service/report/types"
	"github.com/retinalab/retina-dashboard/internal/store/model"
)

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) SupportedFormat() types.ReportFormat {
	return types.ReportFormatJSON
}

func (r *Renderer) ContentType() string {
	return "application/json"
}

type document struct {
	GeneratedAt        string                 `json:"generated_at"`
	AnalysisID         string                 `json:"analysis_id"`
	Status             string                 `json:"status"`
	CreatedAt          time.Time              `json:"created_at"`
	CompletedAt        *time.Time             `json:"completed_at,omitempty"`
	ColorBlindnessType string                 `json:"color_blindness_type,omitempty"`
	SeverityLevel      string                 `json:"severity_level,omitempty"`
	CombinedConfidence *float64               `json:"combined_confidence,omitempty"`
	FundusConfidence   *float64               `json:"fundus_confidence,omitempty"`
	ErgConfidence      *float64               `json:"erg_confidence,omitempty"`
	FailureReason      string                 `json:"failure_reason,omitempty"`
	Inputs             []input                `json:"inputs"`
	AnalysisDetails    *model.AnalysisDetails `json:"analysis_details,omitempty"`
}

type input struct {
	Modality     string   `json:"modality"`
	RecordID     string   `json:"record_id"`
	FileName     string   `json:"file_name,omitempty"`
	QualityScore *float64 `json:"quality_score,omitempty"`
	Deleted      bool     `json:"deleted,omitempty"`
}

func (r *Renderer) Render(data *types.ReportData) (string, error) {
	a := data.Analysis
	doc := document{
		GeneratedAt:        fmt.Sprintf("%s %s", data.Timestamps.Generated, data.Timestamps.GeneratedTime),
		AnalysisID:         data.Metrics.AnalysisID,
		Status:             data.Metrics.Status,
		CreatedAt:          a.CreatedAt,
		CompletedAt:        a.CompletedAt,
		ColorBlindnessType: data.Metrics.ColorBlindnessType,
		SeverityLevel:      data.Metrics.SeverityLevel,
		CombinedConfidence: a.CombinedConfidence,
		FundusConfidence:   a.FundusConfidence,
		ErgConfidence:      a.ErgConfidence,
		FailureReason:      data.Metrics.FailureReason,
		AnalysisDetails:    data.Metrics.Details,
	}
	for _, in := range data.Inputs {
		doc.Inputs = append(doc.Inputs, input{
			Modality:     in.Modality,
			RecordID:     in.RecordID,
			FileName:     in.FileName,
			QualityScore: in.QualityScore,
			Deleted:      in.Missing,
		})
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	return string(out), nil
}
