package report

import (
	"fmt"
	"time"

	"github.com/retinalab/retina-dashboard/internal/service/report/types"
	"github.com/retinalab/retina-dashboard/internal/store/model"
)

const (
	highConfidence     = 0.8
	moderateConfidence = 0.6
)

type StandardAnalysisProcessor struct {
	now func() time.Time
}

func NewStandardAnalysisProcessor() *StandardAnalysisProcessor {
	return &StandardAnalysisProcessor{now: time.Now}
}

// ProcessAnalysis flattens an analysis and its inputs for the renderers. Either input
// may be nil when it was deleted after the analysis ran.
func (p *StandardAnalysisProcessor) ProcessAnalysis(analysis *model.Analysis, fundus, erg *model.Upload) (*types.ReportData, error) {
	if analysis == nil {
		return nil, fmt.Errorf("analysis is required")
	}

	metrics := types.ProcessedMetrics{
		AnalysisID:         analysis.ID.String(),
		Status:             string(analysis.Status),
		ColorBlindnessType: deref(analysis.ColorBlindnessType),
		SeverityLevel:      deref(analysis.SeverityLevel),
		FailureReason:      deref(analysis.FailureReason),
		Combined:           confidence(analysis.CombinedConfidence),
		Fundus:             confidence(analysis.FundusConfidence),
		Erg:                confidence(analysis.ErgConfidence),
	}
	if analysis.Details != nil {
		details := analysis.Details.Data
		metrics.Details = &details
	}

	return &types.ReportData{
		Analysis: analysis,
		Metrics:  metrics,
		Inputs: []types.InputDetail{
			input(model.ModalityFundus, analysis.FundusRecordID.String(), fundus),
			input(model.ModalityErg, analysis.ErgRecordID.String(), erg),
		},
		Timestamps: p.generateTimestamps(analysis),
	}, nil
}

func (p *StandardAnalysisProcessor) generateTimestamps(analysis *model.Analysis) types.ReportTimestamps {
	now := p.now()
	ts := types.ReportTimestamps{
		Generated:     now.Format("January 2, 2006"),
		GeneratedTime: now.Format("3:04 PM"),
		AnalysisDate:  analysis.CreatedAt.Format("January 2, 2006"),
	}
	if analysis.CompletedAt != nil {
		ts.CompletedDate = analysis.CompletedAt.Format("January 2, 2006 15:04")
	}
	return ts
}

func confidence(v *float64) types.ConfidenceDetail {
	if v == nil {
		return types.ConfidenceDetail{Percent: "N/A"}
	}
	d := types.ConfidenceDetail{
		Value:   *v,
		Percent: fmt.Sprintf("%.1f%%", *v*100),
	}
	switch {
	case *v >= highConfidence:
		d.Band = types.ConfidenceHigh
	case *v >= moderateConfidence:
		d.Band = types.ConfidenceModerate
	default:
		d.Band = types.ConfidenceLow
	}
	return d
}

func input(modality model.Modality, recordID string, u *model.Upload) types.InputDetail {
	if u == nil {
		return types.InputDetail{Modality: string(modality), RecordID: recordID, Missing: true}
	}
	return types.InputDetail{
		Modality:     string(modality),
		RecordID:     recordID,
		FileName:     u.FileName,
		QualityScore: u.QualityScore,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
