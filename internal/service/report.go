package service

import (
	"errors"
	"fmt"

	"github.com/retinalab/retina-dashboard/internal/service/report"
	"github.com/retinalab/retina-dashboard/internal/service/report/csv"
	"github.com/retinalab/retina-dashboard/internal/service/report/html"
	"github.com/retinalab/retina-dashboard/internal/service/report/json"
	"github.com/retinalab/retina-dashboard/internal/service/report/types"
	"github.com/retinalab/retina-dashboard/internal/store/model"
)

type ReportFormat = types.ReportFormat

const (
	ReportFormatCSV  = types.ReportFormatCSV
	ReportFormatJSON = types.ReportFormatJSON
	ReportFormatHTML = types.ReportFormatHTML
)

var ErrUnsupportedReportFormat = errors.New("unsupported report format")

type ReportService struct {
	processor types.AnalysisProcessor
	renderers map[types.ReportFormat]types.ReportRenderer
}

func NewReportService() *ReportService {
	service := &ReportService{
		processor: report.NewStandardAnalysisProcessor(),
		renderers: make(map[types.ReportFormat]types.ReportRenderer),
	}

	for _, r := range []types.ReportRenderer{csv.NewRenderer(), json.NewRenderer(), html.NewRenderer()} {
		service.renderers[r.SupportedFormat()] = r
	}

	return service
}

// GenerateReport renders the analysis and returns the content with its media type.
func (r *ReportService) GenerateReport(analysis *model.Analysis, fundus, erg *model.Upload, format types.ReportFormat) (string, string, error) {
	renderer, exists := r.renderers[format]
	if !exists {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedReportFormat, format)
	}

	reportData, err := r.processor.ProcessAnalysis(analysis, fundus, erg)
	if err != nil {
		return "", "", fmt.Errorf("failed to process analysis: %w", err)
	}

	content, err := renderer.Render(reportData)
	if err != nil {
		return "", "", err
	}
	return content, renderer.ContentType(), nil
}
