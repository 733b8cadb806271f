package csv

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/retinalab/retina-dashboard/internal/service/report/types"
)

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) SupportedFormat() types.ReportFormat {
	return types.ReportFormatCSV
}

func (r *Renderer) ContentType() string {
	return "text/csv"
}

func (r *Renderer) Render(data *types.ReportData) (string, error) {
	var csvRows [][]string

	csvRows = append(csvRows, []string{"COLOR VISION ANALYSIS REPORT"})
	csvRows = append(csvRows, []string{fmt.Sprintf("Generated: %s at %s",
		data.Timestamps.Generated, data.Timestamps.GeneratedTime)})
	csvRows = append(csvRows, []string{""})

	csvRows = r.addSummary(csvRows, data)
	csvRows = r.addConfidences(csvRows, data.Metrics)
	csvRows = r.addInputs(csvRows, data.Inputs)
	csvRows = r.addModelDetails(csvRows, data.Metrics)

	csvRows = append(csvRows, []string{"This report is a screening aid and not a diagnosis. Consult an ophthalmologist."})

	return r.convertRowsToCSV(csvRows)
}

func (r *Renderer) addSummary(csvRows [][]string, data *types.ReportData) [][]string {
	m := data.Metrics
	csvRows = append(csvRows, []string{"SUMMARY"})
	csvRows = append(csvRows, []string{"Field", "Value"})
	csvRows = append(csvRows, []string{"Analysis ID", m.AnalysisID})
	csvRows = append(csvRows, []string{"Status", m.Status})
	csvRows = append(csvRows, []string{"Analysis Date", data.Timestamps.AnalysisDate})
	if data.Timestamps.CompletedDate != "" {
		csvRows = append(csvRows, []string{"Completed", data.Timestamps.CompletedDate})
	}
	if m.ColorBlindnessType != "" {
		csvRows = append(csvRows, []string{"Color Vision Type", m.ColorBlindnessType})
		csvRows = append(csvRows, []string{"Severity", m.SeverityLevel})
	}
	if m.FailureReason != "" {
		csvRows = append(csvRows, []string{"Failure Reason", m.FailureReason})
	}
	csvRows = append(csvRows, []string{""})
	return csvRows
}

func (r *Renderer) addConfidences(csvRows [][]string, m types.ProcessedMetrics) [][]string {
	csvRows = append(csvRows, []string{"CONFIDENCE"})
	csvRows = append(csvRows, []string{"Source", "Confidence", "Level"})
	csvRows = append(csvRows, []string{"Combined", m.Combined.Percent, string(m.Combined.Band)})
	csvRows = append(csvRows, []string{"Fundus", m.Fundus.Percent, string(m.Fundus.Band)})
	csvRows = append(csvRows, []string{"ERG", m.Erg.Percent, string(m.Erg.Band)})
	csvRows = append(csvRows, []string{""})
	return csvRows
}

func (r *Renderer) addInputs(csvRows [][]string, inputs []types.InputDetail) [][]string {
	csvRows = append(csvRows, []string{"INPUT DATA"})
	csvRows = append(csvRows, []string{"Modality", "Record ID", "File", "Quality"})
	for _, in := range inputs {
		if in.Missing {
			csvRows = append(csvRows, []string{in.Modality, in.RecordID, "(deleted)", ""})
			continue
		}
		quality := "N/A"
		if in.QualityScore != nil {
			quality = fmt.Sprintf("%.1f%%", *in.QualityScore*100)
		}
		csvRows = append(csvRows, []string{in.Modality, in.RecordID, in.FileName, quality})
	}
	csvRows = append(csvRows, []string{""})
	return csvRows
}

func (r *Renderer) addModelDetails(csvRows [][]string, m types.ProcessedMetrics) [][]string {
	if m.Details == nil {
		return csvRows
	}
	d := m.Details
	csvRows = append(csvRows, []string{"MODEL DETAILS"})
	csvRows = append(csvRows, []string{"Feature", "Value"})
	csvRows = append(csvRows, []string{"Optic Disc Detected", fmt.Sprintf("%t", d.CNNFeatures.OpticDisc)})
	csvRows = append(csvRows, []string{"Macula Detected", fmt.Sprintf("%t", d.CNNFeatures.Macula)})
	csvRows = append(csvRows, []string{"Vessel Clarity", fmt.Sprintf("%.2f", d.CNNFeatures.Vessel)})
	csvRows = append(csvRows, []string{"A-Wave Amplitude", fmt.Sprintf("%.1f", d.MLPFeatures.AWave)})
	csvRows = append(csvRows, []string{"B-Wave Amplitude", fmt.Sprintf("%.1f", d.MLPFeatures.BWave)})
	csvRows = append(csvRows, []string{"Signal Integrity", fmt.Sprintf("%.2f", d.MLPFeatures.SignalIntegrity)})
	csvRows = append(csvRows, []string{"Fusion Weights", fmt.Sprintf("fundus %.1f / erg %.1f", d.FusionWeights.Fundus, d.FusionWeights.Erg)})
	csvRows = append(csvRows, []string{"Model Versions", fmt.Sprintf("cnn %s, mlp %s, fusion %s",
		d.ModelVersions.CNN, d.ModelVersions.MLP, d.ModelVersions.Fusion)})
	csvRows = append(csvRows, []string{""})
	return csvRows
}

func (r *Renderer) convertRowsToCSV(csvRows [][]string) (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	for _, row := range csvRows {
		if err := writer.Write(row); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV writer: %w", err)
	}

	return buf.String(), nil
}
