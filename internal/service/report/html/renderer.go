package html

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/retinalab/retina-dashboard/internal/service/report/types"
)

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{tmpl: template.Must(template.New("report").Funcs(template.FuncMap{
		"percent": func(v *float64) string {
			if v == nil {
				return "N/A"
			}
			return fmt.Sprintf("%.1f%%", *v*100)
		},
		"bandClass": func(b types.ConfidenceBand) string {
			switch b {
			case types.ConfidenceHigh:
				return "high"
			case types.ConfidenceModerate:
				return "moderate"
			default:
				return "low"
			}
		},
	}).Parse(reportTemplate))}
}

func (r *Renderer) SupportedFormat() types.ReportFormat {
	return types.ReportFormatHTML
}

func (r *Renderer) ContentType() string {
	return "text/html; charset=utf-8"
}

func (r *Renderer) Render(data *types.ReportData) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute report template: %w", err)
	}
	return buf.String(), nil
}

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Color Vision Analysis Report</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #1f2937; }
table { border-collapse: collapse; margin-bottom: 1.5rem; }
td, th { border: 1px solid #d1d5db; padding: 0.4rem 0.8rem; text-align: left; }
.high { color: #16a34a; } .moderate { color: #ca8a04; } .low { color: #dc2626; }
.notice { font-size: 0.85rem; color: #6b7280; }
</style>
</head>
<body>
<h1>Color Vision Analysis Report</h1>
<p>Generated {{ .Timestamps.Generated }} at {{ .Timestamps.GeneratedTime }}</p>

<h2>Summary</h2>
<table>
<tr><th>Analysis ID</th><td><code>{{ .Metrics.AnalysisID }}</code></td></tr>
<tr><th>Status</th><td>{{ .Metrics.Status }}</td></tr>
<tr><th>Analysis Date</th><td>{{ .Timestamps.AnalysisDate }}</td></tr>
{{- if .Metrics.ColorBlindnessType }}
<tr><th>Color Vision Type</th><td>{{ .Metrics.ColorBlindnessType }}</td></tr>
<tr><th>Severity</th><td>{{ .Metrics.SeverityLevel }}</td></tr>
{{- end }}
{{- if .Metrics.FailureReason }}
<tr><th>Failure Reason</th><td>{{ .Metrics.FailureReason }}</td></tr>
{{- end }}
</table>

<h2>Confidence</h2>
<table>
<tr><th>Source</th><th>Confidence</th></tr>
<tr><td>Combined</td><td class="{{ bandClass .Metrics.Combined.Band }}">{{ .Metrics.Combined.Percent }}</td></tr>
<tr><td>Fundus</td><td class="{{ bandClass .Metrics.Fundus.Band }}">{{ .Metrics.Fundus.Percent }}</td></tr>
<tr><td>ERG</td><td class="{{ bandClass .Metrics.Erg.Band }}">{{ .Metrics.Erg.Percent }}</td></tr>
</table>

<h2>Input Data</h2>
<table>
<tr><th>Modality</th><th>File</th><th>Quality</th></tr>
{{- range .Inputs }}
<tr><td>{{ .Modality }}</td>{{ if .Missing }}<td colspan="2">deleted</td>{{ else }}<td>{{ .FileName }}</td><td>{{ percent .QualityScore }}</td>{{ end }}</tr>
{{- end }}
</table>

{{- with .Metrics.Details }}
<h2>Model Versions</h2>
<p>CNN {{ .ModelVersions.CNN }}, MLP {{ .ModelVersions.MLP }}, fusion {{ .ModelVersions.Fusion }}</p>
{{- end }}

<p class="notice">This report is a screening aid and not a diagnosis. Consult an ophthalmologist.</p>
</body>
</html>
`
