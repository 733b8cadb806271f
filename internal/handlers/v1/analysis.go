package v1

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	api "github.com/retinalab/retina-dashboard/api/v1"
	"github.com/retinalab/retina-dashboard/internal/auth"
	"github.com/retinalab/retina-dashboard/internal/handlers/v1/mappers"
	"github.com/retinalab/retina-dashboard/internal/service"
)

// (POST /api/v1/analysis/multimodal)
func (h *ServiceHandler) StartMultimodalAnalysis(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	var req api.MultimodalRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.badRequest(w, r, "invalid request body")
		return
	}

	form := mappers.MultimodalFormFromApi(req)
	if err := h.validator.Struct(form); err != nil {
		h.respondError(w, r, err)
		return
	}

	analysis, err := h.analysisSrv.Start(r.Context(), user.ID, uuid.MustParse(form.FundusID), uuid.MustParse(form.ErgID))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.reply(w, r, http.StatusAccepted, api.MultimodalReply{
		Success:    true,
		AnalysisId: analysis.ID.String(),
		Message:    "Multimodal analysis started",
	})
}

// (GET /api/v1/analysis)
func (h *ServiceHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	analyses, err := h.analysisSrv.List(r.Context(), user.ID, r.URL.Query().Get("status"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.JSON(w, r, mappers.AnalysisListToApi(analyses))
}

// (GET /api/v1/analysis/{id})
func (h *ServiceHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.badRequest(w, r, "invalid analysis id")
		return
	}

	analysis, err := h.analysisSrv.Get(r.Context(), user.ID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.reply(w, r, http.StatusOK, mappers.AnalysisToApi(*analysis))
}

type reportQuery struct {
	Format string `validate:"report_format"`
}

// (GET /api/v1/analysis/{id}/report)
func (h *ServiceHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.badRequest(w, r, "invalid analysis id")
		return
	}

	query := reportQuery{Format: r.URL.Query().Get("format")}
	if query.Format == "" {
		query.Format = string(service.ReportFormatCSV)
	}
	if err := h.validator.Struct(query); err != nil {
		h.badRequest(w, r, fmt.Sprintf("unsupported report format %q", query.Format))
		return
	}

	report, err := h.analysisSrv.Report(r.Context(), user.ID, id, service.ReportFormat(query.Format))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report.Content))
}

// (GET /api/v1/export)
func (h *ServiceHandler) ExportData(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	export, err := h.analysisSrv.Export(r.Context(), user.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Add("Content-Disposition", "attachment")
	h.reply(w, r, http.StatusOK, mappers.ExportToApi(export))
}
