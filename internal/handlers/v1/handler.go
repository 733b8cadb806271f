package v1

import (
	"github.com/go-chi/chi/v5"
	"github.com/retinalab/retina-dashboard/internal/handlers/validator"
	"github.com/retinalab/retina-dashboard/internal/service"
	"github.com/retinalab/retina-dashboard/internal/store/model"
	"go.uber.org/zap"
)

const (
	msgBothIDsRequired = "Both fundus ID and ERG ID required"
	msgRecordRequired  = "Record ID required"
)

type ServiceHandler struct {
	uploadSrv   *service.UploadService
	analysisSrv *service.AnalysisService
	consentSrv  *service.ConsentService
	chatSrv     *service.ChatService
	validator   *validator.Validator
	log         *zap.SugaredLogger
}

func NewServiceHandler(uploadSrv *service.UploadService, analysisSrv *service.AnalysisService, consentSrv *service.ConsentService, chatSrv *service.ChatService) *ServiceHandler {
	v := validator.NewValidator()
	v.Register(validator.NewRecordValidationRules()...)
	v.Register(validator.NewChatValidationRules()...)
	v.Register(validator.NewReportValidationRules()...)
	v.WithMessage("MultimodalForm.FundusID", msgBothIDsRequired).
		WithMessage("MultimodalForm.ErgID", msgBothIDsRequired).
		WithMessage("ProcessForm.RecordID", msgRecordRequired).
		WithMessage("ChatRequest.Message", "Message is required")

	return &ServiceHandler{
		uploadSrv:   uploadSrv,
		analysisSrv: analysisSrv,
		consentSrv:  consentSrv,
		chatSrv:     chatSrv,
		validator:   v,
		log:         zap.S().Named("handler"),
	}
}

// Routes mounts the authenticated endpoints on r.
func (h *ServiceHandler) Routes(r chi.Router) {
	r.Route("/fundus", h.recordRoutes(model.ModalityFundus))
	r.Route("/erg", h.recordRoutes(model.ModalityErg))

	r.Route("/analysis", func(r chi.Router) {
		r.Post("/multimodal", h.StartMultimodalAnalysis)
		r.Get("/", h.ListAnalyses)
		r.Get("/{id}", h.GetAnalysis)
		r.Get("/{id}/report", h.DownloadReport)
	})

	r.Post("/consent", h.GrantConsent)
	r.Delete("/consent", h.WithdrawConsent)
	r.Post("/chat", h.Chat)
	r.Get("/export", h.ExportData)
}

func (h *ServiceHandler) recordRoutes(modality model.Modality) func(r chi.Router) {
	return func(r chi.Router) {
		r.Post("/upload", h.Upload(modality))
		r.Post("/process", h.Process(modality))
		r.Delete("/delete", h.Delete(modality))
		r.Get("/", h.ListRecords(modality))
		r.Get("/{id}", h.GetRecord(modality))
	}
}
