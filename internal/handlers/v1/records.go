package v1

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	api "github.com/retinalab/retina-dashboard/api/v1"
	"github.com/retinalab/retina-dashboard/internal/auth"
	"github.com/retinalab/retina-dashboard/internal/handlers/v1/mappers"
	"github.com/retinalab/retina-dashboard/internal/service"
	"github.com/retinalab/retina-dashboard/internal/store/model"
)

const (
	multipartMemory = 32 << 20
	// multipart framing on top of the file itself
	multipartOverhead = 1 << 20
)

func maxUploadSize(modality model.Modality) int64 {
	if modality == model.ModalityErg {
		return service.MaxErgSize
	}
	return service.MaxFundusSize
}

// (POST /api/v1/{modality}/upload)
func (h *ServiceHandler) Upload(modality model.Modality) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.MustHaveUser(r.Context())

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize(modality)+multipartOverhead)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.respondError(w, r, service.NewErrFileTooLarge("file", maxUploadSize(modality)))
				return
			}
			h.badRequest(w, r, fmt.Sprintf("failed to parse multipart form: %v", err))
			return
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()

		file, header, err := r.FormFile("file")
		if err != nil {
			h.badRequest(w, r, "No file provided")
			return
		}
		defer file.Close()

		upload, err := h.uploadSrv.Upload(r.Context(), user.ID, modality, service.FileUpload{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Content:     file,
		})
		if err != nil {
			h.respondError(w, r, err)
			return
		}

		h.reply(w, r, http.StatusCreated, mappers.UploadReplyToApi(upload))
	}
}

// (POST /api/v1/{modality}/process)
func (h *ServiceHandler) Process(modality model.Modality) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.MustHaveUser(r.Context())

		var req api.ProcessRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			h.badRequest(w, r, "invalid request body")
			return
		}

		form := mappers.ProcessFormFromApi(req)
		if err := h.validator.Struct(form); err != nil {
			h.respondError(w, r, err)
			return
		}

		ack, err := h.uploadSrv.Process(r.Context(), user.ID, modality, uuid.MustParse(form.RecordID))
		if err != nil {
			h.respondError(w, r, err)
			return
		}

		message := "Processing started"
		if modality == model.ModalityErg {
			message = "ERG processing started"
		}
		if !ack.Started {
			message = "Processing already in progress"
		}
		h.reply(w, r, http.StatusAccepted, api.ProcessReply{Success: true, Message: message})
	}
}

// (GET /api/v1/{modality})
func (h *ServiceHandler) ListRecords(modality model.Modality) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.MustHaveUser(r.Context())

		uploads, err := h.uploadSrv.List(r.Context(), user.ID, modality, r.URL.Query().Get("status"))
		if err != nil {
			h.respondError(w, r, err)
			return
		}

		render.JSON(w, r, mappers.RecordListToApi(uploads))
	}
}

// (GET /api/v1/{modality}/{id})
func (h *ServiceHandler) GetRecord(modality model.Modality) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.MustHaveUser(r.Context())

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			h.badRequest(w, r, "invalid record id")
			return
		}

		upload, err := h.uploadSrv.Get(r.Context(), user.ID, modality, id)
		if err != nil {
			h.respondError(w, r, err)
			return
		}

		h.reply(w, r, http.StatusOK, mappers.RecordToApi(*upload))
	}
}

// (DELETE /api/v1/{modality}/delete)
func (h *ServiceHandler) Delete(modality model.Modality) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.MustHaveUser(r.Context())

		var req api.DeleteRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			h.badRequest(w, r, "invalid request body")
			return
		}

		form := mappers.DeleteFormFromApi(req)
		if form.RecordID == "" && form.URL == "" {
			h.badRequest(w, r, "No URL provided")
			return
		}
		if err := h.validator.Struct(form); err != nil {
			h.respondError(w, r, err)
			return
		}

		if err := h.uploadSrv.Delete(r.Context(), user.ID, modality, form.ToService()); err != nil {
			h.respondError(w, r, err)
			return
		}

		h.reply(w, r, http.StatusOK, api.SuccessReply{Success: true})
	}
}
