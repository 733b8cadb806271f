package v1

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	api "github.com/retinalab/retina-dashboard/api/v1"
	"github.com/retinalab/retina-dashboard/internal/handlers/validator"
	"github.com/retinalab/retina-dashboard/internal/service"
	"github.com/retinalab/retina-dashboard/pkg/requestid"
)

func (h *ServiceHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch err.(type) {
	case *validator.ErrValidation, *service.ErrInvalidInput, *service.ErrUnsupportedFile,
		*service.ErrFileCorrupted, *service.ErrRecordNotReady, *service.ErrConsentRequired:
		status = http.StatusBadRequest
	case *service.ErrFileTooLarge:
		status = http.StatusRequestEntityTooLarge
	case *service.ErrResourceNotFound:
		status = http.StatusNotFound
	case *service.ErrProcessingConflict:
		status = http.StatusConflict
	case *service.ErrServiceUnavailable:
		status = http.StatusServiceUnavailable
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
			break
		}
		h.log.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "request_id", requestid.FromRequest(r), "error", err)
		message = "internal server error"
	}

	h.reply(w, r, status, api.ErrorReply{Error: message, RequestId: requestIDPtr(r)})
}

func (h *ServiceHandler) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	h.reply(w, r, http.StatusBadRequest, api.ErrorReply{Error: message, RequestId: requestIDPtr(r)})
}

func (h *ServiceHandler) reply(w http.ResponseWriter, r *http.Request, status int, v render.Renderer) {
	render.Status(r, status)
	_ = render.Render(w, r, v)
}

func requestIDPtr(r *http.Request) *string {
	id := requestid.FromRequest(r)
	if id == "" {
		return nil
	}
	return &id
}
