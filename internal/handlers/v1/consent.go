package v1

import (
	"net/http"

	"github.com/go-chi/render"
	api "github.com/retinalab/retina-dashboard/api/v1"
	"github.com/retinalab/retina-dashboard/internal/auth"
	"github.com/retinalab/retina-dashboard/internal/handlers/v1/mappers"
)

// (POST /api/v1/consent)
func (h *ServiceHandler) GrantConsent(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	var req api.ConsentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.badRequest(w, r, "invalid request body")
		return
	}

	if err := h.consentSrv.Grant(r.Context(), user.ID, mappers.ConsentFormFromApi(req)); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// (DELETE /api/v1/consent)
func (h *ServiceHandler) WithdrawConsent(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())
	h.consentSrv.Withdraw(r.Context(), user.ID)
	w.WriteHeader(http.StatusNoContent)
}

// (POST /api/v1/chat)
func (h *ServiceHandler) Chat(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	var req api.ChatRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.badRequest(w, r, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	reply, err := h.chatSrv.Chat(r.Context(), user.ID, mappers.ChatFormFromApi(req))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.reply(w, r, http.StatusOK, api.ChatReply{Message: reply})
}
