package httpapi

import (
	"net/http"

	"github.com/cockroachdb/errors"

	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/store"
)

type ApplicationsHandler struct {
	Pipeline Pipeline
}

// FollowUps lists submitted applications without a response after
// ?days=N (7).
func (h ApplicationsHandler) FollowUps(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 7)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	fus, err := h.Pipeline.FollowUps(r.Context(), days)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if fus == nil {
		fus = []store.FollowUp{}
	}
	writeJSON(w, fus)
}

type responseReq struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h ApplicationsHandler) Response(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var req responseReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	st, ok := domain.ParseApplicationStatus(req.Status)
	if !ok {
		writeErr(w, r, errors.Wrapf(domain.ErrInvalidInput, "unknown application status %q", req.Status))
		return
	}
	app, err := h.Pipeline.RecordResponse(r.Context(), id, st, req.Notes)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, app)
}
