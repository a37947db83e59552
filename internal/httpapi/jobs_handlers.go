package httpapi

import (
	"net/http"

	"jobpipe-engine/internal/domain"
)

type JobsHandler struct {
	Pipeline Pipeline
	Store    Queries
}

type jobResponse struct {
	Job     domain.JobRecord    `json:"job"`
	History []domain.Transition `json:"history"`
}

func (h JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	rec, err := h.Store.GetJob(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	hist, err := h.Store.JobTransitions(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, jobResponse{Job: rec, History: hist})
}

// Approve runs the gated apply path for a pending_review record.
func (h JobsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	res, err := h.Pipeline.Approve(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, res)
}

type skipReq struct {
	Reason string `json:"reason"`
}

func (h JobsHandler) Skip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var req skipReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := h.Pipeline.Skip(r.Context(), id, req.Reason); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "id": id, "status": domain.StatusSkipped})
}

// Confirm completes an application that was sent by hand.
func (h JobsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := h.Pipeline.Confirm(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "id": id, "status": domain.StatusSubmitted})
}
