package httpapi

import (
	"net/http"

	"jobpipe-engine/internal/pipeline"
)

type RunHandler struct {
	Pipeline Pipeline
}

type runReq struct {
	Stages  []string `json:"stages"`
	DryRun  *bool    `json:"dry_run"`
	Rescore bool     `json:"rescore"`
}

// Run starts a pipeline run in the background and answers 202, or 409 when
// one is already running.
func (h RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req runReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	opts := pipeline.RunOptions{
		Stages:  req.Stages,
		DryRun:  req.DryRun,
		Rescore: req.Rescore,
		Trigger: "api",
	}
	if err := h.Pipeline.Start(r.Context(), opts); err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true, "started": true})
}

func (h RunHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Pipeline.Status())
}
