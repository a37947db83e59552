package httpapi

import (
	"net/http"

	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/pipeline"
)

type QueryHandler struct {
	Pipeline Pipeline
	Store    Queries
}

type statusResponse struct {
	TotalJobs    int                   `json:"total_jobs"`
	StatusCounts map[domain.Status]int `json:"status_counts"`
	Run          pipeline.RunStatus    `json:"run"`
}

func (h QueryHandler) Status(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Store.StatusCounts(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	total, err := h.Store.TotalJobs(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, statusResponse{TotalJobs: total, StatusCounts: counts, Run: h.Pipeline.Status()})
}

// Shortlist returns the top shortlisted records by score, ?limit=N (10).
func (h QueryHandler) Shortlist(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "limit", 10)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	recs, err := h.Store.TopShortlisted(r.Context(), n)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if recs == nil {
		recs = []domain.JobRecord{}
	}
	writeJSON(w, recs)
}

// Audit returns the newest transitions, ?limit=N (50), or the full history
// of one record with ?job_id=.
func (h QueryHandler) Audit(w http.ResponseWriter, r *http.Request) {
	jobID, err := queryInt(r, "job_id", 0)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var trs []domain.Transition
	if jobID > 0 {
		trs, err = h.Store.JobTransitions(r.Context(), int64(jobID))
	} else {
		n, qerr := queryInt(r, "limit", 50)
		if qerr != nil {
			writeErr(w, r, qerr)
			return
		}
		trs, err = h.Store.RecentTransitions(r.Context(), n)
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if trs == nil {
		trs = []domain.Transition{}
	}
	writeJSON(w, trs)
}

func (h QueryHandler) Scheduler(w http.ResponseWriter, r *http.Request) {
	states, err := h.Pipeline.SchedulerStates(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, states)
}

// Report serves the daily report, ?top=N&recent=N.
func (h QueryHandler) Report(w http.ResponseWriter, r *http.Request) {
	top, err := queryInt(r, "top", 10)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	recent, err := queryInt(r, "recent", 20)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	rep, err := h.Pipeline.Report(r.Context(), top, recent)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, rep)
}
