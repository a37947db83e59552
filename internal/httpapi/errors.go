package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"

	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/pipeline"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Hint      string `json:"hint,omitempty"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// StatusFor maps an error to its HTTP status and error code.
func StatusFor(err error) (int, string) {
	if errors.Is(err, pipeline.ErrRunInProgress) {
		return http.StatusConflict, "run_in_progress"
	}
	kind := domain.ErrorKind(err)
	switch kind {
	case "invalid_input":
		return http.StatusBadRequest, kind
	case "illegal_transition":
		return http.StatusConflict, kind
	case "daily_limit":
		return http.StatusTooManyRequests, kind
	case "not_found":
		return http.StatusNotFound, kind
	case "collaborator":
		return http.StatusBadGateway, kind
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	var e APIError
	e.Error.Code = code
	e.Error.Message = err.Error()
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		e.Error.Hint = hints[0]
	}
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}
