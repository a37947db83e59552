package httpapi

import (
	"net"
	"net/http"
)

type DBHandler struct {
	Store Queries
}

// Checkpoint flushes the sqlite WAL; loopback callers only.
func (h DBHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
		return
	}

	if err := h.Store.Checkpoint(r.Context()); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
