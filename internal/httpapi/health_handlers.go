package httpapi

import (
	"net/http"
	"time"

	"jobpipe-engine/internal/events"
)

type HealthHandler struct {
	Hub *events.Hub
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"ok":   true,
		"time": time.Now().UTC(),
	}
	if h.Hub != nil {
		out["sse_clients"] = h.Hub.Clients()
		out["events_dropped"] = h.Hub.Dropped()
	}
	writeJSON(w, out)
}
