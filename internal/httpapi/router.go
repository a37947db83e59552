package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"jobpipe-engine/internal/logging"
	"jobpipe-engine/internal/secrets"
)

// NewMux returns the raw mux so main() can still attach /shutdown.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()
	pub := d.Events
	if pub == nil && d.Hub != nil {
		pub = d.Hub
	}

	hh := HealthHandler{Hub: d.Hub}
	mux.HandleFunc("GET /health", hh.Health)

	// Queries
	qh := QueryHandler{Pipeline: d.Pipeline, Store: d.Store}
	mux.HandleFunc("GET /status", qh.Status)
	mux.HandleFunc("GET /shortlist", qh.Shortlist)
	mux.HandleFunc("GET /audit", qh.Audit)
	mux.HandleFunc("GET /scheduler", qh.Scheduler)
	mux.HandleFunc("GET /report", qh.Report)

	// Review
	jh := JobsHandler{Pipeline: d.Pipeline, Store: d.Store}
	mux.HandleFunc("GET /jobs/{id}", jh.Get)
	mux.HandleFunc("POST /jobs/{id}/approve", jh.Approve)
	mux.HandleFunc("POST /jobs/{id}/skip", jh.Skip)
	mux.HandleFunc("POST /jobs/{id}/confirm", jh.Confirm)

	ah := ApplicationsHandler{Pipeline: d.Pipeline}
	mux.HandleFunc("GET /applications/followups", ah.FollowUps)
	mux.HandleFunc("POST /applications/{id}/response", ah.Response)

	// Runs
	rh := RunHandler{Pipeline: d.Pipeline}
	mux.HandleFunc("POST /run", rh.Run)
	mux.HandleFunc("GET /run/status", rh.Status)

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
		Reload:      d.Pipeline.Reload,
		Events:      pub,
		Log:         logging.OrNop(d.Log),
	}
	mux.HandleFunc("GET /config", ch.Get)
	mux.HandleFunc("PUT /config", ch.Put)
	mux.HandleFunc("GET /config/path", ch.Path)
	mux.HandleFunc("GET /config/validate", ch.Validate)

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal, Set: d.SetIMAPPassword}
	if sh.Set == nil {
		sh.Set = secrets.SetIMAPPassword
	}
	mux.HandleFunc("POST /api/secrets/imap", sh.SetIMAPPassword)

	// SSE events
	if d.Hub != nil {
		eh := EventsHandler{Hub: d.Hub, Ping: 25 * time.Second}
		mux.HandleFunc("GET /events", eh.ServeSSE)
	}

	dh := DBHandler{Store: d.Store}
	mux.HandleFunc("POST /db/checkpoint", dh.Checkpoint)

	return mux
}

// Handler is NewMux behind the standard middleware chain.
func Handler(d Deps) http.Handler {
	return Wrap(NewMux(d), d.Log)
}

func Wrap(h http.Handler, log *zap.SugaredLogger) http.Handler {
	log = logging.OrNop(log)
	return Chain(h, RequestID, Recover(log), AccessLog(log), Cors)
}
