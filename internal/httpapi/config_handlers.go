package httpapi

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/events"
)

type ConfigHandler struct {
	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string
	LoadCfg     func() (config.Config, error)
	// Reload swaps the orchestrator onto the saved config.
	Reload func(config.Config) error
	Events events.Publisher
	Log    *zap.SugaredLogger
}

func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cur := h.CfgVal.Load().(config.Config)
	writeJSON(w, cur)
}

func (h ConfigHandler) Put(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var incoming config.Config
	if err := dec.Decode(&incoming); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_input", "invalid JSON: "+err.Error())
		return
	}
	if dec.More() {
		WriteError(w, r, http.StatusBadRequest, "invalid_input", "invalid JSON: trailing data")
		return
	}

	normalized, vr := config.NormalizeAndValidate(incoming)
	if !vr.OK() {
		// structured errors so a UI can list them
		WriteJSON(w, http.StatusBadRequest, vr)
		return
	}

	if err := config.SaveAtomic(h.UserCfgPath, normalized); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	saved, err := h.load()
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "saved but reload failed: "+err.Error())
		return
	}
	if h.Reload != nil {
		if err := h.Reload(saved); err != nil {
			WriteError(w, r, http.StatusInternalServerError, "internal_error", "saved but reload failed: "+err.Error())
			return
		}
	}
	h.CfgVal.Store(saved)
	h.Log.Infow("config updated", "path", h.UserCfgPath, "request_id", RequestIDFrom(r.Context()),
		"warnings", len(vr.Warnings))
	if h.Events != nil {
		h.Events.Publish(events.MakeEvent(RequestIDFrom(r.Context()), events.TypeConfigUpdated, 1, map[string]any{
			"path":     h.UserCfgPath,
			"warnings": vr.Warnings,
		}))
	}
	writeJSON(w, saved)
}

func (h ConfigHandler) load() (config.Config, error) {
	if h.LoadCfg != nil {
		return h.LoadCfg()
	}
	return config.Load(h.UserCfgPath)
}

func (h ConfigHandler) Path(w http.ResponseWriter, r *http.Request) {
	abs, _ := filepath.Abs(h.UserCfgPath)
	writeJSON(w, map[string]any{"path": abs})
}

func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	cur := h.CfgVal.Load().(config.Config)
	_, vr := config.NormalizeAndValidate(cur)
	writeJSON(w, vr)
}
