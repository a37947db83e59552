package httpapi

import (
	"net/http"
	"sync/atomic"

	"jobpipe-engine/internal/config"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
	Set    func(ec config.Email, password string) error
}

type setIMAPPasswordReq struct {
	Password string `json:"password"`
}

func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	var req setIMAPPasswordReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := h.Set(cfg.Email, req.Password); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
