package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/httpapi"
	"jobpipe-engine/internal/scheduler"
)

var (
	serveAddrFlag   string
	serveNoSchedule bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run the pipeline on the configured cron schedule",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "listen address (default 127.0.0.1:<app.port>)")
	serveCmd.Flags().BoolVar(&serveNoSchedule, "no-schedule", false, "do not start the cron schedule")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg()

	addr := serveAddrFlag
	if addr == "" {
		addr = fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	}

	mux := httpapi.NewMux(httpapi.Deps{
		Pipeline:    a.orch,
		Store:       a.db,
		Hub:         a.hub,
		Events:      a.pub,
		CfgVal:      a.cfgVal,
		UserCfgPath: a.cfgPath,
		LoadCfg:     func() (config.Config, error) { return loadConfigFile(a.cfgPath) },
		Log:         log.Named("http"),
	})
	srv := &http.Server{
		Handler:           httpapi.Wrap(mux, log.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	token, err := writeShutdownToken(cfg.App.DataDir)
	if err != nil {
		return err
	}
	mux.HandleFunc("POST /shutdown", shutdownHandler(token, srv))

	var cron *scheduler.Scheduler
	if cfg.Schedule.Cron != "" && !serveNoSchedule {
		cron, err = scheduler.New(a.orch, cfg.Schedule, cfg.Location(), log.Named("scheduler"))
		if err != nil {
			return err
		}
		if err := cron.Start(ctx); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", addr)
	}
	log.Infow("engine listening", "addr", "http://"+ln.Addr().String(), "db", cfg.DBPath(), "config", a.cfgPath)

	go func() {
		<-ctx.Done()
		shutdown(srv)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}

	if cron != nil {
		<-cron.Stop().Done()
	}
	waitIdle(a, 30*time.Second)
	log.Infow("engine stopped")
	return nil
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// waitIdle gives a background run started over the API time to finish.
func waitIdle(a *app, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for a.orch.Busy() && time.Now().Before(deadline) {
		time.Sleep(200 * time.Millisecond)
	}
	if a.orch.Busy() {
		log.Warnw("exiting with a run still in progress", "run_id", a.orch.Status().CurrentRun)
	}
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// writeShutdownToken stores a fresh token in <dataDir>/shutdown.token for
// local tooling that stops the engine over HTTP.
func writeShutdownToken(dataDir string) (string, error) {
	token, err := randomToken(16)
	if err != nil {
		return "", errors.Wrap(err, "shutdown token")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create data dir %s", dataDir)
	}
	path := filepath.Join(dataDir, "shutdown.token")
	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return token, nil
}

func shutdownHandler(token string, srv *http.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		got := r.Header.Get("X-Shutdown-Token")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// respond first, then shut down
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("shutting down\n"))
		go shutdown(srv)
	}
}
