package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/cibcore/pkg/cib"
	"github.com/cuemby/cibcore/pkg/log"
	"github.com/cuemby/cibcore/pkg/manager"
	"github.com/cuemby/cibcore/pkg/metrics"
	"github.com/cuemby/cibcore/pkg/schema"
	"github.com/spf13/cobra"
)

// maxDocumentSize bounds request bodies accepted by the documents endpoint
const maxDocumentSize = 16 << 20

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve metrics, health and document admission over HTTP",
	Long: `Run a long-lived manager. The schema catalog is rebuilt on SIGHUP;
a failed rebuild keeps the previous catalog.

Endpoints:
  GET  /metrics         Prometheus metrics
  GET  /health          Liveness
  GET  /ready           Readiness
  GET  /v1/schemas      Known schema versions
  POST /v1/documents    Accept a document (?upgrade=true to upgrade)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("listen") {
			cfg.Server.ListenAddr, _ = cmd.Flags().GetString("listen")
		}
		noStore, _ := cmd.Flags().GetBool("no-store")
		interval, _ := cmd.Flags().GetDuration("collect-interval")

		mgr, err := newManager(!noStore)
		if err != nil {
			return err
		}

		collector := manager.NewMetricsCollector(mgr, interval)
		collector.Start()

		broker := mgr.GetEventBroker()
		sub := broker.Subscribe()
		eventsDone := make(chan struct{})
		go func() {
			defer close(eventsDone)
			logEvents(sub, log.WithComponent("events"))
		}()

		server := &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           newServeMux(mgr),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()

		log.Logger.Info().
			Str("addr", cfg.Server.ListenAddr).
			Strs("schemas", mgr.KnownSchemas()).
			Msg("cibctl serving")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigCh)

		var runErr error
	loop:
		for {
			select {
			case sig := <-sigCh:
				if sig == syscall.SIGHUP {
					if err := mgr.Rebuild(); err != nil {
						log.Logger.Error().Err(err).Msg("Schema catalog rebuild failed, keeping previous catalog")
					}
					continue
				}
				log.Logger.Info().Str("signal", sig.String()).Msg("Shutting down")
				break loop
			case runErr = <-errCh:
				break loop
			}
		}

		// Shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Logger.Warn().Err(err).Msg("HTTP server shutdown")
		}
		collector.Stop()
		broker.Unsubscribe(sub)
		<-eventsDone
		if err := mgr.Shutdown(); err != nil {
			return fmt.Errorf("failed to shutdown: %w", err)
		}
		return runErr
	},
}

func newServeMux(mgr *manager.Manager) *http.ServeMux {
	health := metrics.DefaultHealth()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", health.HealthHandler())
	mux.HandleFunc("/ready", health.ReadyHandler())
	mux.HandleFunc("/v1/schemas", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, schemaEntries(mgr.Catalog()))
	})
	mux.HandleFunc("/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handleDocument(mgr, w, r)
	})
	return mux
}

// admissionResponse is the JSON body returned for an accepted document
type admissionResponse struct {
	Schema   string   `json:"schema"`
	Declared string   `json:"declared"`
	Path     []string `json:"path"`
	Steps    int      `json:"steps"`
	Revision string   `json:"revision,omitempty"`
	Document string   `json:"document"`
}

type errorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func handleDocument(mgr *manager.Manager, w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	doc, err := cib.Parse(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var adm *manager.Admission
	if r.URL.Query().Get("upgrade") == "true" {
		adm, err = mgr.UpgradeDocument(doc)
	} else {
		adm, err = mgr.AcceptDocument(doc)
	}
	if err != nil {
		resp := errorResponse{Error: err.Error()}
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems {
				resp.Problems = append(resp.Problems, p.String())
			}
		}
		status := http.StatusUnprocessableEntity
		if !errors.Is(err, schema.ErrNoMigrationPath) && !errors.Is(err, schema.ErrValidationFailed) &&
			!errors.Is(err, schema.ErrUnsupportedVersion) && !errors.Is(err, schema.ErrNotFound) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, resp)
		return
	}

	resp := admissionResponse{
		Schema:   adm.Schema.Name,
		Declared: adm.Declared,
		Path:     adm.Path,
		Steps:    adm.Steps,
		Document: adm.Document.String(),
	}
	if adm.Revision != nil {
		resp.Revision = adm.Revision.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().String("listen", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().Bool("no-store", false, "Do not persist accepted documents")
	serveCmd.Flags().Duration("collect-interval", manager.DefaultCollectInterval, "Gauge refresh interval")
}
