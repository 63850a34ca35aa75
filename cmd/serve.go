package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/equity-cli/internal/brief"
	"github.com/sells-group/equity-cli/internal/model"
	"github.com/sells-group/equity-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for brief runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		p, err := buildPipeline(st, cfg.Fixtures.Enabled)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(ctx, st, p),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = shutdownServer(srv, 10*time.Second)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// shutdownServer drains in-flight requests with a fresh deadline. The
// signal context is already canceled by the time shutdown starts, so it
// cannot be used for the drain.
func shutdownServer(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// newRouter builds the API surface: health, run history, stored briefs,
// and run submission. Submitted runs use the server's lifetime context so
// they survive the originating request.
func newRouter(ctx context.Context, st store.Store, p *brief.Pipeline) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		runs, err := st.ListRuns(req.Context(), store.RunFilter{
			Status: model.RunStatus(req.URL.Query().Get("status")),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if runs == nil {
			runs = []model.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		run, err := st.GetRun(req.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		result, err := st.GetRunResult(req.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"run": run, "result": result})
	})

	r.Get("/runs/{id}/briefs/{symbol}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		symbol := model.CanonicalSymbol(chi.URLParam(req, "symbol"))
		b, err := st.GetBrief(req.Context(), id, symbol)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if b == nil {
			writeError(w, http.StatusNotFound, eris.Errorf("no brief for %s in run %s", symbol, id))
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(b.Markdown))
	})

	r.Post("/runs", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Symbols []string `json:"symbols"`
			Mode    string   `json:"mode"`
			Focus   string   `json:"focus"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
			return
		}
		if len(body.Symbols) == 0 {
			writeError(w, http.StatusBadRequest, eris.New("symbols is required"))
			return
		}
		mode := model.RunModeIsolate
		if body.Mode == string(model.RunModeStrict) {
			mode = model.RunModeStrict
		}

		// The run outlives the request; results land in the store.
		go func() {
			result, err := p.Run(ctx, body.Symbols, mode, body.Focus)
			if err != nil {
				zap.L().Error("api run failed",
					zap.Strings("symbols", body.Symbols), zap.Error(err))
				return
			}
			saveBriefs(ctx, st, result)
			zap.L().Info("api run complete",
				zap.String("run_id", result.RunID),
				zap.Int("records", len(result.Records)),
				zap.Int("failures", len(result.Failures)),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":  "accepted",
			"symbols": body.Symbols,
			"mode":    string(mode),
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
