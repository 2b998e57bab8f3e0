package main

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relay/internal/config"
	"relay/internal/hub"
	"relay/internal/observability/logging"
	"relay/internal/observability/metrics"
	relaymw "relay/internal/observability/middleware"
	"relay/internal/wsconn"

	"signalcore"
)

func main() {
	cfg := config.Load()

	logger := logging.NewLogger(logging.Config{
		ServiceName: "relay",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)
	metrics.MustRegister("relay")

	h, err := hub.New(logger)
	if err != nil {
		logger.Error("failed to generate relay identity", "error", err)
		os.Exit(1)
	}
	logger.Info("relay identity ready", "public_key", h.PublicHex())

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.HandshakeTimeout))
	r.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id", "Sec-WebSocket-Protocol"},
		MaxAge:         300,
	}))
	r.Use(relaymw.WithRequestLogging)
	r.Use(relaymw.WithMetrics)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/{path}", handleUpgrade(h, logger))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("relay listening", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// handleUpgrade serves GET /{path}?role=initiator|responder, where path is
// the lowercase hex of the initiator's permanent public key, the same
// value SaltyRTC clients embed in the relay URL out-of-band.
func handleUpgrade(h *hub.Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		key, err := hex.DecodeString(path)
		if err != nil || len(key) != signalcore.KeySize {
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}
		var permKey [signalcore.KeySize]byte
		copy(permKey[:], key)

		role := r.URL.Query().Get("role")
		if role != "initiator" && role != "responder" {
			http.Error(w, "role must be initiator or responder", http.StatusBadRequest)
			return
		}

		conn, err := wsconn.Accept(w, r)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err, "path", path, "role", role)
			return
		}

		ctx := context.Background()
		go func() {
			defer func() { _ = conn.Close(signalcore.CloseGoingAway) }()
			var runErr error
			if role == "initiator" {
				runErr = h.ServeInitiator(ctx, path, conn, permKey)
			} else {
				runErr = h.ServeResponder(ctx, path, conn)
			}
			if runErr != nil {
				logger.Info("relay session ended", "path", path, "role", role, "error", runErr)
			}
		}()
	}
}
