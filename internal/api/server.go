package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/coingecko"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/kit"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/market"
)

// ChartSource serves resampled chart series; the aggregator adapter
// satisfies it.
type ChartSource interface {
	ChartPoints(ctx context.Context, key coingecko.ChartPointKey) ([]market.ChartPoint, error)
}

type Server struct {
	kit        *kit.Kit
	charts     ChartSource
	currency   string
	httpServer *http.Server
	apiKey     string
	log        *zap.SugaredLogger
}

func NewServer(k *kit.Kit, charts ChartSource, currency string, port int, apiKey, corsOrigin string, log *zap.SugaredLogger) *Server {
	s := &Server{
		kit:      k,
		charts:   charts,
		currency: currency,
		apiKey:   apiKey,
		log:      log,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/markets", s.handleMarkets)
	mux.HandleFunc("GET /v1/markets/{coinId}", s.handleMarketInfo)
	mux.HandleFunc("GET /v1/coins/{coinId}/chart", s.handleChart)
	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)

	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	handler := s.authMiddleware(corsMiddleware(mux, corsOrigin))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.log.Infof("[API] REST API server started on http://localhost%s", s.httpServer.Addr)
	if s.apiKey != "" {
		s.log.Infof("[API] Authentication: enabled (Bearer token)")
	} else {
		s.log.Infof("[API] Authentication: disabled (no API_KEY configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
