package httpadapter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kirillkom/media-search/internal/config"
	"github.com/kirillkom/media-search/internal/core/ports"
	"github.com/kirillkom/media-search/internal/observability/metrics"
)

const serviceName = "api"

// FileOpener streams stored blobs for the /files route.
type FileOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type Services struct {
	Ingest    ports.AssetIngestor
	Catalog   ports.AssetCatalog
	Extract   ports.ExtractionService
	Search    ports.SearchService
	Lifecycle ports.LifecycleService
	Files     FileOpener
}

type Router struct {
	cfg      config.Config
	svc      Services
	metrics  *metrics.HTTPServerMetrics
	validate *validator.Validate
	logger   *slog.Logger
}

func NewRouter(cfg config.Config, svc Services, httpMetrics *metrics.HTTPServerMetrics) *Router {
	return &Router{
		cfg:      cfg,
		svc:      svc,
		metrics:  httpMetrics,
		validate: newValidator(),
		logger:   slog.Default(),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openapiDocument)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /assets", rt.uploadAsset)
	mux.HandleFunc("GET /assets", rt.listAssets)
	mux.HandleFunc("POST /assets/bulk-delete", rt.bulkDelete)
	mux.HandleFunc("GET /assets/{id}", rt.getAsset)
	mux.HandleFunc("GET /assets/{id}/captions", rt.listCaptions)
	mux.HandleFunc("GET /assets/{id}/status", rt.assetStatus)
	mux.HandleFunc("POST /assets/{id}/extract", rt.extractAsset)
	mux.HandleFunc("GET /search", rt.search)
	mux.HandleFunc("GET /files/{key...}", rt.downloadFile)

	var handler http.Handler = mux
	handler = backpressureMiddleware(
		handler,
		rt.cfg.APIBackpressureMaxInFlight,
		time.Duration(rt.cfg.APIBackpressureWaitMillis)*time.Millisecond,
	)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openapiDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapiSpec)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
