package httpadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/media-search/internal/config"
)

func TestOpenAPIDocumentsEveryRoute(t *testing.T) {
	doc, err := LoadOpenAPI(context.Background())
	if err != nil {
		t.Fatalf("LoadOpenAPI() error = %v", err)
	}

	routes := map[string][]string{
		"/healthz":              {http.MethodGet},
		"/assets":               {http.MethodGet, http.MethodPost},
		"/assets/bulk-delete":   {http.MethodPost},
		"/assets/{id}":          {http.MethodGet},
		"/assets/{id}/captions": {http.MethodGet},
		"/assets/{id}/status":   {http.MethodGet},
		"/assets/{id}/extract":  {http.MethodPost},
		"/search":               {http.MethodGet},
		"/files/{key}":          {http.MethodGet},
	}
	for path, methods := range routes {
		item := doc.Paths.Find(path)
		if item == nil {
			t.Fatalf("path %s is not documented", path)
		}
		for _, method := range methods {
			if item.GetOperation(method) == nil {
				t.Fatalf("%s %s is not documented", method, path)
			}
		}
	}
}

func TestOpenAPIEndpointServesDocument(t *testing.T) {
	env := newTestEnv(config.Config{}, nil)
	res := serve(env.handler, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "openapi: 3") {
		t.Fatalf("unexpected document body")
	}
}
