package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestObservabilityRecordsRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs := NewObservability(ObservabilityConfig{Registerer: registry}, nil)
	handler := obs.Middleware("rpc")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/rpc", nil))
	if res.Code != http.StatusTeapot {
		t.Fatalf("unexpected status %d", res.Code)
	}
	if res.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var counted float64
	for _, family := range families {
		if family.GetName() != "sente_http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			counted += metric.GetCounter().GetValue()
		}
	}
	if counted != 1 {
		t.Fatalf("expected one recorded request, got %v", counted)
	}

	again := NewObservability(ObservabilityConfig{Registerer: registry}, nil)
	if again.requests != obs.requests {
		t.Fatalf("re-registering must reuse the existing collectors")
	}
}

func TestCORS(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/rpc", nil)
	req.Header.Set("Origin", "https://app.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent || res.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("unexpected preflight response %d %v", res.Code, res.Header())
	}

	req = httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unlisted origin must not be allowed")
	}
}
