// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package restapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/muonpi/cluster/internal/middleware"
	"github.com/muonpi/cluster/internal/muon"
)

func TestRouter_HealthzReturnsOK(t *testing.T) {
	h := NewHandler(&fakeRegistry{}, &fakeAnalyzer{matrix: muon.NewUpperMatrix[muon.PairHistogram]()}, nil, middleware.NewPerformanceMonitor(100))
	router := NewRouter(h, DefaultMiddlewareConfig(), middleware.NewPerformanceMonitor(100))

	req := httptest.NewRequest(http.MethodGet, "/healthz/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_MetricsServesPrometheusFormat(t *testing.T) {
	h := NewHandler(&fakeRegistry{}, &fakeAnalyzer{matrix: muon.NewUpperMatrix[muon.PairHistogram]()}, nil, middleware.NewPerformanceMonitor(100))
	router := NewRouter(h, DefaultMiddlewareConfig(), middleware.NewPerformanceMonitor(100))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
