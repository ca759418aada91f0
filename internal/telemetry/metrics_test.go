/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestHandlerExposesTransmissionMetrics(t *testing.T) {
	MinutesTransmittedTotal.WithLabelValues("DCF77").Inc()
	CarrierActive.Set(1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"timesignal_minutes_transmitted_total", "timesignal_carrier_active"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestMetricsMiddlewareRecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/api/v1/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/things/{id}", "418"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/things/7", nil))

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/things/{id}", "418"))
	if after-before != 1 {
		t.Errorf("request counter moved by %v, want 1", after-before)
	}
	if got := testutil.ToFloat64(APIActiveConnections); got != 0 {
		t.Errorf("active connections = %v after request", got)
	}
}

func TestBoolGauge(t *testing.T) {
	if BoolGauge(true) != 1 || BoolGauge(false) != 0 {
		t.Error("BoolGauge mapping wrong")
	}
}

func TestInitTracerDisabled(t *testing.T) {
	tp, err := InitTracer(t.Context(), TracerConfig{Enabled: false}, zerolog.Nop())
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	if err := tp.Shutdown(t.Context()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	_, span := StartSpan(t.Context(), "minute")
	span.End()
}
