package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"outbound-caller/internal/auth"
	"outbound-caller/internal/calls"
	"outbound-caller/internal/config"
	"outbound-caller/internal/httpapi"
	"outbound-caller/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/livekit/protocol/livekit"
	"github.com/prometheus/client_golang/prometheus"
)

type stubPlacer struct{ calls int }

func (s *stubPlacer) PlaceCall(ctx context.Context, req calls.CallRequest) (calls.CallResult, error) {
	s.calls++
	return calls.CallResult{RoomName: "outbound-r", Participant: &livekit.SIPParticipantInfo{ParticipantId: "PA_1"}}, nil
}

func newTestEngine(t *testing.T, d routeDeps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if d.metrics != nil {
		r.Use(httpapi.Metrics(d.metrics))
	}
	registerRoutes(r, d)
	return r
}

func serve(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

const placeBody = `{"phone_number":"+15551234567","caller_name":"a","agent_name":"b"}`

func TestRoutes_PublicEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := newTestEngine(t, routeDeps{
		handlers: httpapi.Handlers{Calls: &stubPlacer{}},
		metrics:  metrics.NewHTTP(reg),
		gatherer: reg,
	})

	if w := serve(r, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	w := serve(r, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("expected http metrics in exposition")
	}
}

func TestRoutes_AuthGuardsCalls(t *testing.T) {
	am, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret"})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	placer := &stubPlacer{}
	r := newTestEngine(t, routeDeps{
		handlers: httpapi.Handlers{Calls: placer, Records: calls.NewMemoryRepo()},
		auth:     auth.RequireScope(am, auth.ScopeCalls),
	})

	if w := serve(r, http.MethodPost, "/calls/outbound", placeBody, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if placer.calls != 0 {
		t.Fatalf("placer reached without token")
	}

	tok, _ := am.Issue(time.Now(), "n8n")
	if w := serve(r, http.MethodPost, "/calls/outbound", placeBody, tok); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/calls/outbound-r", "", tok); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Fatalf("health must stay public, got %d", w.Code)
	}
}

func TestRoutes_RateLimitOnlyOnCalls(t *testing.T) {
	rl := httpapi.NewIPRateLimiter(httpapi.RateLimitConfig{Rate: 0.001, Burst: 1})
	defer rl.Stop()
	r := newTestEngine(t, routeDeps{
		handlers:  httpapi.Handlers{Calls: &stubPlacer{}},
		rateLimit: rl.Middleware(),
	})

	if w := serve(r, http.MethodPost, "/calls/outbound", placeBody, ""); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/calls/outbound", placeBody, ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Fatalf("health must not be rate limited, got %d", w.Code)
	}
}
