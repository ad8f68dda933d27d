package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testRouter(app *App) http.Handler {
	return NewRouter(testHandler(app), testConfig())
}

func TestNewRouter(t *testing.T) {
	router := testRouter(testApp())

	if router == nil {
		t.Fatal("expected router to be created")
	}
}

func TestCorsMiddleware(t *testing.T) {
	allowedOrigins := "http://localhost:3000"
	middleware := corsMiddleware(allowedOrigins)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("sets CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != allowedOrigins {
			t.Errorf("expected Access-Control-Allow-Origin %q, got %q", allowedOrigins, got)
		}

		if got := w.Header().Get("Access-Control-Allow-Methods"); got == "" {
			t.Error("expected Access-Control-Allow-Methods header")
		}
	})

	t.Run("handles OPTIONS preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200 for OPTIONS, got %d", w.Code)
		}
	})
}

func TestRouterPublicRoutes(t *testing.T) {
	router := testRouter(testApp())

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"GET /api/health", http.MethodGet, "/api/health", http.StatusOK},
		{"GET /api/agents", http.MethodGet, "/api/agents", http.StatusOK},
		{"GET /metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"GET /api/nonexistent", http.MethodGet, "/api/nonexistent", http.StatusNotFound},
		{"DELETE /api/health not allowed", http.MethodDelete, "/api/health", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestRouterAuth(t *testing.T) {
	router := testRouter(testApp())

	// Test config secrets: service=test-service-secret, cron=test-cron-secret
	tests := []struct {
		name           string
		path           string
		token          string
		expectedStatus int
	}{
		{"trigger without token", "/api/trigger", "", http.StatusUnauthorized},
		{"trigger with wrong token", "/api/trigger", "wrong", http.StatusUnauthorized},
		{"trigger with cron secret rejected", "/api/trigger", "test-cron-secret", http.StatusUnauthorized},
		{"trigger with service secret", "/api/trigger", "test-service-secret", http.StatusOK},
		{"runs status with service secret", "/api/runs/status", "test-service-secret", http.StatusOK},
		{"cron tick with service secret rejected", "/api/cron/tick", "test-service-secret", http.StatusUnauthorized},
		{"cron tick with cron secret", "/api/cron/tick", "test-cron-secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(`{}`))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestBearerAuthEmptySecretRejectsEverything(t *testing.T) {
	handler := bearerAuth("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("an unset secret must reject all requests, got %d", w.Code)
	}
}
