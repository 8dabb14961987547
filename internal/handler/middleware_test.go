package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/culturekids/enrolment-service/internal/auth"
	"github.com/google/uuid"
)

func okHandler(t *testing.T, sawActor *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*sawActor = actorFrom(r) != nil
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticatePassesValidToken(t *testing.T) {
	parser := auth.NewTokenParser([]byte("test-secret"))
	token, err := parser.Mint(&auth.Actor{ID: uuid.New()}, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	sawActor := false
	handler := Authenticate(parser)(okHandler(t, &sawActor))

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !sawActor {
		t.Fatal("actor should be present on the request context")
	}
}

func TestAuthenticateRejectsMissingAndInvalidTokens(t *testing.T) {
	parser := auth.NewTokenParser([]byte("test-secret"))
	sawActor := false
	handler := Authenticate(parser)(okHandler(t, &sawActor))

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not a bearer token", header: "Basic dXNlcjpwdw=="},
		{name: "empty bearer token", header: "Bearer "},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			var body errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Code != "UNAUTHENTICATED" {
				t.Fatalf("error code = %q, want UNAUTHENTICATED", body.Code)
			}
		})
	}
	if sawActor {
		t.Fatal("rejected requests must never reach the handler")
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	reached := false
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if reached {
		t.Fatal("preflight must not reach the next handler")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("preflight response must carry CORS headers")
	}
}
