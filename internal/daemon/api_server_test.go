package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"claimscan/internal/api"
	"claimscan/internal/attempts"
)

func newTestServer(t *testing.T) (*apiServer, *Daemon) {
	t.Helper()
	d := newTestDaemon(t, testConfig(t))
	if d.api == nil {
		t.Fatal("api server not configured")
	}
	return d.api, d
}

func TestAPIServerHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Scanner.Mode != "claim" {
		t.Fatalf("unexpected default mode %q", resp.Scanner.Mode)
	}
	if resp.Scanner.State != "idle" {
		t.Fatalf("unexpected scanner state %q", resp.Scanner.State)
	}
}

func TestAPIServerHandleDevices(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	w := httptest.NewRecorder()
	srv.handleDevices(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.handleDevices(w, httptest.NewRequest(http.MethodPost, "/api/devices", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIServerScannerOpenUnavailableCamera(t *testing.T) {
	srv, _ := newTestServer(t)

	body := strings.NewReader(`{"device":"/dev/claimscan-no-such-camera"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/scanner/open", body)
	w := httptest.NewRecorder()
	srv.handleScannerOpen(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for missing camera, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAPIServerScannerMode(t *testing.T) {
	srv, d := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/scanner/mode", strings.NewReader(`{"mode":"collect"}`))
	w := httptest.NewRecorder()
	srv.handleScannerMode(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := d.coordinator.Status().Mode; got != "collect" {
		t.Fatalf("mode not applied, got %q", got)
	}

	w = httptest.NewRecorder()
	srv.handleScannerMode(w, httptest.NewRequest(http.MethodPost, "/api/scanner/mode", strings.NewReader(`{"mode":"destroy"}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", w.Code)
	}
}

func TestAPIServerSubmitRequiresAuthentication(t *testing.T) {
	srv, _ := newTestServer(t)

	body := strings.NewReader(`{"payload":"3fa85f64-5717-4562-b3fc-2c963f66afa6"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/submit", body)
	w := httptest.NewRecorder()
	srv.handleSubmit(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session token, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAPIServerSubmitRejectsEmptyPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/submit", strings.NewReader(`{"payload":"  "}`))
	w := httptest.NewRecorder()
	srv.handleSubmit(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty payload, got %d", w.Code)
	}
}

func TestAPIServerSubmitRejectsNonActionablePayload(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/submit", strings.NewReader(`{"payload":"hello-world"}`))
	w := httptest.NewRecorder()
	srv.handleSubmit(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for non-actionable payload, got %d", w.Code)
	}
}

func TestAPIServerAttempts(t *testing.T) {
	srv, d := newTestServer(t)
	ctx := context.Background()

	attempt, err := d.store.Add(ctx, "3fa85f64-5717-4562-b3fc-2c963f66afa6", "claim", attempts.SourceManual)
	if err != nil {
		t.Fatalf("add attempt: %v", err)
	}
	if err := d.store.Resolve(ctx, attempt.ID, attempts.StatusFailed, "Claim rejected"); err != nil {
		t.Fatalf("resolve attempt: %v", err)
	}

	w := httptest.NewRecorder()
	srv.handleAttempts(w, httptest.NewRequest(http.MethodGet, "/api/attempts?status=failed", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var list api.AttemptListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Attempts) != 1 || list.Attempts[0].Message != "Claim rejected" {
		t.Fatalf("unexpected attempts %+v", list.Attempts)
	}

	w = httptest.NewRecorder()
	srv.handleAttempts(w, httptest.NewRequest(http.MethodGet, "/api/attempts?status=bogus", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.handleAttempt(w, httptest.NewRequest(http.MethodGet, "/api/attempts/"+attempt.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.handleAttempt(w, httptest.NewRequest(http.MethodGet, "/api/attempts/unknown-id", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.handleAttempts(w, httptest.NewRequest(http.MethodDelete, "/api/attempts", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for clear, got %d", w.Code)
	}
	var cleared api.ClearResponse
	if err := json.Unmarshal(w.Body.Bytes(), &cleared); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cleared.Removed != 1 {
		t.Fatalf("expected 1 removed, got %d", cleared.Removed)
	}
}

func TestRequireAuth(t *testing.T) {
	srv := &apiServer{token: "secret"}
	handler := srv.requireAuth(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	authorized := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler(w, req)
		return w
	}

	for _, header := range []string{"", "Bearer wrong", "Basic secret", "Bearer "} {
		w := authorized(header)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["error"] == "" {
			t.Fatalf("header %q: expected JSON error body, got %q", header, w.Body.String())
		}
	}

	if w := authorized("Bearer secret"); w.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through with valid token, got %d", w.Code)
	}
	// Scheme comparison is case-insensitive per RFC 9110.
	if w := authorized("bearer secret"); w.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through with lowercase scheme, got %d", w.Code)
	}

	open := (&apiServer{}).requireAuth(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	open(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("empty token must disable auth, got %d", w.Code)
	}
}
