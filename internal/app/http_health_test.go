package app

import (
	"net/http"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	f := newHTTPFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if ok, _ := body["ok"].(bool); !ok {
		t.Fatalf("expected ok=true, got %v", body)
	}
}

func TestReadyEndpoint(t *testing.T) {
	f := newHTTPFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/ready", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	checks, ok := body["checks"].(map[string]any)
	if !ok {
		t.Fatalf("expected checks, got %v", body)
	}
	for _, name := range []string{"database", "sessions"} {
		check, ok := checks[name].(map[string]any)
		if !ok || check["status"] != "ok" {
			t.Fatalf("expected %s check ok, got %v", name, checks[name])
		}
	}
}

func TestSessionEndpointWithoutToken(t *testing.T) {
	f := newHTTPFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/session", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if authed, _ := body["authenticated"].(bool); authed {
		t.Fatalf("expected unauthenticated, got %v", body)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	f := newHTTPFixture(t)

	status, _ := f.do(t, http.MethodGet, "/api/nonsense", "viewer", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}
