package license

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PyotrToheed/Pyotr-x-udemy/internal/services"
)

func TestExchangeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/octet-stream" {
			t.Fatalf("unexpected content type: %q", got)
		}
		query := r.URL.Query()
		if query.Get("drm_type") != "widevine" {
			t.Fatalf("missing drm_type, got %q", query.Get("drm_type"))
		}
		if query.Get("auth_token") != "fresh-token" {
			t.Fatalf("missing auth_token, got %q", query.Get("auth_token"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "challenge-bytes" {
			t.Fatalf("unexpected challenge body: %q", body)
		}
		w.Write([]byte("license-bytes"))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL+"/validate-auth-token")
	response, err := client.Exchange(context.Background(), "fresh-token", []byte("challenge-bytes"))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if string(response) != "license-bytes" {
		t.Fatalf("unexpected response: %q", response)
	}
}

func TestExchangeMissingToken(t *testing.T) {
	client := NewClient(http.DefaultClient, "https://license.example/validate")
	if _, err := client.Exchange(context.Background(), "  ", []byte("challenge")); !errors.Is(err, services.ErrLicenseTokenMissing) {
		t.Fatalf("expected ErrLicenseTokenMissing, got %v", err)
	}
}

func TestExchangeExpiredToken(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "unauthorized status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
		{
			name: "expired body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error": "token Expired"}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(server.Client(), server.URL)
			_, err := client.Exchange(context.Background(), "stale-token", []byte("challenge"))
			if !errors.Is(err, services.ErrLicenseRejected) {
				t.Fatalf("expected ErrLicenseRejected, got %v", err)
			}
		})
	}
}

func TestExchangeReturnsOKBodyVerbatim(t *testing.T) {
	// Licenses are opaque binary; incidental ASCII inside a 200 body must
	// not be mistaken for a failure marker.
	payload := []byte("\x08\x01binary Expired license bytes\x00\x42")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)
	response, err := client.Exchange(context.Background(), "token", []byte("challenge"))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if string(response) != string(payload) {
		t.Fatalf("response altered: %q", response)
	}
}

func TestExchangeInterstitial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("<html>Just a moment...</html>"))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)
	_, err := client.Exchange(context.Background(), "token", []byte("challenge"))
	if !errors.Is(err, services.ErrLicenseRejected) {
		t.Fatalf("expected ErrLicenseRejected, got %v", err)
	}
}

func TestExchangeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)
	_, err := client.Exchange(context.Background(), "token", []byte("challenge"))
	if !errors.Is(err, services.ErrLicenseRejected) {
		t.Fatalf("expected ErrLicenseRejected, got %v", err)
	}
}

func TestExchangePreservesExistingQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("kind"); got != "player" {
			t.Fatalf("existing query parameter lost, got %q", got)
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL+"/validate?kind=player")
	if _, err := client.Exchange(context.Background(), "token", []byte("challenge")); err != nil {
		t.Fatalf("exchange: %v", err)
	}
}
