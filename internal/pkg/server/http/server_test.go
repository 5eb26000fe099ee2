package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/autopeer-io/remotepilot/pkg/options"
)

func TestServerEndpoints(t *testing.T) {
	var readyErr error
	s := NewServer(options.NewHttpOptions(), func() error { return readyErr })

	tests := []struct {
		name     string
		path     string
		notReady bool
		want     int
	}{
		{"healthz", "/healthz", false, http.StatusOK},
		{"readyz ready", "/readyz", false, http.StatusOK},
		{"readyz not ready", "/readyz", true, http.StatusServiceUnavailable},
		{"healthz while not ready", "/healthz", true, http.StatusOK},
		{"metrics", "/metrics", false, http.StatusOK},
		{"unknown", "/nope", false, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readyErr = nil
			if tt.notReady {
				readyErr = errors.New("link offline")
			}

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
			}
		})
	}
}
