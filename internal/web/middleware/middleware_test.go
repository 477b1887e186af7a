package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/factoryinv/internal/config"
	"github.com/JonMunkholm/factoryinv/internal/core"
	"github.com/JonMunkholm/factoryinv/internal/logging"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestAPIKeyAuth(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1", "k2"}}

	tests := []struct {
		name     string
		key      string
		status   int
		wantCode string
	}{
		{"valid first", "k1", http.StatusNoContent, ""},
		{"valid second", "k2", http.StatusNoContent, ""},
		{"missing", "", http.StatusUnauthorized, "AUTH001"},
		{"wrong", "nope", http.StatusForbidden, "AUTH002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/inventory", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			APIKeyAuth(cfg)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.wantCode == "" {
				return
			}
			var msg core.UserMessage
			if err := json.NewDecoder(rec.Body).Decode(&msg); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if msg.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", msg.Code, tt.wantCode)
			}
		})
	}
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	rec := httptest.NewRecorder()
	APIKeyAuth(&config.SecurityConfig{})(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		realIP  string
		xff     string
		want    string
	}{
		{"untrusted keeps remote", []string{"10.0.0.0/8"}, "203.0.113.5:1234", "1.2.3.4", "", "203.0.113.5:1234"},
		{"trusted uses X-Real-IP", []string{"10.0.0.0/8"}, "10.1.2.3:1234", "1.2.3.4", "", "1.2.3.4"},
		{"trusted uses first XFF", []string{"10.0.0.0/8"}, "10.1.2.3:1234", "", "5.6.7.8, 10.1.2.3", "5.6.7.8"},
		{"single address entry", []string{"127.0.0.1"}, "127.0.0.1:999", "9.9.9.9", "", "9.9.9.9"},
		{"invalid header ignored", []string{"10.0.0.0/8"}, "10.1.2.3:1234", "not-an-ip", "", "10.1.2.3:1234"},
		{"invalid entry skipped", []string{"bogus"}, "10.1.2.3:1234", "1.2.3.4", "", "10.1.2.3:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogger_StoresClientIP(t *testing.T) {
	var ip string
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = logging.ClientIPFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if ip != "192.0.2.7" {
		t.Errorf("client ip = %q, want 192.0.2.7", ip)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}
