package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	mpdutils "github.com/JakeStanger/go-mpd-utils"
)

func originRequest(origin, host string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Host = host
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestCheckOriginDefaults(t *testing.T) {
	s := NewServer(nil, nil, nil, nil, zerolog.Nop())

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{name: "NoOrigin", origin: "", host: "example.com", want: true},
		{name: "SameHost", origin: "http://example.com", host: "example.com", want: true},
		{name: "Localhost", origin: "http://localhost:3000", host: "example.com", want: true},
		{name: "Loopback", origin: "http://127.0.0.1:8090", host: "example.com", want: true},
		{name: "CrossOrigin", origin: "http://evil.com", host: "example.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.checkOrigin(originRequest(tt.origin, tt.host)); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestCheckOriginAllowList(t *testing.T) {
	s := NewServer(nil, nil, nil, []string{"https://music.example.com"}, zerolog.Nop())

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{name: "Allowed", origin: "https://music.example.com", want: true},
		{name: "Localhost", origin: "http://localhost:3000", want: false},
		{name: "Other", origin: "https://other.example.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.checkOrigin(originRequest(tt.origin, "example.com")); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestWritePlayerError(t *testing.T) {
	s := NewServer(nil, nil, nil, nil, zerolog.Nop())

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "NoHost", err: mpdutils.ErrNoHostConnected, want: http.StatusServiceUnavailable},
		{name: "Timeout", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{name: "Other", err: context.Canceled, want: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.writePlayerError(rec, tt.err)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
