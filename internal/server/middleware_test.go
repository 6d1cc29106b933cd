package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestLoggingMiddlewareLevels(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name:    "fast request at debug",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
			want:    "level=DEBUG msg=\"request completed\"",
		},
		{
			name: "slow request at warn",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				time.Sleep(slowRequestThreshold + 20*time.Millisecond)
				w.WriteHeader(http.StatusOK)
			},
			want: "level=WARN msg=\"slow request\"",
		},
		{
			name:    "server error at error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			want:    "level=ERROR msg=\"request failed\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			h := LoggingMiddleware(logger)(tt.handler)
			req := httptest.NewRequest(http.MethodGet, "/api/jobs?"+strings.Repeat("x", 300), nil)
			h.ServeHTTP(httptest.NewRecorder(), req)

			out := buf.String()
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, "path=/api/jobs")
			assert.Contains(t, out, "...")
		})
	}
}
