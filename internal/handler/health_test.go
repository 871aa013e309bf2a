package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

func TestHandleHealthCheck(t *testing.T) {
	tests := []struct {
		name         string
		cacheErr     error
		wantCode     int
		wantStatus   string
		wantCacheRow string
	}{
		{"all dependencies up", nil, http.StatusOK, "available", "up"},
		{"cache down", errors.New("dial tcp: connection refused"), http.StatusServiceUnavailable, "unavailable", "down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps()
			h := NewHealthCheckHandler(&HealthCheckHandler{
				Mode:    "demo",
				ChainID: 11155111,
				Dependencies: map[string]Pinger{
					"database": stubPinger{},
					"cache":    stubPinger{err: tt.cacheErr},
				},
				Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
				ErrHandler: deps.errHandler,
			})

			rr := httptest.NewRecorder()
			h.HandleHealthCheck(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())

			var body struct {
				Data  map[string]any `json:"data"`
				Error map[string]any `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))

			payload := body.Data
			if payload == nil {
				payload = body.Error
			}
			require.NotNil(t, payload)

			assert.Equal(t, tt.wantStatus, payload["status"])
			dependencies, ok := payload["dependencies"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "up", dependencies["database"])
			assert.Equal(t, tt.wantCacheRow, dependencies["cache"])
		})
	}
}
