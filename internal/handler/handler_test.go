package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appctx "github.com/trustbond/api/internal/context"
	"github.com/trustbond/api/internal/cache"
	"github.com/trustbond/api/internal/errHandler"
	"github.com/trustbond/api/internal/helper"
	"github.com/trustbond/api/internal/models"
)

type testDeps struct {
	errHandler *errHandler.ErrorHandler
	helper     *helper.HelperRepository
	wg         *sync.WaitGroup
}

func newTestDeps() *testDeps {
	baseURL := "http://localhost"
	wg := &sync.WaitGroup{}
	eh := errHandler.New("", baseURL, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	return &testDeps{
		errHandler: eh,
		helper:     helper.New(&baseURL, wg, eh),
		wg:         wg,
	}
}

func newJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withUser(r *http.Request, user *models.User) *http.Request {
	return appctx.ContextSetAuthenticatedUser(r, user)
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, dst))
}

// waitGroupTimeout waits for background tasks started by the handler.
func waitGroupTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background tasks did not finish")
	}
}

type memoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: make(map[string]string)}
}

func (kv *memoryKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = value
	return nil
}

func (kv *memoryKV) Get(_ context.Context, key string) (string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	value, ok := kv.values[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return value, nil
}

func (kv *memoryKV) Delete(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.values, key)
	return nil
}

func (kv *memoryKV) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.values[key]; ok {
		return false, nil
	}
	kv.values[key] = value
	return true, nil
}

func TestRetrieveUrlQueryValues(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", 1, defaultPageLimit, 0},
		{"second page", "?page=2&limit=25", 2, 25, 25},
		{"limit capped", "?limit=5000", 1, maxPageLimit, 0},
		{"garbage ignored", "?page=abc&limit=-3", 1, defaultPageLimit, 0},
		{"huge page capped", "?page=9223372036854775807&limit=100", maxPage, 100, (maxPage - 1) * 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := retrieveUrlQueryValues(httptest.NewRequest(http.MethodGet, "/loans"+tt.query, nil))

			assert.Equal(t, tt.wantPage, values.Page)
			assert.Equal(t, tt.wantLimit, values.Limit)
			assert.Equal(t, tt.wantOffset, values.Offset)
			assert.GreaterOrEqual(t, values.Offset, 0)
		})
	}
}
