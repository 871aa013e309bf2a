package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONOkResponse_ConvertsMapKeysToSnakeCase(t *testing.T) {
	rr := httptest.NewRecorder()

	data := map[string]any{
		"AuthToken": "abc",
		"Nested":    map[string]any{"RedirectTo": "/dashboard"},
	}

	err := JSONOkResponse(rr, data, "", nil)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))

	require.Equal(t, "Request successful", body["message"])
	require.Equal(t, true, body["success"])

	payload := body["data"].(map[string]any)
	require.Equal(t, "abc", payload["auth_token"])
	require.Equal(t, "/dashboard", payload["nested"].(map[string]any)["redirect_to"])
}

func TestJSONErrorResponse_DefaultsStatus(t *testing.T) {
	rr := httptest.NewRecorder()

	headers := make(http.Header)
	headers.Set("WWW-Authenticate", "Bearer")

	err := JSONErrorResponse(rr, []string{"bad"}, "", 0, headers)
	require.NoError(t, err)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "Request failed", body["message"])
	require.Equal(t, false, body["success"])
}

func TestMetricsResponseWriter_RecordsFirstStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	mw := NewMetricsResponseWriter(rr)

	mw.WriteHeader(http.StatusTeapot)
	n, err := mw.Write([]byte("hello"))
	require.NoError(t, err)

	require.Equal(t, 5, n)
	require.Equal(t, http.StatusTeapot, mw.StatusCode)
	require.Equal(t, 5, mw.BytesCount)
}
