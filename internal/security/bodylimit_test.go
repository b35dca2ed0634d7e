package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func cartAdd(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/c1/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	return req
}

func TestBodyLimitPassesBodyThrough(t *testing.T) {
	var seen string
	handler := BodyLimit{Max: 64, RequireJSON: true}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(data)
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, cartAdd(`{"productId":"7"}`))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, `{"productId":"7"}`, seen)
}

func TestBodyLimitRejectsOversized(t *testing.T) {
	handler := BodyLimit{Max: 4}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	declared := cartAdd(`{"productId":"7"}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, declared)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	streamed := cartAdd(`{"productId":"7"}`)
	streamed.ContentLength = -1
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, streamed)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Contains(t, rr.Body.String(), `"PAYLOAD_TOO_LARGE"`)
}

func TestBodyLimitRequiresJSON(t *testing.T) {
	called := false
	handler := BodyLimit{Max: 64, RequireJSON: true}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := cartAdd("productId=7")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	require.False(t, called)

	empty := httptest.NewRequest(http.MethodDelete, "/api/v1/carts/c1/items", nil)
	handler.ServeHTTP(httptest.NewRecorder(), empty)
	require.True(t, called)
}
