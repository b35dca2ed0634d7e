package common_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-catalog/internal/common"
)

type addPayload struct {
	ProductID string `json:"productId" validate:"required"`
	Qty       int    `json:"qty" validate:"gte=0"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) common.ErrorBody {
	t.Helper()
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}

func TestDecodeAndValidateReportsJSONFieldNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"qty":-1}`))
	var payload addPayload
	err := common.DecodeAndValidate(req, &payload)
	require.Error(t, err)

	rr := httptest.NewRecorder()
	common.WriteError(rr, err)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeError(t, rr)
	require.Equal(t, "BAD_REQUEST", body.Code)
	require.Contains(t, body.Message, "productId")
	require.Contains(t, body.Message, "qty")
}

func TestDecodeAndValidateRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productId":"1","color":"red"}`))
	var payload addPayload
	err := common.DecodeAndValidate(req, &payload)
	require.True(t, common.IsAppError(err))
}

func TestDecodeAndValidateAcceptsValidPayload(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productId":"1","qty":2}`))
	var payload addPayload
	require.NoError(t, common.DecodeAndValidate(req, &payload))
	require.Equal(t, "1", payload.ProductID)
	require.Equal(t, 2, payload.Qty)
}

func TestWriteErrorHidesUnknownErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, errors.New("db password leaked"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "internal error", decodeError(t, rr).Message)
}

func TestDataEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	common.Data(rr, http.StatusCreated, map[string]string{"id": "x"})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.JSONEq(t, `{"data":{"id":"x"}}`, rr.Body.String())
}

func TestAtoiDefault(t *testing.T) {
	v, err := common.AtoiDefault(" ", 1)
	require.NoError(t, err)
	require.Equal(t, 1, v)
	v, err = common.AtoiDefault("3", 1)
	require.NoError(t, err)
	require.Equal(t, 3, v)
	_, err = common.AtoiDefault("three", 1)
	require.Error(t, err)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	require.Equal(t, "203.0.113.7", common.ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "unknown, 198.51.100.4")
	require.Equal(t, "198.51.100.4", common.ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "::ffff:192.0.2.9")
	require.Equal(t, "192.0.2.9", common.ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	require.Equal(t, "192.0.2.1", common.ClientIP(req))
}

func TestFingerprint(t *testing.T) {
	require.Len(t, common.Fingerprint("POST", "/carts"), 64)
	require.Equal(t, common.Fingerprint("a", "b"), common.Fingerprint("a", "b"))
	require.NotEqual(t, common.Fingerprint("ab", "c"), common.Fingerprint("a", "bc"))
}

func TestIdempotencyReplayAndRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	status := http.StatusCreated
	calls := 0
	handler := common.Idem{R: client}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	send := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Idempotency-Key", "abc")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusCreated, send("/carts/1/items").Code)
	require.Equal(t, http.StatusConflict, send("/carts/1/items").Code)
	require.Equal(t, http.StatusCreated, send("/carts/2/items").Code)
	require.Equal(t, 2, calls)

	status = http.StatusBadGateway
	require.Equal(t, http.StatusBadGateway, send("/carts/3/items").Code)
	status = http.StatusCreated
	require.Equal(t, http.StatusCreated, send("/carts/3/items").Code)
	require.Equal(t, 4, calls)
}

func TestMapError(t *testing.T) {
	errGone := errors.New("gone")
	rules := []common.ErrorRule{
		{Target: errGone, Status: http.StatusNotFound, Code: common.CodeNotFound},
		{Target: io.EOF, Status: http.StatusBadRequest, Code: common.CodeBadRequest, Message: "empty body"},
	}

	mapped := common.MapError(fmt.Errorf("product 9: %w", errGone), rules...)
	var appErr *common.AppError
	require.ErrorAs(t, mapped, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
	require.Equal(t, "product 9: gone", appErr.Message)
	require.ErrorIs(t, mapped, errGone)

	require.ErrorAs(t, common.MapError(io.EOF, rules...), &appErr)
	require.Equal(t, "empty body", appErr.Message)

	plain := errors.New("boom")
	require.Same(t, plain, common.MapError(plain, rules...))
	require.NoError(t, common.MapError(nil, rules...))

	existing := common.BadRequest("bad", errGone)
	require.Same(t, existing, common.MapError(existing, rules...))
}
