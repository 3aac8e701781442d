package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/orderservice/pkg/errorbank"
)

func newContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestBuilder_Success(t *testing.T) {
	c, rec := newContext()
	c.Response().Header().Set(echo.HeaderXRequestID, "rid-1")

	err := New(c).WithStatus(http.StatusCreated).WithData(map[string]int{"id": 1}).WithMeta("", "ignored").Build()
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"id": float64(1)}, body["data"])
	assert.Equal(t, map[string]any{"request_id": "rid-1"}, body["meta"])
}

func TestBuilder_ErrorUsesKindStatus(t *testing.T) {
	c, rec := newContext()

	err := New(c).WithError(errorbank.NotFound("order not found", errorbank.WithDetail("id", 3))).Build()
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "not_found", errBody["kind"])
	assert.Equal(t, "order not found", errBody["message"])
	assert.Equal(t, map[string]any{"id": float64(3)}, errBody["details"])
}

func TestBuilder_ErrorExplicitStatus(t *testing.T) {
	c, rec := newContext()

	require.NoError(t, New(c).WithStatus(http.StatusTeapot).WithError(errorbank.BadRequest("nope")).Build())
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestBuilder_InternalErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	c, rec := newContext()
	c.Set(LoggerKey, zap.New(core))

	require.NoError(t, New(c).WithError(errors.New("db exploded")).Build())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db exploded")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "request failed", logs.All()[0].Message)
}
