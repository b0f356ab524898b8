package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pharmatrace/trace-engine/pkg/errors"
	"github.com/pharmatrace/trace-engine/pkg/logging"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Setup(r, logging.NewNop(), nil)
	return r
}

func TestRequestIDAndCorrelation(t *testing.T) {
	r := newRouter()
	var seenCorrelation, seenActor string
	r.GET("/ping", func(c *gin.Context) {
		seenCorrelation, _ = c.Request.Context().Value(logging.CorrelationIDKey).(string)
		seenActor, _ = c.Request.Context().Value(logging.ActorIDKey).(string)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderCorrelationID, "corr-9")
	req.Header.Set(HeaderActorID, "actor-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	assert.Equal(t, "corr-9", w.Header().Get(HeaderCorrelationID))
	assert.Equal(t, "corr-9", seenCorrelation)
	assert.Equal(t, "actor-1", seenActor)
}

func TestErrorHandler_RendersAppError(t *testing.T) {
	r := newRouter()
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(apperrors.ErrNotFoundWithID("batch", "B-7"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperrors.CodeNotFound, body.Code)
	assert.Equal(t, "B-7", body.Details["id"])
	assert.Equal(t, "/missing", body.Path)
}

func TestErrorHandler_PlainErrorIsInternal(t *testing.T) {
	r := newRouter()
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("disk full")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRecovery(t *testing.T) {
	r := newRouter()
	r.GET("/panic", func(c *gin.Context) { panic("unexpected") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), apperrors.CodeInternalError)
}

func TestReadinessCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	healthy := true
	r.GET("/ready", ReadinessCheck("trace-engine", map[string]func(context.Context) error{
		"mongodb": func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("no primary")
		},
	}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	healthy = false
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "no primary")
}

func TestNoRoute(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ROUTE_NOT_FOUND")
}
