package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRouter(limit int64) *gin.Engine {
	r := gin.New()
	r.Use(BodyLimit(limit))
	r.POST("/echo", func(c *gin.Context) {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too large")
			return
		}
		c.String(http.StatusOK, string(b))
	})
	r.GET("/echo", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestBodyLimit_WithinLimit(t *testing.T) {
	w := httptest.NewRecorder()
	echoRouter(5).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("12345")))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12345", w.Body.String())
}

func TestBodyLimit_DeclaredLengthRejectedUpFront(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(bytes.Repeat([]byte("A"), 100)))
	echoRouter(16).ServeHTTP(w, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VAL_007", body["error_code"])
}

func TestBodyLimit_StreamedBodyFailsOnRead(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", io.NopCloser(strings.NewReader(strings.Repeat("A", 100))))
	req.ContentLength = -1
	echoRouter(16).ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "too large", w.Body.String())
}

func TestBodyLimit_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	echoRouter(16).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/echo", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
