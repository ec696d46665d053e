package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRequestID(t *testing.T, header string) (string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var ctxID string
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		ctxID = c.GetString(ContextKeyRequestID)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("X-Request-ID", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return ctxID, w.Header().Get("X-Request-ID")
}

func TestRequestIDMiddleware(t *testing.T) {
	supplied := uuid.New().String()
	ctxID, echoed := runRequestID(t, supplied)
	assert.Equal(t, supplied, ctxID, "valid client IDs pass through")
	assert.Equal(t, supplied, echoed)

	ctxID, echoed = runRequestID(t, "")
	_, err := uuid.Parse(ctxID)
	require.NoError(t, err, "missing header gets a fresh UUID")
	assert.Equal(t, ctxID, echoed)

	ctxID, echoed = runRequestID(t, "not-a-uuid'; DROP TABLE logs;--")
	_, err = uuid.Parse(ctxID)
	require.NoError(t, err, "malformed client IDs are replaced")
	assert.Equal(t, ctxID, echoed)
}
