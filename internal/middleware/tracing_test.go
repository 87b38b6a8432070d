package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingAssignsRequestID(t *testing.T) {
	var seen string
	router := gin.New()
	router.Use(Tracing())
	router.GET("/", func(c *gin.Context) {
		seen = RequestID(c)
		c.Status(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	id := rr.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	assert.Equal(t, id, seen)
	_, err := ksuid.Parse(id)
	assert.NoError(t, err)
}

func TestTracingKeepsClientRequestID(t *testing.T) {
	router := gin.New()
	router.Use(Tracing())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "client-supplied", rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "client-supplied", rr.Body.String())
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS())
	router.POST("/api/v1/rpc/search_recipes", func(c *gin.Context) {
		c.JSON(http.StatusOK, []string{})
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/rpc/search_recipes", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/api/v1/rpc/search_recipes", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
