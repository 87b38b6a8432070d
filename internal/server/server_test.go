package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/pageza/alchemorsel-v2/search/config"
)

func TestNew(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	cfg := &config.Config{
		ServerHost:     "localhost",
		ServerPort:     "8080",
		RequestTimeout: 15 * time.Second,
	}

	server := New(cfg, router)
	assert.NotNil(t, server)
	assert.Equal(t, "localhost:8080", server.Addr())
	assert.Equal(t, 20*time.Second, server.http.WriteTimeout)

	// Test health check endpoint
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	server.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStopBeforeStart(t *testing.T) {
	server := New(&config.Config{ServerPort: "0"}, http.NotFoundHandler())
	assert.NoError(t, server.Stop(context.Background()))
}
