package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pageza/alchemorsel-v2/search/config"
	"github.com/pageza/alchemorsel-v2/search/internal/api"
	"github.com/pageza/alchemorsel-v2/search/internal/models"
	"github.com/pageza/alchemorsel-v2/search/internal/search"
)

type emptyCorpus struct{}

func (emptyCorpus) Recipes(ctx context.Context) ([]models.Recipe, error) { return nil, nil }
func (emptyCorpus) Embeddings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]float32, error) {
	return nil, nil
}

func TestSetupRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := search.NewEngine(emptyCorpus{}, config.DefaultSearchConfig())
	router := SetupRouter(
		api.NewSearchHandler(engine, time.Second),
		api.NewHealthHandler(nil),
		nil,
	)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodPost, "/api/v1/rpc/search_recipes", http.StatusOK},
		{http.MethodGet, "/api/v1/recipes/search", http.StatusOK},
		{http.MethodGet, "/api/v1/search/config", http.StatusOK},
		{http.MethodGet, "/api/v1/recipes", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}
