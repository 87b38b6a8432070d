package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/alchemorsel-v2/search/internal/database"
	"github.com/pageza/alchemorsel-v2/search/internal/models"
)

// embeddingBatch bounds the number of ids bound into one IN clause.
const embeddingBatch = 500

// recipeColumns are replaced when an existing recipe is upserted.
var recipeColumns = []string{
	"updated_at", "name", "cuisine", "description", "ingredients", "seasonings", "flavors",
	"difficulty", "cooking_time", "steps", "tips", "is_vegan", "is_halal", "is_gluten_free",
	"image_url",
}

// RecipeService reads and writes the recipe corpus. It is the search
// engine's Corpus.
//
// When a read fails because a table does not exist yet, the service runs the
// migrations once and retries the read once. A second failure is returned.
type RecipeService struct {
	db            *gorm.DB
	migrationsDir string

	mu          sync.Mutex
	provisioned bool
}

// NewRecipeService creates a new RecipeService instance
func NewRecipeService(db *gorm.DB, migrationsDir string) *RecipeService {
	return &RecipeService{
		db:            db,
		migrationsDir: migrationsDir,
	}
}

// Recipes returns every recipe in the corpus.
func (s *RecipeService) Recipes(ctx context.Context) ([]models.Recipe, error) {
	var recipes []models.Recipe
	err := s.withProvisioning(ctx, func(db *gorm.DB) error {
		recipes = nil
		return db.Find(&recipes).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}
	return recipes, nil
}

// Embeddings returns the stored embeddings of the given recipes. Recipes
// without an embedding are absent from the map.
func (s *RecipeService) Embeddings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]float32, error) {
	out := make(map[uuid.UUID][]float32, len(ids))
	for start := 0; start < len(ids); start += embeddingBatch {
		end := start + embeddingBatch
		if end > len(ids) {
			end = len(ids)
		}

		var rows []models.RecipeEmbedding
		err := s.withProvisioning(ctx, func(db *gorm.DB) error {
			rows = nil
			return db.Where("recipe_id IN ?", ids[start:end]).Find(&rows).Error
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load recipe embeddings: %w", err)
		}
		for _, row := range rows {
			out[row.RecipeID] = row.Embedding.Slice()
		}
	}
	return out, nil
}

// EmbeddingHashes returns the content hash of every stored recipe embedding.
func (s *RecipeService) EmbeddingHashes(ctx context.Context) (map[uuid.UUID]string, error) {
	var rows []models.RecipeEmbedding
	err := s.withProvisioning(ctx, func(db *gorm.DB) error {
		rows = nil
		return db.Select("recipe_id", "content_hash").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding hashes: %w", err)
	}
	hashes := make(map[uuid.UUID]string, len(rows))
	for _, row := range rows {
		hashes[row.RecipeID] = row.ContentHash
	}
	return hashes, nil
}

// UpsertRecipes creates recipes or replaces them by id.
func (s *RecipeService) UpsertRecipes(ctx context.Context, recipes []models.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	return s.withProvisioning(ctx, func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(recipeColumns),
		}).Create(&recipes).Error
	})
}

// UpsertEmbedding stores the single embedding of a recipe.
func (s *RecipeService) UpsertEmbedding(ctx context.Context, id uuid.UUID, vec []float32, contentHash string) error {
	row := models.RecipeEmbedding{
		RecipeID:    id,
		Embedding:   pgvector.NewVector(vec),
		ContentHash: contentHash,
	}
	return s.withProvisioning(ctx, func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "recipe_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding", "content_hash", "updated_at"}),
		}).Create(&row).Error
	})
}

// withProvisioning runs fn and, if it failed on a missing relation,
// provisions the schema and runs fn one more time.
func (s *RecipeService) withProvisioning(ctx context.Context, fn func(db *gorm.DB) error) error {
	err := fn(s.db.WithContext(ctx))
	if !database.IsMissingRelation(err) {
		return err
	}

	if perr := s.provision(); perr != nil {
		return fmt.Errorf("failed to provision schema after %v: %w", err, perr)
	}
	return fn(s.db.WithContext(ctx))
}

func (s *RecipeService) provision() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provisioned {
		return nil
	}
	log.Printf("Search tables missing, running migrations from %s", s.migrationsDir)
	if err := database.RunMigrations(s.db, s.migrationsDir); err != nil {
		return err
	}
	s.provisioned = true
	return nil
}
