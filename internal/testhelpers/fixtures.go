package testhelpers

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/pageza/alchemorsel-v2/search/internal/models"
)

// RecipeID returns a fixed id whose byte order follows n.
func RecipeID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

// SampleRecipes is a small corpus shared by the storage and HTTP tests.
func SampleRecipes() []models.Recipe {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.Recipe{
		{
			ID:          RecipeID(1),
			CreatedAt:   created,
			Name:        "西红柿炒鸡蛋",
			Cuisine:     "chinese",
			Description: "家常快手菜",
			Ingredients: models.JSONBList[models.Ingredient]{
				{Name: "西红柿", Quantity: "2", Unit: "个", Category: "vegetable"},
				{Name: "鸡蛋", Quantity: "3", Unit: "个", Category: "egg"},
			},
			Seasonings:   models.JSONBList[models.Ingredient]{{Name: "盐", Category: "condiment"}},
			Flavors:      models.JSONBList[string]{"酸甜"},
			Difficulty:   "easy",
			CookingTime:  15,
			IsHalal:      true,
			IsGlutenFree: true,
			ImageURL:     "recipes/1.jpg",
		},
		{
			ID:        RecipeID(2),
			CreatedAt: created.Add(time.Hour),
			Name:      "洋葱炒牛肉",
			Cuisine:   "chinese",
			Ingredients: models.JSONBList[models.Ingredient]{
				{Name: "牛肉", Category: "meat"},
				{Name: "洋葱", Category: "vegetable"},
			},
			Seasonings:  models.JSONBList[models.Ingredient]{{Name: "酱油", Category: "condiment"}},
			Flavors:     models.JSONBList[string]{"咸鲜"},
			Difficulty:  "medium",
			CookingTime: 25,
		},
		{
			ID:        RecipeID(3),
			CreatedAt: created.Add(2 * time.Hour),
			Name:      "凉拌黄瓜",
			Cuisine:   "chinese",
			Ingredients: models.JSONBList[models.Ingredient]{
				{Name: "黄瓜", Category: "vegetable"},
				{Name: "大蒜", Category: "vegetable"},
			},
			Seasonings:   models.JSONBList[models.Ingredient]{{Name: "醋", Category: "condiment"}},
			Flavors:      models.JSONBList[string]{"酸辣"},
			Difficulty:   "easy",
			CookingTime:  10,
			IsVegan:      true,
			IsGlutenFree: true,
		},
		{
			ID:          RecipeID(4),
			CreatedAt:   created.Add(3 * time.Hour),
			Name:        "Spaghetti Carbonara",
			Cuisine:     "italian",
			Description: "Roman pasta with egg and cheese",
			Ingredients: models.JSONBList[models.Ingredient]{
				{Name: "spaghetti", Category: "grain"},
				{Name: "egg", Category: "egg"},
				{Name: "parmesan", Category: "dairy"},
			},
			Seasonings:  models.JSONBList[models.Ingredient]{{Name: "black pepper", Category: "condiment"}},
			Flavors:     models.JSONBList[string]{"savory"},
			Difficulty:  "medium",
			CookingTime: 20,
		},
	}
}

// SeedRecipes inserts recipes and fails the test on error.
func SeedRecipes(t *testing.T, db *gorm.DB, recipes ...models.Recipe) {
	t.Helper()
	if len(recipes) == 0 {
		return
	}
	if err := db.Create(&recipes).Error; err != nil {
		t.Fatalf("failed to seed recipes: %v", err)
	}
}

// SeedEmbedding stores the embedding of one recipe.
func SeedEmbedding(t *testing.T, db *gorm.DB, id uuid.UUID, vec []float32) {
	t.Helper()
	row := models.RecipeEmbedding{
		RecipeID:    id,
		Embedding:   pgvector.NewVector(vec),
		ContentHash: fmt.Sprintf("seed-%s", id),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("failed to seed embedding: %v", err)
	}
}

// UnitVector returns a vector of models.EmbeddingDimension with a single 1
// at index i.
func UnitVector(i int) []float32 {
	vec := make([]float32, models.EmbeddingDimension)
	vec[i%models.EmbeddingDimension] = 1
	return vec
}
