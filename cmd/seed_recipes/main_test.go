package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/alchemorsel-v2/search/internal/models"
)

func TestLoadRecipesSeedFile(t *testing.T) {
	recipes, err := loadRecipes(filepath.Join("..", "..", "seeds", "recipes.json"))
	require.NoError(t, err)
	require.NotEmpty(t, recipes)

	seen := map[string]bool{}
	for _, r := range recipes {
		assert.False(t, seen[r.ID.String()], "duplicate id %s", r.ID)
		seen[r.ID.String()] = true
		assert.NotEmpty(t, r.Ingredients, r.Name)
		assert.NotEmpty(t, r.Difficulty, r.Name)
	}
	assert.Equal(t, "西红柿炒鸡蛋", recipes[0].Name)
	assert.Equal(t, models.Difficulty("easy"), recipes[0].Difficulty)
}

func TestLoadRecipesRejectsMissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipes.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"凉拌黄瓜"}]`), 0o600))

	_, err := loadRecipes(path)
	assert.ErrorContains(t, err, "has no id")
}

func TestLoadRecipesRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":`), 0o600))

	_, err := loadRecipes(path)
	assert.ErrorContains(t, err, "failed to parse")
}
