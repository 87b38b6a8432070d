package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pageza/alchemorsel-v2/search/config"
	"github.com/pageza/alchemorsel-v2/search/internal/models"
)

func newState(query string) *state {
	req := NewRequest()
	req.SearchQuery = query
	return &state{
		req:      req,
		cfg:      config.DefaultSearchConfig(),
		query:    req.Query(),
		keywords: req.Keywords(),
	}
}

func newScoringCandidate(name string, names ...string) *candidate {
	r := &models.Recipe{ID: recipeID(1), Name: name}
	for _, n := range names {
		r.Ingredients = append(r.Ingredients, models.Ingredient{Name: n})
	}
	return newCandidate(r)
}

func TestNameTier(t *testing.T) {
	tests := []struct {
		query  string
		name   string
		tier   string
		weight float64
	}{
		{"Carbonara", "carbonara", TierExact, 0.40},
		{"carbonaro", "Carbonara", TierFuzzy, 0.30},
		{"stew dumplings", "Irish Stew", TierSimilar, 0.20},
		{"stew", "Pancakes", "", 0},
		{"", "Pancakes", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query+"/"+tt.name, func(t *testing.T) {
			tier, weight := newState(tt.query).nameTier(tt.name)
			assert.Equal(t, tt.tier, tier)
			assert.InDelta(t, tt.weight, weight, 1e-9)
		})
	}
}

func TestKeywordTier(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		ingredients []string
		description string
		tier        string
		weight      float64
		unmatched   int
	}{
		{"exact", "egg", []string{"tomato", "egg"}, "", TierExact, 0.25, 0},
		{"prefix", "egg", []string{"eggplant"}, "", TierPrefix, 0.20, 0},
		{"contains ingredient", "plant", []string{"eggplant"}, "", TierContains, 0.15, 0},
		{"contains description", "egg", []string{"rice"}, "Topped with a fried egg.", TierContains, 0.15, 0},
		{"minimal", "tomatos", []string{"tomato"}, "", TierMinimal, 0.05, 0},
		{"decay", "egg durian", []string{"tomato", "egg"}, "", TierExact, 0.25 * 0.85, 1},
		{"strongest wins", "eggp tomato", []string{"tomato", "eggplant"}, "", TierExact, 0.25, 0},
		{"nothing", "durian", []string{"tomato"}, "", "", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newScoringCandidate("dish", tt.ingredients...)
			c.recipe.Description = tt.description

			tier, weight, unmatched := newState(tt.query).keywordTier(c)
			assert.Equal(t, tt.tier, tier)
			assert.InDelta(t, tt.weight, weight, 1e-9)
			assert.Equal(t, tt.unmatched, unmatched)
		})
	}
}

func TestScoreOptionalBonusIsCapped(t *testing.T) {
	s := newState("")
	s.req.OptionalIngredients = NewSet("egg", "tomato", "rice")
	s.req.OptionalCondiments = NewSet("salt")

	c := newCandidate(&models.Recipe{
		ID:          recipeID(1),
		Name:        "Fried Rice",
		Ingredients: ingredients("egg", "protein", "tomato", "vegetable", "rice", "grain"),
		Seasonings:  seasonings("Salt"),
	})

	s.score(c)
	assert.Equal(t, 4, c.breakdown.OptionalMatches)
	assert.InDelta(t, 0.15, c.breakdown.OptionalBonus, 1e-9)
	assert.InDelta(t, 0.15, c.score, 1e-9)
}

func TestScoreAppliesFuzzyRequiredPenalty(t *testing.T) {
	s := newState("carbonara")
	c := newScoringCandidate("Carbonara", "guanciale")
	c.fuzzyRequired = 2

	s.score(c)
	assert.Equal(t, 2, c.breakdown.FuzzyRequired)
	assert.InDelta(t, 0.81, c.breakdown.PenaltyFactor, 1e-9)
	assert.InDelta(t, 0.40*0.81, c.score, 1e-9)
}

func TestScoreClampsToMaxScore(t *testing.T) {
	s := newState("carbonara")
	s.cfg.Weights.MaxScore = 0.3
	c := newScoringCandidate("Carbonara")

	s.score(c)
	assert.InDelta(t, 0.40, c.breakdown.Name, 1e-9)
	assert.InDelta(t, 0.3, c.score, 1e-9)
	assert.Equal(t, c.score, c.breakdown.Total)
}

func TestScoreSemanticThreshold(t *testing.T) {
	s := newState("carbonara")
	s.queryVec = []float32{1, 0}

	below := newScoringCandidate("Pancakes")
	below.embedding = []float32{0.4, 0.9165151}
	s.score(below)
	assert.InDelta(t, 0.4, below.breakdown.Cosine, 1e-6)
	assert.Zero(t, below.breakdown.Semantic)

	above := newScoringCandidate("Pancakes")
	above.embedding = []float32{0.6, 0.8}
	s.score(above)
	assert.InDelta(t, 0.6, above.breakdown.Cosine, 1e-6)
	assert.InDelta(t, 0.25*0.6, above.breakdown.Semantic, 1e-6)
	assert.InDelta(t, above.breakdown.Semantic, above.score, 1e-9)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, CosineSimilarity(nil, nil))
}
