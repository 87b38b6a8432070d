package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pageza/alchemorsel-v2/search/config"
	"github.com/pageza/alchemorsel-v2/search/internal/models"
)

type memCorpus struct {
	recipes    []models.Recipe
	embeddings map[uuid.UUID][]float32
	err        error
	embedErr   error
}

func (c *memCorpus) Recipes(ctx context.Context) ([]models.Recipe, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make([]models.Recipe, len(c.recipes))
	copy(out, c.recipes)
	return out, nil
}

func (c *memCorpus) Embeddings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]float32, error) {
	if c.embedErr != nil {
		return nil, c.embedErr
	}
	out := make(map[uuid.UUID][]float32)
	for _, id := range ids {
		if v, ok := c.embeddings[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type staticEmbedder struct {
	vec []float32
	err error
}

func (e staticEmbedder) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	return e.vec, e.err
}

func recipeID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

func ingredients(pairs ...string) models.JSONBList[models.Ingredient] {
	list := models.JSONBList[models.Ingredient]{}
	for i := 0; i+1 < len(pairs); i += 2 {
		list = append(list, models.Ingredient{Name: pairs[i], Category: pairs[i+1]})
	}
	return list
}

func seasonings(names ...string) models.JSONBList[models.Ingredient] {
	list := models.JSONBList[models.Ingredient]{}
	for _, n := range names {
		list = append(list, models.Ingredient{Name: n, Category: "condiment"})
	}
	return list
}

// testRecipes is a small fixed corpus. Ids are inserted out of order so
// tie-breaking by id is visible.
func testRecipes() []models.Recipe {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.Recipe{
		{
			ID:          recipeID(7),
			Name:        "西红柿鸡蛋面",
			Cuisine:     "chinese",
			Description: "家常面条",
			Ingredients: ingredients("面条", "grain", "西红柿", "vegetable", "鸡蛋", "protein"),
			Seasonings:  seasonings("盐"),
			Flavors:     models.JSONBList[string]{"酸甜"},
			Difficulty:  "easy",
			CookingTime: 20,
			CreatedAt:   base.Add(7 * time.Hour),
		},
		{
			ID:           recipeID(1),
			Name:         "西红柿炒鸡蛋",
			Cuisine:      "chinese",
			Description:  "经典快手菜",
			Ingredients:  ingredients("西红柿", "vegetable", "鸡蛋", "protein"),
			Seasonings:   seasonings("盐", "糖"),
			Flavors:      models.JSONBList[string]{"酸甜"},
			Difficulty:   "easy",
			CookingTime:  15,
			IsHalal:      true,
			IsGlutenFree: true,
			ImageURL:     "recipes/1.jpg",
			CreatedAt:    base.Add(1 * time.Hour),
		},
		{
			ID:           recipeID(2),
			Name:         "土鸡蛋羹",
			Cuisine:      "chinese",
			Description:  "嫩滑蒸蛋",
			Ingredients:  ingredients("土鸡蛋", "protein", "葱", "vegetable"),
			Seasonings:   seasonings("生抽"),
			Flavors:      models.JSONBList[string]{"咸鲜"},
			Difficulty:   "easy",
			CookingTime:  20,
			IsHalal:      true,
			IsGlutenFree: true,
			CreatedAt:    base.Add(2 * time.Hour),
		},
		{
			ID:          recipeID(3),
			Name:        "洋葱炒牛肉",
			Cuisine:     "chinese",
			Description: "下饭菜",
			Ingredients: ingredients("洋葱", "vegetable", "牛肉", "protein"),
			Seasonings:  seasonings("酱油", "黑胡椒"),
			Flavors:     models.JSONBList[string]{"咸鲜"},
			Difficulty:  "medium",
			CookingTime: 25,
			IsHalal:     true,
			CreatedAt:   base.Add(3 * time.Hour),
		},
		{
			ID:          recipeID(4),
			Name:        "番茄牛腩",
			Cuisine:     "chinese",
			Description: "炖菜",
			Ingredients: ingredients("番茄", "vegetable", "牛腩", "protein", "洋葱", "vegetable"),
			Seasonings:  seasonings("盐"),
			Flavors:     models.JSONBList[string]{"酸甜", "咸鲜"},
			Difficulty:  "hard",
			CookingTime: 120,
			IsHalal:     true,
			CreatedAt:   base.Add(4 * time.Hour),
		},
		{
			ID:          recipeID(5),
			Name:        "麻婆豆腐",
			Cuisine:     "sichuan",
			Description: "麻辣鲜香",
			Ingredients: ingredients("豆腐", "protein", "牛肉末", "protein"),
			Seasonings:  seasonings("豆瓣酱", "花椒"),
			Flavors:     models.JSONBList[string]{"麻辣"},
			Difficulty:  "medium",
			CookingTime: 30,
			CreatedAt:   base.Add(5 * time.Hour),
		},
		{
			ID:          recipeID(6),
			Name:        "凉拌黄瓜",
			Cuisine:     "chinese",
			Description: "清爽凉菜",
			Ingredients: ingredients("黄瓜", "vegetable", "大蒜", "vegetable"),
			Seasonings:  seasonings("醋", "盐"),
			Flavors:     models.JSONBList[string]{"酸辣"},
			Difficulty:  "easy",
			CookingTime: 10,
			IsVegan:     true,
			CreatedAt:   base.Add(6 * time.Hour),
		},
		{
			ID:          recipeID(8),
			Name:        "Spaghetti Carbonara",
			Cuisine:     "italian",
			Description: "Roman pasta with eggs and cheese",
			Ingredients: ingredients("spaghetti", "grain", "eggs", "protein", "bacon", "protein", "parmesan", "dairy"),
			Seasonings:  seasonings("black pepper"),
			Flavors:     models.JSONBList[string]{"savory"},
			Difficulty:  "medium",
			CookingTime: 25,
			CreatedAt:   base.Add(8 * time.Hour),
		},
		{
			ID:           recipeID(9),
			Name:         "Vegan Buddha Bowl",
			Cuisine:      "american",
			Description:  "Grain bowl",
			Ingredients:  ingredients("quinoa", "grain", "chickpeas", "legume", "avocado", "fruit"),
			Seasonings:   seasonings("tahini"),
			Flavors:      models.JSONBList[string]{"savory"},
			Difficulty:   "easy",
			CookingTime:  15,
			IsVegan:      true,
			IsGlutenFree: true,
			CreatedAt:    base.Add(9 * time.Hour),
		},
	}
}

func newTestEngine(opts ...Option) (*Engine, *memCorpus) {
	corpus := &memCorpus{recipes: testRecipes()}
	return NewEngine(corpus, config.DefaultSearchConfig(), opts...), corpus
}

// run parses body the way the RPC edge does and searches.
func run(t *testing.T, eng *Engine, body string) *Response {
	t.Helper()
	req, err := ParseRequest([]byte(body))
	require.NoError(t, err)
	resp, err := eng.Search(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func ids(resp *Response) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		out = append(out, r.ID)
	}
	return out
}
