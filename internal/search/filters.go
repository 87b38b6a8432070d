package search

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pageza/alchemorsel-v2/search/config"
	"github.com/pageza/alchemorsel-v2/search/internal/models"
)

var tracer = otel.Tracer("recipe-search")

// candidate is a recipe moving through the pipeline together with the
// annotations later stages read.
type candidate struct {
	recipe    *models.Recipe
	embedding []float32

	// names are normalized once; every stage compares against them.
	ingredients []string
	categories  []string
	seasonings  []string

	fuzzyRequired int
	score         float64
	breakdown     ScoreBreakdown
}

func newCandidate(r *models.Recipe) *candidate {
	c := &candidate{recipe: r}
	for _, ing := range r.Ingredients {
		if n := Normalize(ing.Name); n != "" {
			c.ingredients = append(c.ingredients, n)
		}
		if cat := Normalize(ing.Category); cat != "" {
			c.categories = append(c.categories, cat)
		}
	}
	for _, s := range r.Seasonings {
		if n := Normalize(s.Name); n != "" {
			c.seasonings = append(c.seasonings, n)
		}
	}
	return c
}

// state is what one request carries through the stages.
type state struct {
	req      *Request
	cfg      config.SearchConfig
	query    string
	keywords []string
	queryVec []float32
	notes    []string
}

func (s *state) note(msg string) {
	s.notes = append(s.notes, msg)
}

// stage is one step of the pipeline. Filter stages only narrow; the
// semantic and scoring stages annotate.
type stage interface {
	Name() string
	Active(s *state) bool
	Apply(ctx context.Context, s *state, in []*candidate) ([]*candidate, error)
}

// StageTiming is the debug record of one stage run.
type StageTiming struct {
	Stage      string  `json:"stage"`
	Skipped    bool    `json:"skipped,omitempty"`
	In         int     `json:"in"`
	Out        int     `json:"out"`
	DurationMS float64 `json:"duration_ms"`
}

// timedStage records every run of the wrapped stage and opens a span for it.
type timedStage struct {
	stage
	timings *[]StageTiming
}

func timed(s stage, timings *[]StageTiming) stage {
	return &timedStage{stage: s, timings: timings}
}

func (t *timedStage) Apply(ctx context.Context, s *state, in []*candidate) ([]*candidate, error) {
	ctx, span := tracer.Start(ctx, "search."+t.Name(),
		trace.WithAttributes(attribute.Int("search.candidates_in", len(in))),
	)
	defer span.End()

	start := time.Now()
	out, err := t.stage.Apply(ctx, s, in)
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Int("search.candidates_out", len(out)))
	if err != nil {
		span.RecordError(err)
	}
	*t.timings = append(*t.timings, StageTiming{
		Stage:      t.Name(),
		In:         len(in),
		Out:        len(out),
		DurationMS: float64(elapsed.Microseconds()) / 1000,
	})
	return out, err
}

// filterStages returns the narrowing stages in their fixed order.
func filterStages() []stage {
	return []stage{
		cuisineStage{},
		flavorStage{},
		difficultyStage{},
		dietaryStage{},
		requiredIngredientStage{},
		requiredCategoryStage{},
		requiredCondimentStage{},
		forbiddenIngredientStage{},
		dishNameStage{},
	}
}

// keep returns the candidates for which pred holds. It reuses in's backing
// array.
func keep(in []*candidate, pred func(c *candidate) bool) []*candidate {
	out := in[:0]
	for _, c := range in {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}

// matchTags applies set logic: OR needs one wanted value among values, AND
// needs all of them.
func matchTags(values []string, wanted Set, logic Logic) bool {
	have := make(map[string]struct{}, len(values))
	for _, v := range values {
		have[Normalize(v)] = struct{}{}
	}
	for _, w := range wanted {
		_, ok := have[w]
		if logic == LogicOr && ok {
			return true
		}
		if logic == LogicAnd && !ok {
			return false
		}
	}
	return logic == LogicAnd
}

type cuisineStage struct{}

func (cuisineStage) Name() string         { return "cuisine" }
func (cuisineStage) Active(s *state) bool { return s.req.Cuisines.Active() }
func (cuisineStage) Apply(_ context.Context, s *state, in []*candidate) ([]*candidate, error) {
	logic := s.req.logicFor(CategoryCuisines)
	return keep(in, func(c *candidate) bool {
		return matchTags([]string{c.recipe.Cuisine}, s.req.Cuisines, logic)
	}), nil
}

type flavorStage struct{}

func (flavorStage) Name() string         { return "flavor" }
func (flavorStage) Active(s *state) bool { return s.req.Flavors.Active() }
func (flavorStage) Apply(_ context.Context, s *state, in []*candidate) ([]*candidate, error) {
	logic := s.req.logicFor(CategoryFlavors)
	return keep(in, func(c *candidate) bool {
		return matchTags(c.recipe.Flavors, s.req.Flavors, logic)
	}), nil
}

type difficultyStage struct{}

func (difficultyStage) Name() string         { return "difficulty" }
func (difficultyStage) Active(s *state) bool { return s.req.Difficulties.Active() }
func (difficultyStage) Apply(_ context.Context, s *state, in []*candidate) ([]*candidate, error) {
	logic := s.req.logicFor(CategoryDifficulties)
	return keep(in, func(c *candidate) bool {
		return matchTags([]string{string(c.recipe.Difficulty)}, s.req.Difficulties, logic)
	}), nil
}

// dietaryFlags maps restriction names onto recipe flags.
var dietaryFlags = map[string]func(r *models.Recipe) bool{
	"vegan":       func(r *models.Recipe) bool { return r.IsVegan },
	"halal":       func(r *models.Recipe) bool { return r.IsHalal },
	"gluten_free": func(r *models.Recipe) bool { return r.IsGlutenFree },
}

// canonicalDietary maps the accepted spellings of a restriction onto its
// flag name.
func canonicalDietary(name string) (string, bool) {
	n := strings.NewReplacer("-", "_", " ", "_").Replace(Normalize(name))
	if n == "glutenfree" {
		n = "gluten_free"
	}
	_, ok := dietaryFlags[n]
	return n, ok
}

type dietaryStage struct{}

func (dietaryStage) Name() string         { return "dietary" }
func (dietaryStage) Active(s *state) bool { return s.req.DietaryRestrictions.Active() }
func (dietaryStage) Apply(_ context.Context, s *state, in []*candidate) ([]*candidate, error) {
	var flags []func(r *models.Recipe) bool
	for _, name := range s.req.DietaryRestrictions {
		canonical, ok := canonicalDietary(name)
		if !ok {
			s.note("dietary_restrictions: unknown restriction " + name + " ignored")
			continue
		}
		flags = append(flags, dietaryFlags[canonical])
	}
	if len(flags) == 0 {
		return in, nil
	}
	return keep(in, func(c *candidate) bool {
		for _, flag := range flags {
			if !flag(c.recipe) {
				return false
			}
		}
		return true
	}), nil
}

// requireAll keeps candidates where every term matches one of names(c) at
// the threshold, and returns how many matches per candidate were fuzzy.
func requireAll(in []*candidate, terms Set, threshold float64, names func(c *candidate) []string, onFuzzy func(c *candidate, n int)) []*candidate {
	return keep(in, func(c *candidate) bool {
		fuzzy := 0
		for _, term := range terms {
			sim := bestMatch(term, names(c))
			if sim < threshold {
				return false
			}
			if sim < 1 {
				fuzzy++
			}
		}
		if onFuzzy != nil {
			onFuzzy(c, fuzzy)
		}
		return true
	})
}

type requiredIngredientStage struct{}

func (requiredIngredientStage) Name() string         { return "required_ingredients" }
func (requiredIngredientStage) Active(s *state) bool { return s.req.RequiredIngredients.Active() }
func (requiredIngredientStage) Apply(_ context.Context, s *state, in []*candidate) ([]*candidate, error) {
	return requireAll(in, s.req.RequiredIngredients, s.cfg.Thresholds.RequiredIngredients,
		func(c *candidate) []string { return c.ingredients },
		func(c *candidate, n int) { c.fuzzyRequired = n },
	), nil
}

type requiredCategoryStage struct{}

func (requiredCategoryStage) Name() string { return "required_ingredient_categories" }
func (requiredCategoryStage) Active(s *state) bool {
	return s.req.RequiredIngredientCategories.Active()
}
func (requiredCategoryStage) Apply(_ context.Context, s *state, in []*candidate) ([]*candidate, error) {
	return requireAll(in, s.req.RequiredIngredientCategories, s.cfg.Thresholds.RequiredIngredients,
		func(c *candidate) []string { return c.categories }, nil,
	), nil
}

type requiredCondimentStage struct{}

func (requiredCondimentStage) Name() string         { return "required_condiments" }
func (requiredCondimentStage) Active(s *state) bool { return s.req.RequiredCondiments.Active() }
func (requiredCondimentStage) Apply(_ context.Context, s *state, in []*candidate) ([]*candidate, error) {
	return requireAll(in, s.req.RequiredCondiments, s.cfg.Thresholds.RequiredIngredients,
		func(c *candidate) []string { return c.seasonings }, nil,
	), nil
}

type forbiddenIngredientStage struct{}

func (forbiddenIngredientStage) Name() string         { return "forbidden_ingredients" }
func (forbiddenIngredientStage) Active(s *state) bool { return s.req.ForbiddenIngredients.Active() }
func (forbiddenIngredientStage) Apply(_ context.Context, s *state, in []*candidate) ([]*candidate, error) {
	threshold := s.cfg.Thresholds.ForbiddenIngredients
	// a term with no similarity at all never excludes, even at threshold 0
	forbids := func(sim float64) bool { return sim > 0 && sim >= threshold }
	return keep(in, func(c *candidate) bool {
		for _, term := range s.req.ForbiddenIngredients {
			if forbids(bestMatch(term, c.ingredients)) || forbids(bestMatch(term, c.seasonings)) {
				return false
			}
		}
		return true
	}), nil
}

type dishNameStage struct{}

func (dishNameStage) Name() string         { return "dish_name_keywords" }
func (dishNameStage) Active(s *state) bool { return s.req.DishNameKeywords.Active() }
func (dishNameStage) Apply(_ context.Context, s *state, in []*candidate) ([]*candidate, error) {
	logic := s.req.logicFor(CategoryDishNameKeywords)
	threshold := s.cfg.Thresholds.TrgmSimilarity
	return keep(in, func(c *candidate) bool {
		name := Normalize(c.recipe.Name)
		for _, kw := range s.req.DishNameKeywords {
			ok := strings.Contains(name, kw) || TrigramSimilarity(kw, name) >= threshold
			if logic == LogicOr && ok {
				return true
			}
			if logic == LogicAnd && !ok {
				return false
			}
		}
		return logic == LogicAnd
	}), nil
}
