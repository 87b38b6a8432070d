package search

import (
	"strings"
)

// Set is a normalized collection parameter. A nil Set and an empty Set are
// the same thing: the constraint is inactive.
type Set []string

// NewSet normalizes values, drops blanks and duplicates, and returns nil
// when nothing is left.
func NewSet(values ...string) Set {
	var out Set
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		n := Normalize(v)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Active reports whether the constraint applies.
func (s Set) Active() bool {
	return len(s) > 0
}

// Logic combines the members of one set parameter.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

func parseLogic(s string) (Logic, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AND", "ALL":
		return LogicAnd, true
	case "OR", "ANY":
		return LogicOr, true
	}
	return "", false
}

// Category names accepted in Request.CategoryLogic.
const (
	CategoryCuisines         = "cuisines"
	CategoryFlavors          = "flavors"
	CategoryDifficulties     = "difficulties"
	CategoryDishNameKeywords = "dish_name_keywords"
)

// SortField selects the primary ordering.
type SortField string

const (
	SortRelevance   SortField = "relevance"
	SortCookingTime SortField = "cooking_time"
	SortName        SortField = "name"
	SortCreatedAt   SortField = "created_at"
	SortNewest      SortField = "newest"
)

func parseSortField(s string) (SortField, bool) {
	switch Normalize(s) {
	case "relevance", "score", "":
		return SortRelevance, true
	case "cooking_time", "time":
		return SortCookingTime, true
	case "name":
		return SortName, true
	case "created_at":
		return SortCreatedAt, true
	case "newest", "latest":
		return SortNewest, true
	}
	return "", false
}

// SortDirection is asc or desc. Empty means the field's natural direction.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Request is the canonical, fully normalized search request. Internal stages
// rely on it and never re-check parameter shapes.
type Request struct {
	SearchQuery string

	RequiredIngredients  Set
	OptionalIngredients  Set
	ForbiddenIngredients Set
	RequiredCondiments   Set
	OptionalCondiments   Set
	DishNameKeywords     Set

	Cuisines            Set
	Flavors             Set
	Difficulties        Set
	DietaryRestrictions Set

	RequiredIngredientCategories Set
	OptionalIngredientCategories Set

	Page          int
	PageSize      int
	SortField     SortField
	SortDirection SortDirection

	ReturnAllResults     bool
	DebugMode            bool
	StabilizeResults     bool
	EnableSemanticSearch bool

	// TagLogic is the default logic for flavors; CategoryLogic overrides it
	// per category.
	TagLogic      Logic
	CategoryLogic map[string]Logic

	// Threshold overrides; nil means the configured value.
	TrgmSimilarityThreshold       *float64
	SemanticSimilarityThreshold   *float64
	RequiredIngredientsThreshold  *float64
	ForbiddenIngredientsThreshold *float64

	// Notes records every shape normalization applied at the edge. They are
	// surfaced in debug mode.
	Notes []string
}

// logicFor resolves the logic used for a category.
func (r *Request) logicFor(category string) Logic {
	if l, ok := r.CategoryLogic[category]; ok {
		return l
	}
	if category == CategoryFlavors && r.TagLogic != "" {
		return r.TagLogic
	}
	return LogicOr
}

// Query returns the normalized free-text query.
func (r *Request) Query() string {
	return Normalize(r.SearchQuery)
}

// Keywords splits the query into distinct search terms.
func (r *Request) Keywords() []string {
	fields := strings.FieldsFunc(r.Query(), func(c rune) bool {
		switch c {
		case ' ', ',', '，', '、', ';', '；', '\t':
			return true
		}
		return false
	})
	return []string(NewSet(fields...))
}
