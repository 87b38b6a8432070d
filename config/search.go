package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SearchWeights holds the additive scoring weights.
type SearchWeights struct {
	NameExact            float64 `yaml:"name_exact" json:"name_exact"`                         // Dish name equals the query
	NameFuzzy            float64 `yaml:"name_fuzzy" json:"name_fuzzy"`                         // Trigram match on the dish name
	NameSimilar          float64 `yaml:"name_similar" json:"name_similar"`                     // Partial dish name match
	KeywordExact         float64 `yaml:"keyword_exact" json:"keyword_exact"`                   // Ingredient equals a keyword
	KeywordPrefix        float64 `yaml:"keyword_prefix" json:"keyword_prefix"`                 // Ingredient starts with a keyword
	KeywordContains      float64 `yaml:"keyword_contains" json:"keyword_contains"`             // Ingredient or description contains a keyword
	KeywordMinimal       float64 `yaml:"keyword_minimal" json:"keyword_minimal"`               // Trigram match on an ingredient
	KeywordDecay         float64 `yaml:"keyword_decay" json:"keyword_decay"`                   // Multiplier per unmatched keyword
	Semantic             float64 `yaml:"semantic" json:"semantic"`                             // Scale for cosine similarity
	OptionalMatch        float64 `yaml:"optional_match" json:"optional_match"`                 // Per matched optional item
	OptionalMaxBonus     float64 `yaml:"optional_max_bonus" json:"optional_max_bonus"`         // Cap on the optional bonus
	FuzzyRequiredPenalty float64 `yaml:"fuzzy_required_penalty" json:"fuzzy_required_penalty"` // Multiplier per fuzzy required match
	MaxScore             float64 `yaml:"max_score" json:"max_score"`                           // Score ceiling
}

// SearchThresholds holds the similarity floors. Comparisons are inclusive.
type SearchThresholds struct {
	TrgmSimilarity       float64 `yaml:"trgm_similarity" json:"trgm_similarity"`
	SemanticSimilarity   float64 `yaml:"semantic_similarity" json:"semantic_similarity"`
	RequiredIngredients  float64 `yaml:"required_ingredients" json:"required_ingredients"`
	ForbiddenIngredients float64 `yaml:"forbidden_ingredients" json:"forbidden_ingredients"`
}

// SearchPagination holds the page size bounds.
type SearchPagination struct {
	DefaultPageSize int `yaml:"default_page_size" json:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size" json:"max_page_size"`
}

// SearchConfig is the single authoritative source of scoring constants.
// It is loaded once at startup and passed by value afterwards.
type SearchConfig struct {
	Weights    SearchWeights    `yaml:"weights" json:"weights"`
	Thresholds SearchThresholds `yaml:"thresholds" json:"thresholds"`
	Pagination SearchPagination `yaml:"pagination" json:"pagination"`
}

// DefaultSearchConfig returns the built-in constants.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Weights: SearchWeights{
			NameExact:            0.40,
			NameFuzzy:            0.30,
			NameSimilar:          0.20,
			KeywordExact:         0.25,
			KeywordPrefix:        0.20,
			KeywordContains:      0.15,
			KeywordMinimal:       0.05,
			KeywordDecay:         0.85,
			Semantic:             0.25,
			OptionalMatch:        0.05,
			OptionalMaxBonus:     0.15,
			FuzzyRequiredPenalty: 0.90,
			MaxScore:             1.0,
		},
		Thresholds: SearchThresholds{
			TrgmSimilarity:       0.30,
			SemanticSimilarity:   0.50,
			RequiredIngredients:  0.30,
			ForbiddenIngredients: 0.50,
		},
		Pagination: SearchPagination{
			DefaultPageSize: 10,
			MaxPageSize:     100,
		},
	}
}

// LoadSearchConfig overlays the YAML file at path onto the defaults.
// An empty path returns the defaults.
func LoadSearchConfig(path string) (SearchConfig, error) {
	cfg := DefaultSearchConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read search config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse search config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that every constant is in range.
func (c SearchConfig) Validate() error {
	var errs []error
	for key, value := range c.Constants() {
		if math.IsNaN(value) || value < 0 {
			errs = append(errs, fmt.Errorf("%s must be a non-negative number, got %v", key, value))
		}
	}

	unit := map[string]float64{
		"thresholds.trgm_similarity":       c.Thresholds.TrgmSimilarity,
		"thresholds.semantic_similarity":   c.Thresholds.SemanticSimilarity,
		"thresholds.required_ingredients":  c.Thresholds.RequiredIngredients,
		"thresholds.forbidden_ingredients": c.Thresholds.ForbiddenIngredients,
		"weights.keyword_decay":            c.Weights.KeywordDecay,
		"weights.fuzzy_required_penalty":   c.Weights.FuzzyRequiredPenalty,
	}
	for key, value := range unit {
		if value > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", key, value))
		}
	}

	if c.Weights.MaxScore <= 0 {
		errs = append(errs, errors.New("weights.max_score must be positive"))
	}
	if c.Thresholds.ForbiddenIngredients < c.Thresholds.RequiredIngredients {
		errs = append(errs, errors.New("thresholds.forbidden_ingredients must not be lower than thresholds.required_ingredients"))
	}
	if c.Pagination.DefaultPageSize < 1 || c.Pagination.MaxPageSize < c.Pagination.DefaultPageSize {
		errs = append(errs, errors.New("pagination requires 1 <= default_page_size <= max_page_size"))
	}

	return errors.Join(errs...)
}

// Constants flattens the configuration into dotted keys, the form used by
// the parity check and by client display logic.
func (c SearchConfig) Constants() map[string]float64 {
	w, t, p := c.Weights, c.Thresholds, c.Pagination
	return map[string]float64{
		"weights.name_exact":               w.NameExact,
		"weights.name_fuzzy":               w.NameFuzzy,
		"weights.name_similar":             w.NameSimilar,
		"weights.keyword_exact":            w.KeywordExact,
		"weights.keyword_prefix":           w.KeywordPrefix,
		"weights.keyword_contains":         w.KeywordContains,
		"weights.keyword_minimal":          w.KeywordMinimal,
		"weights.keyword_decay":            w.KeywordDecay,
		"weights.semantic":                 w.Semantic,
		"weights.optional_match":           w.OptionalMatch,
		"weights.optional_max_bonus":       w.OptionalMaxBonus,
		"weights.fuzzy_required_penalty":   w.FuzzyRequiredPenalty,
		"weights.max_score":                w.MaxScore,
		"thresholds.trgm_similarity":       t.TrgmSimilarity,
		"thresholds.semantic_similarity":   t.SemanticSimilarity,
		"thresholds.required_ingredients":  t.RequiredIngredients,
		"thresholds.forbidden_ingredients": t.ForbiddenIngredients,
		"pagination.default_page_size":     float64(p.DefaultPageSize),
		"pagination.max_page_size":         float64(p.MaxPageSize),
	}
}

// Drift describes one disagreement between two constant sets.
type Drift struct {
	Key      string
	Expected *float64
	Actual   *float64
}

func (d Drift) String() string {
	switch {
	case d.Expected == nil:
		return fmt.Sprintf("%s: unknown constant (value %v)", d.Key, *d.Actual)
	case d.Actual == nil:
		return fmt.Sprintf("%s: missing (expected %v)", d.Key, *d.Expected)
	default:
		return fmt.Sprintf("%s: expected %v, got %v", d.Key, *d.Expected, *d.Actual)
	}
}

// constantTolerance absorbs float formatting noise only.
const constantTolerance = 1e-9

// CompareConstants compares every key of expected and actual pairwise and
// reports value mismatches and keys present on only one side, sorted by key.
func CompareConstants(expected, actual map[string]float64) []Drift {
	keys := make(map[string]struct{}, len(expected)+len(actual))
	for k := range expected {
		keys[k] = struct{}{}
	}
	for k := range actual {
		keys[k] = struct{}{}
	}

	var drifts []Drift
	for k := range keys {
		e, eok := expected[k]
		a, aok := actual[k]
		switch {
		case !eok:
			drifts = append(drifts, Drift{Key: k, Actual: &a})
		case !aok:
			drifts = append(drifts, Drift{Key: k, Expected: &e})
		case math.Abs(e-a) > constantTolerance:
			drifts = append(drifts, Drift{Key: k, Expected: &e, Actual: &a})
		}
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].Key < drifts[j].Key })
	return drifts
}

// ReadConstantsFile reads a flat map of dotted keys to numbers. YAML and JSON
// files are both accepted. Nested maps are flattened with dots.
func ReadConstantsFile(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read constants file %s: %w", path, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse constants file %s: %w", path, err)
	}

	out := make(map[string]float64)
	if err := flattenConstants("", raw, out); err != nil {
		return nil, fmt.Errorf("constants file %s: %w", path, err)
	}
	return out, nil
}

func flattenConstants(prefix string, raw map[string]interface{}, out map[string]float64) error {
	for k, v := range raw {
		key := strings.TrimPrefix(prefix+"."+k, ".")
		switch val := v.(type) {
		case map[string]interface{}:
			if err := flattenConstants(key, val, out); err != nil {
				return err
			}
		case int:
			out[key] = float64(val)
		case float64:
			out[key] = val
		default:
			return fmt.Errorf("%s: expected a number, got %T", key, v)
		}
	}
	return nil
}
