package search

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
)

// Tier names reported in the score breakdown.
const (
	TierExact    = "exact"
	TierFuzzy    = "fuzzy"
	TierSimilar  = "similar"
	TierPrefix   = "prefix"
	TierContains = "contains"
	TierMinimal  = "minimal"
)

// ScoreBreakdown is the per-candidate sub-score record shown in debug mode.
type ScoreBreakdown struct {
	NameTier          string  `json:"name_tier,omitempty"`
	Name              float64 `json:"name"`
	KeywordTier       string  `json:"keyword_tier,omitempty"`
	UnmatchedKeywords int     `json:"unmatched_keywords"`
	Keyword           float64 `json:"keyword"`
	Cosine            float64 `json:"cosine,omitempty"`
	Semantic          float64 `json:"semantic"`
	OptionalMatches   int     `json:"optional_matches"`
	OptionalBonus     float64 `json:"optional_bonus"`
	FuzzyRequired     int     `json:"fuzzy_required"`
	PenaltyFactor     float64 `json:"penalty_factor"`
	Total             float64 `json:"total"`
}

// nameTier picks the single best dish-name tier for the query.
func (s *state) nameTier(name string) (string, float64) {
	if s.query == "" {
		return "", 0
	}
	w := s.cfg.Weights
	name = Normalize(name)
	switch {
	case name == s.query:
		return TierExact, w.NameExact
	case TrigramSimilarity(s.query, name) >= s.cfg.Thresholds.TrgmSimilarity:
		return TierFuzzy, w.NameFuzzy
	}
	for _, kw := range s.keywords {
		if strings.Contains(name, kw) || strings.Contains(kw, name) {
			return TierSimilar, w.NameSimilar
		}
	}
	return "", 0
}

var keywordRank = map[string]int{
	TierExact:    4,
	TierPrefix:   3,
	TierContains: 2,
	TierMinimal:  1,
}

// keywordTier returns the strongest tier any keyword reaches against the
// ingredients or description, the tier weight after decay, and the number of
// keywords that matched nothing.
func (s *state) keywordTier(c *candidate) (string, float64, int) {
	if len(s.keywords) == 0 {
		return "", 0, 0
	}

	description := Normalize(c.recipe.Description)
	best, unmatched := "", 0
	for _, kw := range s.keywords {
		tier := s.matchKeyword(kw, c.ingredients, description)
		if tier == "" {
			unmatched++
			continue
		}
		if keywordRank[tier] > keywordRank[best] {
			best = tier
		}
	}
	if best == "" {
		return "", 0, unmatched
	}

	w := s.cfg.Weights
	weight := map[string]float64{
		TierExact:    w.KeywordExact,
		TierPrefix:   w.KeywordPrefix,
		TierContains: w.KeywordContains,
		TierMinimal:  w.KeywordMinimal,
	}[best]
	return best, weight * math.Pow(w.KeywordDecay, float64(unmatched)), unmatched
}

func (s *state) matchKeyword(kw string, ingredients []string, description string) string {
	tier := ""
	for _, ing := range ingredients {
		switch {
		case ing == kw:
			return TierExact
		case strings.HasPrefix(ing, kw):
			tier = TierPrefix
		case strings.Contains(ing, kw) && keywordRank[tier] < keywordRank[TierContains]:
			tier = TierContains
		}
	}
	if tier != "" {
		return tier
	}
	if strings.Contains(description, kw) {
		return TierContains
	}
	for _, ing := range ingredients {
		if TrigramSimilarity(kw, ing) >= s.cfg.Thresholds.TrgmSimilarity {
			return TierMinimal
		}
	}
	return ""
}

// optionalMatches counts optional ingredients, condiments and categories the
// candidate has.
func (s *state) optionalMatches(c *candidate) int {
	threshold := s.cfg.Thresholds.RequiredIngredients
	n := 0
	count := func(terms Set, names []string) {
		for _, term := range terms {
			if bestMatch(term, names) >= threshold {
				n++
			}
		}
	}
	count(s.req.OptionalIngredients, c.ingredients)
	count(s.req.OptionalCondiments, c.seasonings)
	count(s.req.OptionalIngredientCategories, c.categories)
	return n
}

// score computes the clamped relevance score of c and fills its breakdown.
func (s *state) score(c *candidate) {
	w := s.cfg.Weights
	b := ScoreBreakdown{PenaltyFactor: 1, FuzzyRequired: c.fuzzyRequired}

	b.NameTier, b.Name = s.nameTier(c.recipe.Name)
	b.KeywordTier, b.Keyword, b.UnmatchedKeywords = s.keywordTier(c)

	if s.queryVec != nil && c.embedding != nil {
		b.Cosine = CosineSimilarity(s.queryVec, c.embedding)
		if b.Cosine >= s.cfg.Thresholds.SemanticSimilarity {
			b.Semantic = w.Semantic * b.Cosine
		}
	}

	b.OptionalMatches = s.optionalMatches(c)
	b.OptionalBonus = math.Min(float64(b.OptionalMatches)*w.OptionalMatch, w.OptionalMaxBonus)

	raw := b.Name + b.Keyword + b.Semantic + b.OptionalBonus
	if c.fuzzyRequired > 0 {
		b.PenaltyFactor = math.Pow(w.FuzzyRequiredPenalty, float64(c.fuzzyRequired))
		raw *= b.PenaltyFactor
	}
	b.Total = math.Max(0, math.Min(raw, w.MaxScore))

	c.score = b.Total
	c.breakdown = b
}

// hasQuerySignal reports whether the candidate relates to the free-text
// query at all.
func (b ScoreBreakdown) hasQuerySignal() bool {
	return b.Name > 0 || b.Keyword > 0 || b.Semantic > 0
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// QueryEmbedder returns the embedding of a search query, cached or fresh.
type QueryEmbedder interface {
	GetOrCompute(ctx context.Context, text string) ([]float32, error)
}

// semanticStage embeds the query and attaches recipe embeddings to the
// surviving candidates. Failures disable the semantic signal for this
// request only.
type semanticStage struct {
	corpus   Corpus
	embedder QueryEmbedder
	logger   *slog.Logger
}

func (semanticStage) Name() string { return "semantic" }

func (st semanticStage) Active(s *state) bool {
	return st.embedder != nil && s.req.EnableSemanticSearch && s.query != ""
}

func (st semanticStage) Apply(ctx context.Context, s *state, in []*candidate) ([]*candidate, error) {
	if len(in) == 0 {
		return in, nil
	}

	vec, err := st.embedder.GetOrCompute(ctx, s.query)
	if err != nil {
		if ctx.Err() != nil {
			return in, ctx.Err()
		}
		st.logger.WarnContext(ctx, "query embedding unavailable", "query", s.query, "error", err)
		s.note("semantic: query embedding unavailable, semantic score skipped")
		return in, nil
	}

	ids := make([]uuid.UUID, len(in))
	for i, c := range in {
		ids[i] = c.recipe.ID
	}
	embeddings, err := st.corpus.Embeddings(ctx, ids)
	if err != nil {
		if ctx.Err() != nil {
			return in, ctx.Err()
		}
		st.logger.WarnContext(ctx, "recipe embeddings unavailable", "error", err)
		s.note("semantic: recipe embeddings unavailable, semantic score skipped")
		return in, nil
	}

	s.queryVec = vec
	for _, c := range in {
		c.embedding = embeddings[c.recipe.ID]
	}
	return in, nil
}

type scoreStage struct{}

func (scoreStage) Name() string       { return "score" }
func (scoreStage) Active(*state) bool { return true }
func (scoreStage) Apply(_ context.Context, s *state, in []*candidate) ([]*candidate, error) {
	for _, c := range in {
		s.score(c)
	}
	return in, nil
}

// queryMatchStage drops candidates that have nothing to do with the query,
// so the filtered count is the number of recipes that match it.
type queryMatchStage struct{}

func (queryMatchStage) Name() string         { return "query_match" }
func (queryMatchStage) Active(s *state) bool { return s.query != "" }
func (queryMatchStage) Apply(_ context.Context, _ *state, in []*candidate) ([]*candidate, error) {
	return keep(in, func(c *candidate) bool {
		return c.breakdown.hasQuerySignal()
	}), nil
}
