package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pageza/alchemorsel-v2/search/config"
	"github.com/pageza/alchemorsel-v2/search/internal/models"
)

// ErrSearchUnavailable means the search could not be serviced at all. It is
// never returned for an empty result.
var ErrSearchUnavailable = errors.New("search unavailable")

// Corpus supplies the recipes and their embeddings.
type Corpus interface {
	Recipes(ctx context.Context) ([]models.Recipe, error)
	Embeddings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]float32, error)
}

// ImageResolver turns a stored image reference into a URL clients can load.
type ImageResolver interface {
	ResolveImageURL(ctx context.Context, ref string) (string, error)
}

// Row is one ranked recipe. The counts are carried on every row.
type Row struct {
	models.Recipe
	Score         float64   `json:"score"`
	FilteredCount int       `json:"filtered_count"`
	TotalCount    int       `json:"total_count"`
	Debug         *RowDebug `json:"debug,omitempty"`
}

// RowDebug is attached to each row in debug mode.
type RowDebug struct {
	Scores ScoreBreakdown `json:"scores"`
	Stages []StageTiming  `json:"stages"`
}

// Debug is the request-level debug record.
type Debug struct {
	Stages []StageTiming       `json:"stages"`
	Notes  []string            `json:"notes"`
	Config config.SearchConfig `json:"config"`
}

// Response is the result of one search. FilteredCount and TotalCount do not
// depend on the page.
type Response struct {
	Rows          []Row  `json:"rows"`
	FilteredCount int    `json:"filtered_count"`
	TotalCount    int    `json:"total_count"`
	Page          int    `json:"page"`
	PageSize      int    `json:"page_size"`
	TotalPages    int    `json:"total_pages"`
	Debug         *Debug `json:"debug,omitempty"`
}

// Engine runs the search pipeline over a corpus.
type Engine struct {
	corpus   Corpus
	cfg      config.SearchConfig
	embedder QueryEmbedder
	images   ImageResolver
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmbedder enables semantic scoring.
func WithEmbedder(e QueryEmbedder) Option {
	return func(eng *Engine) { eng.embedder = e }
}

// WithImageResolver resolves image references on returned rows.
func WithImageResolver(r ImageResolver) Option {
	return func(eng *Engine) { eng.images = r }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// NewEngine creates an engine using cfg for every weight and threshold.
func NewEngine(corpus Corpus, cfg config.SearchConfig, opts ...Option) *Engine {
	e := &Engine{
		corpus: corpus,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the constants the engine scores with.
func (e *Engine) Config() config.SearchConfig {
	return e.cfg
}

// effectiveConfig applies the request threshold overrides to cfg and
// returns notes about override combinations that behave unexpectedly.
func (r *Request) effectiveConfig(cfg config.SearchConfig) (config.SearchConfig, []string) {
	if r.TrgmSimilarityThreshold != nil {
		cfg.Thresholds.TrgmSimilarity = *r.TrgmSimilarityThreshold
	}
	if r.SemanticSimilarityThreshold != nil {
		cfg.Thresholds.SemanticSimilarity = *r.SemanticSimilarityThreshold
	}
	if r.RequiredIngredientsThreshold != nil {
		cfg.Thresholds.RequiredIngredients = *r.RequiredIngredientsThreshold
	}
	if r.ForbiddenIngredientsThreshold != nil {
		cfg.Thresholds.ForbiddenIngredients = *r.ForbiddenIngredientsThreshold
	}

	var notes []string
	overridden := r.RequiredIngredientsThreshold != nil || r.ForbiddenIngredientsThreshold != nil
	if overridden && cfg.Thresholds.ForbiddenIngredients < cfg.Thresholds.RequiredIngredients {
		notes = append(notes, fmt.Sprintf(
			"thresholds: forbidden_ingredients_threshold %.2f is below required_ingredients_threshold %.2f, so a term can be required and forbidden at once",
			cfg.Thresholds.ForbiddenIngredients, cfg.Thresholds.RequiredIngredients))
	}
	if r.ForbiddenIngredientsThreshold != nil && cfg.Thresholds.ForbiddenIngredients == 0 {
		notes = append(notes, "thresholds: forbidden_ingredients_threshold 0 excludes any recipe sharing a trigram with a forbidden term")
	}
	return cfg, notes
}

// Search runs the filter stages, scores and sorts the survivors, and returns
// the requested page with counts taken over the whole filtered set.
func (e *Engine) Search(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		req = NewRequest()
	}

	recipes, err := e.corpus.Recipes(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}

	cfg, notes := req.effectiveConfig(e.cfg)
	s := &state{
		req:      req,
		cfg:      cfg,
		query:    req.Query(),
		keywords: req.Keywords(),
		notes:    notes,
	}
	if len(req.Notes) > 0 {
		e.logger.DebugContext(ctx, "search request normalized", "notes", req.Notes)
	}

	cands := make([]*candidate, len(recipes))
	for i := range recipes {
		cands[i] = newCandidate(&recipes[i])
	}

	var timings []StageTiming
	stages := append(filterStages(),
		semanticStage{corpus: e.corpus, embedder: e.embedder, logger: e.logger},
		scoreStage{},
		queryMatchStage{},
		sortStage{},
	)
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !st.Active(s) {
			timings = append(timings, StageTiming{Stage: st.Name(), Skipped: true, In: len(cands), Out: len(cands)})
			continue
		}
		cands, err = timed(st, &timings).Apply(ctx, s, cands)
		if err != nil {
			return nil, err
		}
	}

	filtered := len(cands)
	page := resolvePage(req, s.cfg.Pagination, filtered)
	resp := &Response{
		Rows:          []Row{},
		FilteredCount: filtered,
		TotalCount:    len(recipes),
		Page:          page.Number,
		PageSize:      page.Size,
		TotalPages:    page.TotalPages,
	}
	for _, c := range page.slice(cands) {
		row := Row{
			Recipe:        *c.recipe,
			Score:         c.score,
			FilteredCount: resp.FilteredCount,
			TotalCount:    resp.TotalCount,
		}
		row.ImageURL = e.resolveImage(ctx, row.ImageURL)
		if req.DebugMode {
			row.Debug = &RowDebug{Scores: c.breakdown, Stages: timings}
		}
		resp.Rows = append(resp.Rows, row)
	}

	if req.DebugMode {
		resp.Debug = &Debug{
			Stages: timings,
			Notes:  append(append([]string{}, req.Notes...), s.notes...),
			Config: s.cfg,
		}
	}
	return resp, nil
}

func (e *Engine) resolveImage(ctx context.Context, ref string) string {
	if e.images == nil || ref == "" {
		return ref
	}
	url, err := e.images.ResolveImageURL(ctx, ref)
	if err != nil {
		e.logger.WarnContext(ctx, "image url not resolved", "ref", ref, "error", err)
		return ref
	}
	return url
}
