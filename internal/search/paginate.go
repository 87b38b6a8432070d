package search

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/pageza/alchemorsel-v2/search/config"
)

// sortStage orders the candidates by the requested field. With
// stabilize_results every tie is broken by recipe id ascending.
type sortStage struct{}

func (sortStage) Name() string       { return "sort" }
func (sortStage) Active(*state) bool { return true }
func (sortStage) Apply(_ context.Context, s *state, in []*candidate) ([]*candidate, error) {
	sortCandidates(in, s.req.SortField, s.req.SortDirection, s.req.StabilizeResults)
	return in, nil
}

func sortCandidates(cands []*candidate, field SortField, dir SortDirection, stabilize bool) {
	if dir == "" {
		dir = SortAsc
		if field == SortRelevance || field == SortNewest || field == "" {
			dir = SortDesc
		}
	}

	cmp := func(a, b *candidate) int {
		switch field {
		case SortCookingTime:
			return compareInt(a.recipe.CookingTime, b.recipe.CookingTime)
		case SortName:
			return strings.Compare(Normalize(a.recipe.Name), Normalize(b.recipe.Name))
		case SortCreatedAt, SortNewest:
			return a.recipe.CreatedAt.Compare(b.recipe.CreatedAt)
		default:
			return compareFloat(a.score, b.score)
		}
	}

	less := func(i, j int) bool {
		a, b := cands[i], cands[j]
		c := cmp(a, b)
		if dir == SortDesc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		if stabilize {
			return bytes.Compare(a.recipe.ID[:], b.recipe.ID[:]) < 0
		}
		return false
	}

	if stabilize {
		sort.SliceStable(cands, less)
		return
	}
	sort.Slice(cands, less)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Page is the resolved pagination of one response.
type Page struct {
	Number     int
	Size       int
	TotalPages int
}

// resolvePage clamps the requested page and page size. With
// return_all_results everything is returned on page 1.
func resolvePage(req *Request, p config.SearchPagination, filtered int) Page {
	page := Page{Number: req.Page, Size: req.PageSize}
	if page.Number < 1 {
		page.Number = 1
	}
	if page.Size < 1 {
		page.Size = p.DefaultPageSize
	}

	if req.ReturnAllResults {
		page.Number = 1
		if filtered > page.Size {
			page.Size = filtered
		}
	} else if page.Size > p.MaxPageSize {
		page.Size = p.MaxPageSize
	}

	page.TotalPages = (filtered + page.Size - 1) / page.Size
	return page
}

// slice returns the candidates of the page. Pages past the end are empty.
func (p Page) slice(cands []*candidate) []*candidate {
	offset := (p.Number - 1) * p.Size
	if offset >= len(cands) || offset < 0 {
		return nil
	}
	end := offset + p.Size
	if end > len(cands) || end < offset {
		end = len(cands)
	}
	return cands[offset:end]
}
