package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pageza/alchemorsel-v2/search/config"
)

func TestResolvePage(t *testing.T) {
	bounds := config.DefaultSearchConfig().Pagination

	tests := []struct {
		name     string
		req      Request
		filtered int
		want     Page
	}{
		{"defaults", Request{}, 25, Page{Number: 1, Size: 10, TotalPages: 3}},
		{"negative page", Request{Page: -4, PageSize: 5}, 25, Page{Number: 1, Size: 5, TotalPages: 5}},
		{"capped size", Request{Page: 2, PageSize: 500}, 250, Page{Number: 2, Size: 100, TotalPages: 3}},
		{"past the end", Request{Page: 100, PageSize: 50}, 2, Page{Number: 100, Size: 50, TotalPages: 1}},
		{"no matches", Request{Page: 1, PageSize: 10}, 0, Page{Number: 1, Size: 10, TotalPages: 0}},
		{"return all", Request{Page: 3, PageSize: 20, ReturnAllResults: true}, 250, Page{Number: 1, Size: 250, TotalPages: 1}},
		{"return all small", Request{ReturnAllResults: true}, 4, Page{Number: 1, Size: 10, TotalPages: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			assert.Equal(t, tt.want, resolvePage(&req, bounds, tt.filtered))
		})
	}
}

func TestPageSlice(t *testing.T) {
	cands := make([]*candidate, 5)
	for i := range cands {
		cands[i] = &candidate{}
	}

	assert.Len(t, Page{Number: 1, Size: 2}.slice(cands), 2)
	assert.Len(t, Page{Number: 3, Size: 2}.slice(cands), 1)
	assert.Empty(t, Page{Number: 4, Size: 2}.slice(cands))
	assert.Empty(t, Page{Number: 1, Size: 2}.slice(nil))
}
