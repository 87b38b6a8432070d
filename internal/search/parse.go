package search

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidRequest is returned when the request body is not a JSON object.
// Every other shape problem is normalized instead of rejected.
var ErrInvalidRequest = errors.New("search request must be a JSON object")

type setField func(r *Request) *Set

var setParams = map[string]setField{
	"required_ingredients":           func(r *Request) *Set { return &r.RequiredIngredients },
	"optional_ingredients":           func(r *Request) *Set { return &r.OptionalIngredients },
	"forbidden_ingredients":          func(r *Request) *Set { return &r.ForbiddenIngredients },
	"required_condiments":            func(r *Request) *Set { return &r.RequiredCondiments },
	"optional_condiments":            func(r *Request) *Set { return &r.OptionalCondiments },
	"dish_name_keywords":             func(r *Request) *Set { return &r.DishNameKeywords },
	"cuisines":                       func(r *Request) *Set { return &r.Cuisines },
	"flavors":                        func(r *Request) *Set { return &r.Flavors },
	"difficulties":                   func(r *Request) *Set { return &r.Difficulties },
	"dietary_restrictions":           func(r *Request) *Set { return &r.DietaryRestrictions },
	"required_ingredient_categories": func(r *Request) *Set { return &r.RequiredIngredientCategories },
	"optional_ingredient_categories": func(r *Request) *Set { return &r.OptionalIngredientCategories },
}

type boolField func(r *Request) *bool

var boolParams = map[string]boolField{
	"return_all_results":     func(r *Request) *bool { return &r.ReturnAllResults },
	"debug_mode":             func(r *Request) *bool { return &r.DebugMode },
	"stabilize_results":      func(r *Request) *bool { return &r.StabilizeResults },
	"enable_semantic_search": func(r *Request) *bool { return &r.EnableSemanticSearch },
}

type thresholdField func(r *Request) **float64

var thresholdParams = map[string]thresholdField{
	"trgm_similarity_threshold":       func(r *Request) **float64 { return &r.TrgmSimilarityThreshold },
	"semantic_similarity_threshold":   func(r *Request) **float64 { return &r.SemanticSimilarityThreshold },
	"required_ingredients_threshold":  func(r *Request) **float64 { return &r.RequiredIngredientsThreshold },
	"forbidden_ingredients_threshold": func(r *Request) **float64 { return &r.ForbiddenIngredientsThreshold },
}

// NewRequest returns a request with the edge defaults applied.
func NewRequest() *Request {
	return &Request{
		Page:                 1,
		SortField:            SortRelevance,
		TagLogic:             LogicOr,
		EnableSemanticSearch: true,
	}
}

// ParseRequest decodes the flat RPC parameter object. Scalars where arrays
// are expected become singleton sets, null and [] both mean "no
// constraint", and every coercion is recorded in Request.Notes.
func ParseRequest(data []byte) (*Request, error) {
	req := NewRequest()
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return req, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	// Sorted keys keep the notes stable across identical requests.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		switch {
		case setParams[key] != nil:
			*setParams[key](req) = decodeSet(req, key, value)
		case boolParams[key] != nil:
			if b, ok := decodeBool(req, key, value); ok {
				*boolParams[key](req) = b
			}
		case thresholdParams[key] != nil:
			*thresholdParams[key](req) = decodeThreshold(req, key, value)
		case key == "search_query":
			req.SearchQuery = decodeQuery(req, value)
		case key == "page":
			if n, ok := decodeInt(req, key, value); ok {
				req.Page = n
			}
		case key == "page_size":
			if n, ok := decodeInt(req, key, value); ok {
				req.PageSize = n
			}
		case key == "sort_field":
			if s, ok := decodeString(req, key, value); ok {
				if f, valid := parseSortField(s); valid {
					req.SortField = f
				} else {
					req.note("%s: unknown value %q, using %s", key, s, SortRelevance)
				}
			}
		case key == "sort_direction":
			if s, ok := decodeString(req, key, value); ok {
				switch Normalize(s) {
				case "asc", "ascending":
					req.SortDirection = SortAsc
				case "desc", "descending":
					req.SortDirection = SortDesc
				case "":
				default:
					req.note("%s: unknown value %q ignored", key, s)
				}
			}
		case key == "tag_logic":
			if s, ok := decodeString(req, key, value); ok && s != "" {
				if l, valid := parseLogic(s); valid {
					req.TagLogic = l
				} else {
					req.note("%s: unknown value %q, using %s", key, s, LogicOr)
				}
			}
		case key == "category_logic":
			req.CategoryLogic = decodeCategoryLogic(req, value)
		default:
			req.note("%s: unknown parameter ignored", key)
		}
	}

	return req, nil
}

// ParseQuery maps URL query parameters onto the same canonical request.
// Sets are comma separated; repeated keys are merged.
func ParseQuery(values url.Values) (*Request, error) {
	obj := make(map[string]interface{}, len(values))
	for key, vals := range values {
		switch {
		case setParams[key] != nil:
			var items []string
			for _, v := range vals {
				items = append(items, splitList(v)...)
			}
			obj[key] = items
		case boolParams[key] != nil:
			b, err := strconv.ParseBool(vals[0])
			if err != nil {
				obj[key] = vals[0]
			} else {
				obj[key] = b
			}
		case thresholdParams[key] != nil:
			f, err := strconv.ParseFloat(vals[0], 64)
			if err != nil {
				obj[key] = vals[0]
			} else {
				obj[key] = f
			}
		case key == "page" || key == "page_size":
			n, err := strconv.Atoi(vals[0])
			if err != nil {
				obj[key] = vals[0]
			} else {
				obj[key] = n
			}
		case key == "category_logic":
			logic := make(map[string]string)
			for _, pair := range splitList(vals[0]) {
				if k, v, ok := strings.Cut(pair, ":"); ok {
					logic[strings.TrimSpace(k)] = strings.TrimSpace(v)
				}
			}
			obj[key] = logic
		default:
			obj[key] = vals[0]
		}
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return ParseRequest(data)
}

func (r *Request) note(format string, args ...interface{}) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(c rune) bool {
		return c == ',' || c == '，' || c == '、'
	})
}

func decodeSet(req *Request, key string, value json.RawMessage) Set {
	var v interface{}
	if err := json.Unmarshal(value, &v); err != nil {
		req.note("%s: undecodable value ignored", key)
		return nil
	}

	switch val := v.(type) {
	case nil:
		return nil
	case string:
		parts := splitList(val)
		if len(parts) > 0 {
			req.note("%s: scalar string wrapped as a set", key)
		}
		return NewSet(parts...)
	case float64, bool:
		req.note("%s: scalar %v wrapped as a set", key, val)
		return NewSet(scalarString(val))
	case []interface{}:
		items := make([]string, 0, len(val))
		for i, item := range val {
			switch it := item.(type) {
			case nil:
			case string:
				items = append(items, it)
			case float64, bool:
				req.note("%s[%d]: non-string element %v converted", key, i, it)
				items = append(items, scalarString(it))
			default:
				req.note("%s[%d]: nested value ignored", key, i)
			}
		}
		return NewSet(items...)
	default:
		req.note("%s: object value ignored", key)
		return nil
	}
}

func decodeBool(req *Request, key string, value json.RawMessage) (bool, bool) {
	var v interface{}
	if err := json.Unmarshal(value, &v); err != nil {
		req.note("%s: undecodable value ignored", key)
		return false, false
	}

	switch val := v.(type) {
	case nil:
		return false, false
	case bool:
		return val, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			req.note("%s: %q is not a boolean, ignored", key, val)
			return false, false
		}
		req.note("%s: string %q coerced to %v", key, val, b)
		return b, true
	case float64:
		req.note("%s: number %v coerced to %v", key, val, val != 0)
		return val != 0, true
	default:
		req.note("%s: %T is not a boolean, ignored", key, v)
		return false, false
	}
}

func decodeInt(req *Request, key string, value json.RawMessage) (int, bool) {
	var v interface{}
	if err := json.Unmarshal(value, &v); err != nil {
		req.note("%s: undecodable value ignored", key)
		return 0, false
	}

	switch val := v.(type) {
	case nil:
		return 0, false
	case float64:
		if val != math.Trunc(val) {
			req.note("%s: %v truncated", key, val)
		}
		return clampInt(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			req.note("%s: %q is not a number, ignored", key, val)
			return 0, false
		}
		req.note("%s: string %q coerced to a number", key, val)
		return clampInt(f), true
	default:
		req.note("%s: %T is not a number, ignored", key, v)
		return 0, false
	}
}

func clampInt(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

func decodeThreshold(req *Request, key string, value json.RawMessage) *float64 {
	var v interface{}
	if err := json.Unmarshal(value, &v); err != nil {
		req.note("%s: undecodable value ignored", key)
		return nil
	}

	var f float64
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		f = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			req.note("%s: %q is not a number, using the configured value", key, val)
			return nil
		}
		req.note("%s: string %q coerced to a number", key, val)
		f = parsed
	default:
		req.note("%s: %T is not a number, using the configured value", key, v)
		return nil
	}

	if math.IsNaN(f) {
		req.note("%s: NaN ignored", key)
		return nil
	}
	if f < 0 || f > 1 {
		clamped := math.Max(0, math.Min(1, f))
		req.note("%s: %v clamped to %v", key, f, clamped)
		f = clamped
	}
	return &f
}

func decodeString(req *Request, key string, value json.RawMessage) (string, bool) {
	var v interface{}
	if err := json.Unmarshal(value, &v); err != nil {
		req.note("%s: undecodable value ignored", key)
		return "", false
	}

	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case []interface{}:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				req.note("%s: array unwrapped to its first element", key)
				return s, true
			}
		}
	}
	req.note("%s: %T is not a string, ignored", key, v)
	return "", false
}

func decodeQuery(req *Request, value json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(value, &v); err != nil {
		req.note("search_query: undecodable value ignored")
		return ""
	}

	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64, bool:
		req.note("search_query: scalar %v converted to text", val)
		return scalarString(val)
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		req.note("search_query: array joined into one query")
		return strings.Join(parts, " ")
	default:
		req.note("search_query: object value ignored")
		return ""
	}
}

func decodeCategoryLogic(req *Request, value json.RawMessage) map[string]Logic {
	var raw map[string]interface{}
	if err := json.Unmarshal(value, &raw); err != nil {
		if !bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			req.note("category_logic: expected an object, ignored")
		}
		return nil
	}

	out := make(map[string]Logic, len(raw))
	for category, v := range raw {
		s, _ := v.(string)
		l, ok := parseLogic(s)
		if !ok {
			req.note("category_logic.%s: unknown value %v ignored", category, v)
			continue
		}
		switch category {
		case CategoryCuisines, CategoryFlavors, CategoryDifficulties, CategoryDishNameKeywords:
			out[category] = l
		default:
			req.note("category_logic.%s: unknown category ignored", category)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func scalarString(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case string:
		return val
	}
	return fmt.Sprint(v)
}
