package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize lowercases s, trims it and collapses internal whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// trigrams returns the trigram set of s the way pg_trgm builds it: the text
// is lowercased and split into alphanumeric words, each word is padded with
// two leading spaces and one trailing space, and every three-rune window of
// every padded word is collected.
func trigrams(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	set := make(map[string]struct{})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

// TrigramSimilarity is the pg_trgm similarity of a and b: shared trigrams
// over the size of the union. It is 0 when either side has no trigrams.
func TrigramSimilarity(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

// MatchSimilarity scores how well a search term names an item such as an
// ingredient. Equal names score 1. When one contains the other the score is
// at least 0.5 and grows with the covered share of the longer string, so
// "鸡蛋" matches "土鸡蛋". Otherwise it is the trigram similarity.
func MatchSimilarity(term, name string) float64 {
	t, n := Normalize(term), Normalize(name)
	if t == "" || n == "" {
		return 0
	}
	if t == n {
		return 1
	}

	best := TrigramSimilarity(t, n)
	if strings.Contains(n, t) || strings.Contains(t, n) {
		short, long := utf8.RuneCountInString(t), utf8.RuneCountInString(n)
		if short > long {
			short, long = long, short
		}
		if c := 0.5 + 0.5*float64(short)/float64(long); c > best {
			best = c
		}
	}
	return best
}

// bestMatch returns the highest MatchSimilarity of term against names.
func bestMatch(term string, names []string) float64 {
	best := 0.0
	for _, n := range names {
		if s := MatchSimilarity(term, n); s > best {
			best = s
			if best == 1 {
				break
			}
		}
	}
	return best
}
