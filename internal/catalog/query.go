package catalog

import (
	"cmp"
	"slices"
)

// DefaultLimit is the number of books returned per category when the caller
// does not ask for a specific count.
const DefaultLimit = 10

// Query answers read-only catalog questions. It holds no mutable state.
type Query struct {
	store *Store
}

// NewQuery returns a Query over s.
func NewQuery(s *Store) *Query {
	return &Query{store: s}
}

// Categories returns each distinct subject once. The order is first-seen
// in the source but callers should not rely on it.
func (q *Query) Categories() []string {
	return slices.Clone(q.store.categories)
}

// TopInCategory returns up to limit books whose subject equals category
// exactly. The first limit matches in catalog order are taken and only that
// subset is ordered by rating, highest first; equal ratings keep catalog
// order and books without a rating go last. So the result is not the
// category's global top-N by rating.
func (q *Query) TopInCategory(category string, limit int) []Book {
	out := []Book{}
	if category == "" || limit <= 0 {
		return out
	}

	for _, b := range q.store.books {
		if b.Subject != category {
			continue
		}
		out = append(out, b.clone())
		if len(out) == limit {
			break
		}
	}

	slices.SortStableFunc(out, func(a, b Book) int {
		return compareRating(b.Rating, a.Rating)
	})
	return out
}

func compareRating(x, y *float64) int {
	switch {
	case x == nil && y == nil:
		return 0
	case x == nil:
		return -1
	case y == nil:
		return 1
	}
	return cmp.Compare(*x, *y)
}
