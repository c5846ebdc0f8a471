// Package catalog holds the immutable in-memory book catalog and the
// read-only queries served from it.
package catalog

import (
	"fmt"
)

// Store is the full set of books loaded from a source. It is never modified
// after construction and is safe for concurrent use without locking.
type Store struct {
	source     string
	books      []Book
	byID       map[string]int
	categories []string
}

// New builds a Store from books already in memory, in the given order.
// It fails with a *LoadError on an empty or duplicate id.
func New(books []Book) (*Store, error) {
	return newStore("memory", books)
}

func newStore(source string, books []Book) (*Store, error) {
	s := &Store{
		source: source,
		books:  make([]Book, 0, len(books)),
		byID:   make(map[string]int, len(books)),
	}
	seen := make(map[string]bool)
	for i, b := range books {
		if b.ID == "" {
			return nil, &LoadError{Source: source, Reason: fmt.Sprintf("row %d has an empty %s", i+1, ColID)}
		}
		if _, dup := s.byID[b.ID]; dup {
			return nil, &LoadError{Source: source, Reason: fmt.Sprintf("duplicate %s %q", ColID, b.ID)}
		}
		s.byID[b.ID] = len(s.books)
		s.books = append(s.books, b.clone())
		if !seen[b.Subject] {
			seen[b.Subject] = true
			s.categories = append(s.categories, b.Subject)
		}
	}
	return s, nil
}

// Source names where the catalog was loaded from.
func (s *Store) Source() string {
	return s.source
}

// Len returns the number of books.
func (s *Store) Len() int {
	return len(s.books)
}

// All returns every book in source order. The result is a copy.
func (s *Store) All() []Book {
	out := make([]Book, len(s.books))
	for i, b := range s.books {
		out[i] = b.clone()
	}
	return out
}

// FindByID returns the book with the given unique id.
func (s *Store) FindByID(id string) (Book, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Book{}, false
	}
	return s.books[i].clone(), true
}
