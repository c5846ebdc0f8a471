package catalog

import (
	"encoding/json"
	"maps"
)

// Source column names. Only ColID, ColSubject and ColContent are required.
const (
	ColID      = "unique_id"
	ColTitle   = "Title"
	ColSubject = "Subject"
	ColRating  = "rating"
	ColContent = "content"
)

var requiredColumns = []string{ColID, ColSubject, ColContent}

// Book is one row of the catalog. Columns other than the well-known ones are
// carried in Extra and passed through untouched.
type Book struct {
	ID      string
	Title   string
	Subject string
	Rating  *float64 // nil when the source has no usable rating
	Content string
	Extra   map[string]string
}

// Chattable reports whether the book has grounding text to discuss.
func (b Book) Chattable() bool {
	return b.Content != ""
}

// MarshalJSON renders the book as a flat object keyed by source column
// names, which is the shape the catalog API has always returned.
func (b Book) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(b.Extra)+5)
	for k, v := range b.Extra {
		m[k] = v
	}
	m[ColID] = b.ID
	m[ColTitle] = b.Title
	m[ColSubject] = b.Subject
	m[ColContent] = b.Content
	if b.Rating != nil {
		m[ColRating] = *b.Rating
	} else {
		m[ColRating] = nil
	}
	return json.Marshal(m)
}

func (b Book) clone() Book {
	out := b
	if b.Rating != nil {
		r := *b.Rating
		out.Rating = &r
	}
	out.Extra = maps.Clone(b.Extra)
	return out
}
