package catalog

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// DefaultTable is the table read from SQLite catalog sources.
const DefaultTable = "books"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load reads the catalog at path. SQLite databases (.db, .sqlite, .sqlite3)
// are read from table; anything else is parsed as CSV with a header row.
func Load(path, table string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Source: path, Reason: "source not found", Err: err}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return LoadSQLite(path, table)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Reason: "opening source", Err: err}
	}
	defer f.Close()
	return LoadCSV(path, f)
}

// LoadCSV parses a CSV catalog. The first record is the header; every row
// must have the same number of fields as the header.
func LoadCSV(source string, r io.Reader) (*Store, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &LoadError{Source: source, Reason: "empty source"}
	}
	if err != nil {
		return nil, &LoadError{Source: source, Reason: "reading header", Err: err}
	}
	// Spreadsheet exports often carry a UTF-8 BOM on the first column.
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, &LoadError{Source: source, Reason: "malformed CSV", Err: err}
	}
	return build(source, header, rows)
}

// LoadSQLite reads every row of table in rowid order.
func LoadSQLite(path, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, &LoadError{Source: path, Reason: fmt.Sprintf("invalid table name %q", table)}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Source: path, Reason: "source not found", Err: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &LoadError{Source: path, Reason: "opening database", Err: err}
	}
	defer db.Close()

	rows, err := db.Query(fmt.Sprintf(`SELECT * FROM %q ORDER BY rowid`, table))
	if err != nil {
		return nil, &LoadError{Source: path, Reason: "querying table " + table, Err: err}
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, &LoadError{Source: path, Reason: "reading columns", Err: err}
	}

	var records [][]string
	for rows.Next() {
		vals := make([]sql.NullString, len(header))
		ptrs := make([]any, len(header))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &LoadError{Source: path, Reason: "scanning row", Err: err}
		}
		rec := make([]string, len(vals))
		for i, v := range vals {
			rec[i] = v.String
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &LoadError{Source: path, Reason: "iterating rows", Err: err}
	}

	return build(path, header, records)
}

func build(source string, header []string, rows [][]string) (*Store, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &LoadError{Source: source, Reason: "missing required columns: " + strings.Join(missing, ", ")}
	}

	books := make([]Book, 0, len(rows))
	for _, rec := range rows {
		b := Book{Extra: make(map[string]string)}
		for i, h := range header {
			v := rec[i]
			switch strings.TrimSpace(h) {
			case ColID:
				b.ID = strings.TrimSpace(v)
			case ColTitle:
				b.Title = v
			case ColSubject:
				b.Subject = v
			case ColRating:
				b.Rating = parseRating(v)
			case ColContent:
				b.Content = v
			default:
				b.Extra[h] = v
			}
		}
		books = append(books, b)
	}

	return newStore(source, books)
}

// parseRating returns nil for empty, non-numeric and NaN ratings so they
// rank below every real score.
func parseRating(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return nil
	}
	return &f
}
