package sqlite

import (
	"strings"

	"github.com/sakif/videohub/internal/repository"
)

// where accumulates AND-ed SQL conditions and their arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// dateRangeClause bounds column by r. The To end is inclusive.
func dateRangeClause(w *where, column string, r repository.DateRange) {
	if r.From != nil {
		w.add(column+" >= ?", r.From.UTC())
	}
	if r.To != nil {
		w.add(column+" <= ?", r.To.UTC())
	}
}

// likeClause matches query as a case-insensitive substring of any column.
func likeClause(w *where, query string, columns ...string) {
	query = strings.TrimSpace(query)
	if query == "" || len(columns) == 0 {
		return
	}

	pattern := "%" + escapeLike(query) + "%"
	parts := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, c := range columns {
		parts[i] = c + ` LIKE ? ESCAPE '\'`
		args[i] = pattern
	}
	w.add("("+strings.Join(parts, " OR ")+")", args...)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
