package postgres

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/shopsim/internal/domain/query"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

// pgCode returns the SQLSTATE of a PostgreSQL error, or "".
func pgCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// where accumulates AND-ed conditions and their positional arguments. Each
// "?" in a condition is replaced by the next $n placeholder.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	var b strings.Builder
	i := 0
	for _, r := range cond {
		if r == '?' && i < len(args) {
			w.args = append(w.args, args[i])
			i++
			b.WriteString("$" + strconv.Itoa(len(w.args)))
			continue
		}
		b.WriteRune(r)
	}
	w.conds = append(w.conds, b.String())
}

// search adds an ILIKE condition matching term against any of columns.
func (w *where) search(term string, columns ...string) {
	if term == "" {
		return
	}
	parts := make([]string, len(columns))
	args := make([]any, len(columns))
	pattern := query.LikePattern(term)
	for i, col := range columns {
		parts[i] = col + " ILIKE ?"
		args[i] = pattern
	}
	w.add("("+strings.Join(parts, " OR ")+")", args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page returns the ORDER BY, LIMIT and OFFSET clause with the full argument
// list. column comes from a fixed whitelist; id breaks ties so pages never
// overlap.
func (w *where) page(column, id string, f query.Filter) (string, []any) {
	dir := " ASC"
	if f.Descending() {
		dir = " DESC"
	}
	clause := " ORDER BY " + column + dir
	if column != id {
		clause += ", " + id + dir
	}
	n := len(w.args)
	clause += " LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)
	return clause, append(w.args[:n:n], f.PageSize, f.Offset())
}
