// Package listing compiles a flat, query-string shaped filter map into a
// bounded, sorted and paginated SQL statement.
//
// Each entity declares the filters it supports as an explicit table of
// Fields; keys not present in the table are ignored. All active filters are
// combined with AND, and soft-deleted rows are always excluded.
package listing

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mkaykisiz/Geku/internal/apperr"
)

const (
	DefaultPerPage   = 25
	MaxPerPage       = 100
	DefaultSortField = "created_at"
)

// Kind selects how a filter value is turned into a predicate.
type Kind int

const (
	// Text is a case-insensitive substring match.
	Text Kind = iota
	// Exact is an equality match on the raw value.
	Exact
	// Bool activates only on the literal strings "true" and "false".
	Bool
	// Membership takes a JSON array of ids and matches rows whose array
	// column shares at least one element with it.
	Membership
	// Range reads start_<key>_at and end_<key>_at as open bounds.
	Range
)

type Field struct {
	Key    string
	Kind   Kind
	Column string
}

// Schema describes one listable table.
type Schema struct {
	Table    string
	Columns  []string
	Fields   []Field
	Sortable []string
}

type Query struct {
	Table   string
	Columns []string
	Where   []string
	Args    []any
	OrderBy string
	Limit   int
	Offset  int
}

// SQL renders the statement. LIMIT and OFFSET are bound as the last two
// arguments, see Query.Params.
func (q Query) SQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.Columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.Table)
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(q.Where, " AND "))
	b.WriteString(" ORDER BY ")
	b.WriteString(q.OrderBy)
	fmt.Fprintf(&b, " LIMIT $%d OFFSET $%d", len(q.Args)+1, len(q.Args)+2)
	return b.String()
}

// Params returns the filter arguments followed by limit and offset.
func (q Query) Params() []any {
	params := make([]any, 0, len(q.Args)+2)
	params = append(params, q.Args...)
	return append(params, q.Limit, q.Offset)
}

func Compile(s Schema, filters map[string]string) (Query, error) {
	q := Query{
		Table:   s.Table,
		Columns: s.Columns,
		Where:   []string{"deleted_at IS NULL"},
	}

	var err error
	if q.Limit, q.Offset, err = paginate(filters); err != nil {
		return Query{}, err
	}
	if q.OrderBy, err = order(s, filters); err != nil {
		return Query{}, err
	}

	if raw := filters["nin"]; raw != "" {
		ids, err := parseIDs(raw)
		if err != nil {
			return Query{}, apperr.Validation("nin: %v", err)
		}
		if len(ids) > 0 {
			q.And("NOT (id = ANY($%d))", ids)
		}
	}

	for _, f := range s.Fields {
		if err := q.apply(f, filters); err != nil {
			return Query{}, err
		}
	}
	return q, nil
}

// And appends a predicate. format holds one %d verb (or %[1]d, repeated)
// that receives the placeholder number bound to arg.
func (q *Query) And(format string, arg any) {
	q.Args = append(q.Args, arg)
	q.Where = append(q.Where, fmt.Sprintf(format, len(q.Args)))
}

func (q *Query) apply(f Field, filters map[string]string) error {
	if f.Kind == Range {
		for _, bound := range []struct{ key, op string }{
			{"start_" + f.Key + "_at", ">"},
			{"end_" + f.Key + "_at", "<"},
		} {
			raw := filters[bound.key]
			if raw == "" {
				continue
			}
			t, err := parseTime(raw)
			if err != nil {
				return apperr.Validation("%s: %q is not a timestamp", bound.key, raw)
			}
			q.And(f.Column+" "+bound.op+" $%d", t)
		}
		return nil
	}

	raw := filters[f.Key]
	if raw == "" {
		return nil
	}
	switch f.Kind {
	case Text:
		q.And(f.Column+` ILIKE $%d ESCAPE '\'`, "%"+escapeLike(raw)+"%")
	case Exact:
		q.And(f.Column+" = $%d", raw)
	case Bool:
		switch raw {
		case "true":
			q.And(f.Column+" = $%d", true)
		case "false":
			q.And(f.Column+" = $%d", false)
		}
	case Membership:
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return apperr.Validation("%s: expected a JSON array of ids", f.Key)
		}
		q.And(f.Column+" && $%d", ids)
	}
	return nil
}

func paginate(filters map[string]string) (limit, offset int, err error) {
	limit = DefaultPerPage
	if raw := filters["per_page"]; raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, apperr.Validation("per_page: %q is not a positive integer", raw)
		}
		if limit > MaxPerPage {
			limit = MaxPerPage
		}
	}

	page := 0
	if raw := filters["page_number"]; raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 0 {
			return 0, 0, apperr.Validation("page_number: %q is not a non-negative integer", raw)
		}
	}
	if page-1 > math.MaxInt/limit {
		return 0, 0, apperr.Validation("page_number: %d is out of range", page)
	}
	if page > 0 {
		offset = (page - 1) * limit
	}
	return limit, offset, nil
}

// order sorts by the requested column and breaks ties on id ascending so
// equal sort keys come back in a stable order.
func order(s Schema, filters map[string]string) (string, error) {
	field := DefaultSortField
	if raw := filters["sort_field"]; raw != "" {
		field = raw
	}
	if !slices.Contains(s.Sortable, field) {
		return "", apperr.Validation("sort_field: %q is not sortable", field)
	}

	dir := "DESC"
	switch filters["sort_type"] {
	case "", "-1":
	case "1":
		dir = "ASC"
	default:
		return "", apperr.Validation("sort_type: %q must be 1 or -1", filters["sort_type"])
	}
	if field == "id" {
		return "id " + dir, nil
	}
	return field + " " + dir + ", id ASC", nil
}

// parseIDs accepts either a JSON array or a comma separated list.
func parseIDs(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, err
		}
		return ids, nil
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
