package lead

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Field names a filter input.
type Field string

const (
	FieldSearch      Field = "searchText"
	FieldStatus      Field = "status"
	FieldTemperature Field = "temperature"
	FieldPortal      Field = "portal"
	FieldSubject     Field = "subject"
)

// Fields lists filter inputs in display order.
var Fields = []Field{FieldSearch, FieldStatus, FieldTemperature, FieldPortal, FieldSubject}

// ParseField resolves a filter name.
func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if strings.EqualFold(string(f), s) {
			return f, nil
		}
	}
	if strings.EqualFold(s, "search") {
		return FieldSearch, nil
	}
	return "", fmt.Errorf("unknown filter field %q", s)
}

// Axis returns the classification axis backing f, nil for free text.
func (f Field) Axis() *Axis {
	a, _ := AxisByName(string(f))
	return a
}

// Filters is the current set of filter values. Zero codes mean "any".
type Filters struct {
	SearchText  string
	Status      int
	Temperature int
	Portal      int
	Subject     int
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool { return f == Filters{} }

// Code returns the selected code for an axis field.
func (f Filters) Code(field Field) int {
	switch field {
	case FieldStatus:
		return f.Status
	case FieldTemperature:
		return f.Temperature
	case FieldPortal:
		return f.Portal
	case FieldSubject:
		return f.Subject
	}
	return 0
}

// With returns a copy of f with one axis field set to code.
func (f Filters) With(field Field, code int) Filters {
	switch field {
	case FieldStatus:
		f.Status = code
	case FieldTemperature:
		f.Temperature = code
	case FieldPortal:
		f.Portal = code
	case FieldSubject:
		f.Subject = code
	}
	return f
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort is the single active sort column.
type Sort struct {
	Field     string
	Direction Direction
}

// DefaultSort orders newest leads first.
var DefaultSort = Sort{Field: "sendDate", Direction: Desc}

// SortFields are the columns the list view can order by.
var SortFields = []string{"name", "vehicle", "sendDate", "temperature", "status"}

// Toggle applies a header click: the active field flips, a new field starts ascending.
func (s Sort) Toggle(field string) Sort {
	if field == s.Field {
		if s.Direction == Asc {
			return Sort{Field: field, Direction: Desc}
		}
		return Sort{Field: field, Direction: Asc}
	}
	return Sort{Field: field, Direction: Asc}
}

// String serializes as "<field>,<direction>".
func (s Sort) String() string {
	return s.Field + "," + string(s.Direction)
}

// ParseSort reads "<field>[,<direction>]".
func ParseSort(s string) (Sort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSort, nil
	}
	field, dir, _ := strings.Cut(s, ",")
	field = strings.TrimSpace(field)
	if field == "" {
		return Sort{}, fmt.Errorf("sort field is empty")
	}
	out := Sort{Field: field, Direction: Asc}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
	case "desc":
		out.Direction = Desc
	default:
		return Sort{}, fmt.Errorf("invalid sort direction %q", dir)
	}
	return out, nil
}

// Query is the full set of parameters for one leads request.
type Query struct {
	Filters Filters
	Sort    Sort
	Page    int
	Size    int
}

// Values serializes the query. Empty filters are omitted, page and size are
// always present, and axis filters use their symbolic names.
func (q Query) Values() url.Values {
	v := url.Values{}
	if s := strings.TrimSpace(q.Filters.SearchText); s != "" {
		v.Set(string(FieldSearch), s)
	}
	for _, f := range Fields[1:] {
		code := q.Filters.Code(f)
		if code == 0 {
			continue
		}
		if sym, ok := f.Axis().Symbol(code); ok {
			v.Set(string(f), sym)
		} else {
			v.Set(string(f), strconv.Itoa(code))
		}
	}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("size", strconv.Itoa(q.Size))
	if q.Sort.Field != "" {
		v.Set("sort", q.Sort.String())
	}
	return v
}

// MaxPageSize bounds the page size a server accepts.
const MaxPageSize = 100

// ParseQuery is the inverse of Values, used by servers.
func ParseQuery(v url.Values, defaultSize int) (Query, error) {
	q := Query{Size: defaultSize, Sort: DefaultSort}
	q.Filters.SearchText = strings.TrimSpace(v.Get(string(FieldSearch)))
	for _, f := range Fields[1:] {
		raw := strings.TrimSpace(v.Get(string(f)))
		if raw == "" {
			continue
		}
		code, err := f.Axis().Parse(raw)
		if err != nil {
			return Query{}, err
		}
		q.Filters = q.Filters.With(f, code)
	}
	if raw := v.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Query{}, fmt.Errorf("invalid page %q", raw)
		}
		q.Page = n
	}
	if raw := v.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > MaxPageSize {
			return Query{}, fmt.Errorf("invalid size %q", raw)
		}
		q.Size = n
	}
	if q.Size > 0 && q.Page > math.MaxInt32/q.Size {
		return Query{}, fmt.Errorf("page %d out of range", q.Page)
	}
	if raw := v.Get("sort"); raw != "" {
		s, err := ParseSort(raw)
		if err != nil {
			return Query{}, err
		}
		q.Sort = s
	}
	return q, nil
}
