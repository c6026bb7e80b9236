package providers

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// QueryBuilder accumulates query parameters in insertion order.
type QueryBuilder struct {
	keys   []string
	values map[string]any
}

// Param is a single key/value pair in insertion order.
type Param struct {
	Key   string
	Value any
}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{values: make(map[string]any)}
}

// Add sets key unconditionally. Re-adding a key overwrites the value and keeps its position.
func (q *QueryBuilder) Add(key string, value any) *QueryBuilder {
	if _, ok := q.values[key]; !ok {
		q.keys = append(q.keys, key)
	}
	q.values[key] = value
	return q
}

// AddIfPresent sets key only when value is non-empty.
func (q *QueryBuilder) AddIfPresent(key string, value any) *QueryBuilder {
	if isEmpty(value) {
		return q
	}
	return q.Add(key, value)
}

// AddWhen sets key only when cond holds.
func (q *QueryBuilder) AddWhen(cond bool, key string, value any) *QueryBuilder {
	if !cond {
		return q
	}
	return q.Add(key, value)
}

// Merge copies all parameters of other, overwriting existing keys.
func (q *QueryBuilder) Merge(other *QueryBuilder) *QueryBuilder {
	if other == nil {
		return q
	}
	for _, k := range other.keys {
		q.Add(k, other.values[k])
	}
	return q
}

func (q *QueryBuilder) Has(key string) bool {
	_, ok := q.values[key]
	return ok
}

func (q *QueryBuilder) Get(key string) (any, bool) {
	v, ok := q.values[key]
	return v, ok
}

func (q *QueryBuilder) Len() int { return len(q.keys) }

// Params returns the accumulated pairs in insertion order.
func (q *QueryBuilder) Params() []Param {
	out := make([]Param, 0, len(q.keys))
	for _, k := range q.keys {
		out = append(out, Param{Key: k, Value: q.values[k]})
	}
	return out
}

// Encode renders the parameters as a URL query string in insertion order.
func (q *QueryBuilder) Encode() string {
	var b strings.Builder
	for i, k := range q.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(formatValue(q.values[k])))
	}
	return b.String()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []string:
		return strings.Join(t, ",")
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// isEmpty treats nil, "", "0", numeric zero, false and empty slices or maps as absent.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.Len() == 0 || rv.String() == "0"
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
