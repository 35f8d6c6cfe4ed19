package census

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFieldNotFound      = errors.New("field not found in payload")
	ErrGeographyNotFound  = errors.New("geography not found in payload")
	ErrUnsupportedPayload = errors.New("unsupported payload shape")
)

// GeoClause is one "name:id" component of a geography identifier.
type GeoClause struct {
	Name string
	ID   string
}

// ParseGeography splits "zip code tabulation area:21076" or "state:24;county:003" into clauses.
func ParseGeography(geo string) ([]GeoClause, error) {
	var out []GeoClause
	for _, part := range strings.Split(geo, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.LastIndex(part, ":")
		if idx <= 0 || idx == len(part)-1 {
			return nil, fmt.Errorf("geography clause %q must be name:id", part)
		}
		out = append(out, GeoClause{
			Name: strings.TrimSpace(part[:idx]),
			ID:   strings.TrimSpace(part[idx+1:]),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("geography %q is empty", geo)
	}
	return out, nil
}

// Lookup extracts field for the row matching geography.
//
// Array form is the Census default: a header row followed by data rows, with geography
// columns named after the clause names. Object form is either a single object or a list
// of objects keyed by field code; geography keys present in an object must match.
// An empty geography skips row matching and requires exactly one data row.
func Lookup(payload []byte, field, geography string) (Value, error) {
	var clauses []GeoClause
	if strings.TrimSpace(geography) != "" {
		parsed, err := ParseGeography(geography)
		if err != nil {
			return Value{}, err
		}
		clauses = parsed
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return Value{}, fmt.Errorf("decode payload: %w", err)
	}

	switch node := root.(type) {
	case []any:
		if len(node) == 0 {
			return Value{}, fmt.Errorf("%w: empty array", ErrUnsupportedPayload)
		}
		if _, isTable := node[0].([]any); isTable {
			return lookupTable(node, field, clauses)
		}
		return lookupObjects(node, field, clauses)
	case map[string]any:
		return lookupObjects([]any{node}, field, clauses)
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedPayload, root)
	}
}

func lookupTable(rows []any, field string, clauses []GeoClause) (Value, error) {
	header, err := stringRow(rows[0])
	if err != nil {
		return Value{}, fmt.Errorf("%w: header: %v", ErrUnsupportedPayload, err)
	}
	col := indexOf(header, field)
	if col < 0 {
		return Value{}, fmt.Errorf("%w: %s", ErrFieldNotFound, field)
	}
	geoCols := make([]int, len(clauses))
	for i, c := range clauses {
		geoCols[i] = indexOf(header, c.Name)
		if geoCols[i] < 0 {
			return Value{}, fmt.Errorf("%w: no %q column", ErrGeographyNotFound, c.Name)
		}
	}

	data := rows[1:]
	if len(clauses) == 0 {
		if len(data) != 1 {
			return Value{}, fmt.Errorf("%w: %d rows and no geography to select one", ErrGeographyNotFound, len(data))
		}
	}
	for _, raw := range data {
		row, ok := raw.([]any)
		if !ok || len(row) != len(header) {
			continue
		}
		if !rowMatches(row, geoCols, clauses) {
			continue
		}
		return ParseValue(row[col])
	}
	return Value{}, fmt.Errorf("%w: %s", ErrGeographyNotFound, formatClauses(clauses))
}

func lookupObjects(items []any, field string, clauses []GeoClause) (Value, error) {
	fieldSeen := false
	for _, raw := range items {
		obj, ok := raw.(map[string]any)
		if !ok {
			return Value{}, fmt.Errorf("%w: list element %T", ErrUnsupportedPayload, raw)
		}
		val, has := obj[field]
		if !has {
			continue
		}
		fieldSeen = true
		if !objectMatches(obj, clauses) {
			continue
		}
		return ParseValue(val)
	}
	if !fieldSeen {
		return Value{}, fmt.Errorf("%w: %s", ErrFieldNotFound, field)
	}
	return Value{}, fmt.Errorf("%w: %s", ErrGeographyNotFound, formatClauses(clauses))
}

func rowMatches(row []any, cols []int, clauses []GeoClause) bool {
	for i, c := range clauses {
		cell, ok := row[cols[i]].(string)
		if !ok || strings.TrimSpace(cell) != c.ID {
			return false
		}
	}
	return true
}

func objectMatches(obj map[string]any, clauses []GeoClause) bool {
	for _, c := range clauses {
		raw, has := obj[c.Name]
		if !has {
			continue
		}
		if fmt.Sprint(raw) != c.ID {
			return false
		}
	}
	return true
}

func stringRow(raw any) ([]string, error) {
	cells, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("row is %T", raw)
	}
	out := make([]string, len(cells))
	for i, c := range cells {
		s, ok := c.(string)
		if !ok {
			return nil, fmt.Errorf("column %d is %T", i, c)
		}
		out[i] = s
	}
	return out, nil
}

func indexOf(xs []string, want string) int {
	for i, x := range xs {
		if x == want {
			return i
		}
	}
	return -1
}

func formatClauses(clauses []GeoClause) string {
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		parts[i] = c.Name + ":" + c.ID
	}
	return strings.Join(parts, ";")
}
