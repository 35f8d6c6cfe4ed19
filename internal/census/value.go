// Package census reads values out of cached Census Data API responses.
package census

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sentinel annotation codes the Census API returns in place of an estimate.
// See https://www.census.gov/data/developers/data-sets/acs-1year/notes-on-acs-estimate-and-annotation-values.html
var sentinelCodes = map[float64]string{
	-111111111: "insufficient sample observations for median",
	-222222222: "insufficient sample observations for margin of error",
	-333333333: "median falls in open-ended distribution",
	-555555555: "estimate is controlled",
	-666666666: "estimate not applicable or not available",
	-888888888: "margin of error not applicable",
	-999999999: "estimate or margin of error cannot be displayed",
}

// IsSentinel reports whether v is a Census annotation code.
func IsSentinel(v float64) bool {
	_, ok := sentinelCodes[v]
	return ok
}

// SentinelMeaning returns the documented meaning of a sentinel code.
func SentinelMeaning(v float64) string {
	return sentinelCodes[v]
}

// Value is one field value decoded from a payload.
// Null is set for JSON null, empty strings and sentinel codes.
type Value struct {
	Num      float64
	Null     bool
	Sentinel bool
	Raw      string
}

// String renders the value the way the audit report prints it.
func (v Value) String() string {
	if v.Sentinel {
		return fmt.Sprintf("null (sentinel %s)", v.Raw)
	}
	if v.Null {
		return "null"
	}
	return FormatNumber(v.Num)
}

// ParseValue coerces a decoded JSON scalar into a Value.
func ParseValue(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{Null: true, Raw: "null"}, nil
	case json.Number:
		return parseString(x.String())
	case string:
		return parseString(x)
	case float64:
		return fromFloat(x, FormatNumber(x)), nil
	case int:
		return fromFloat(float64(x), strconv.Itoa(x)), nil
	case int64:
		return fromFloat(float64(x), strconv.FormatInt(x, 10)), nil
	case bool:
		return Value{}, fmt.Errorf("boolean %v is not a numeric value", x)
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

func parseString(s string) (Value, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.EqualFold(trimmed, "null") {
		return Value{Null: true, Raw: trimmed}, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", ""), 64)
	if err != nil {
		return Value{}, fmt.Errorf("value %q is not numeric", s)
	}
	return fromFloat(f, trimmed), nil
}

func fromFloat(f float64, raw string) Value {
	if IsSentinel(f) {
		return Value{Null: true, Sentinel: true, Raw: raw}
	}
	return Value{Num: f, Raw: raw}
}

// FormatNumber prints integers without a fractional part and other values with full precision.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
