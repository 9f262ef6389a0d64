package cart

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseQuantity coerces a user-supplied quantity to a positive integer.
// Numbers are truncated, strings are read up to the first non-digit after an
// optional sign. Anything unparseable, out of range or below 1 becomes 1.
func ParseQuantity(raw any) int {
	n, ok := parseInt(raw)
	if !ok || n < 1 {
		return 1
	}
	return n
}

// parseInt reads an integer out of a loosely typed value. It reports false
// when no integer could be read.
func parseInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		if v > math.MaxInt || v < math.MinInt {
			return 0, false
		}
		return int(v), true
	case float64:
		return truncFloat(v)
	case float32:
		return truncFloat(float64(v))
	case json.Number:
		return parseIntPrefix(v.String())
	case string:
		return parseIntPrefix(v)
	default:
		return 0, false
	}
}

func truncFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, false
	}
	return int(f), true
}

// parseIntPrefix parses the leading integer of s: "12abc" is 12, "3.7" is 3
// and "abc" is not a number.
func parseIntPrefix(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
