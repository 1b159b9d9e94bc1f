package serialreader

import (
	"math"
	"strconv"
	"strings"
)

// ParseReading converts a record to a float using the longest decimal prefix,
// the way C's atof does. Records with no numeric prefix read as 0.0; this is
// lenient on purpose and no error is ever reported. inf, nan and out-of-range
// values also read as 0.0, since line protocol has no spelling for them.
// Hex floats are not recognised.
func ParseReading(record []byte) float64 {
	s := strings.TrimLeft(string(record), " \t\n\v\f\r")

	n := numericPrefix(s)
	if n == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(s[:n], 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

// numericPrefix returns the length of the decimal float at the start of s,
// or 0 if there is none.
func numericPrefix(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}

	// The exponent only counts when at least one digit follows it.
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	return i
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
