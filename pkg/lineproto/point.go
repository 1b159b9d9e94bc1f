package lineproto

import (
	"fmt"
	"strings"
)

// Point is a single-field line protocol sample. Series is the measurement name
// plus any tags, and is emitted verbatim.
type Point struct {
	Series string
	Value  float64
}

func NewPoint(series string, value float64) Point {
	return Point{Series: series, Value: value}
}

// String renders the point as "<series> value=<value>". No timestamp is
// written; the store assigns ingestion time.
func (p Point) String() string {
	return fmt.Sprintf("%s value=%f", p.Series, p.Value)
}

type Tag struct {
	Key   string
	Value string
}

// SplitSeries splits "name,k1=v1,k2=v2" into the measurement name and its tags,
// honouring backslash escapes. Malformed tags (no '=') are skipped.
func SplitSeries(series string) (string, []Tag) {
	parts := splitUnescaped(series, ',')
	if len(parts) == 0 {
		return "", nil
	}

	name := unescape(parts[0])
	var tags []Tag
	for _, part := range parts[1:] {
		kv := splitUnescaped(part, '=')
		if len(kv) != 2 || kv[0] == "" {
			continue
		}
		tags = append(tags, Tag{Key: unescape(kv[0]), Value: unescape(kv[1])})
	}
	return name, tags
}

func splitUnescaped(s string, sep byte) []string {
	if s == "" {
		return nil
	}
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
