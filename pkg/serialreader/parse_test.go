package serialreader

import (
	"github.com/stretchr/testify/assert"
	"math"
	"testing"
)

func TestParseReading(t *testing.T) {
	tests := []struct {
		record string
		want   float64
	}{
		{"23.5\n", 23.5},
		{"-1.2\n", -1.2},
		{"  42\r\n", 42},
		{"+7.25", 7.25},
		{".5\n", 0.5},
		{"5.\n", 5},
		{"1e3\n", 1000},
		{"2.5E-1\n", 0.25},
		{"12abc\n", 12},
		{"3.14 degrees\n", 3.14},
		{"1e\n", 1},
		{"1e+\n", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseReading([]byte(tt.record)), "record %q", tt.record)
	}
}

// Non-numeric records silently read as zero rather than failing. This mirrors
// atof and is kept until someone decides a strict parse is wanted.
func TestParseReadingLenientZero(t *testing.T) {
	for _, record := range []string{"not-a-number\n", "", "\n", "-\n", ".\n", "abc 12\n", "e5\n", "0x1p3\n"} {
		assert.Equal(t, 0.0, ParseReading([]byte(record)), "record %q", record)
	}
}

// Sensors print nan when a read fails; none of these may reach the store as a
// non-finite value.
func TestParseReadingNonFiniteReadsZero(t *testing.T) {
	for _, record := range []string{"nan\n", "NaN\n", "-nan\n", "inf\n", "-Infinity\n", "1e999\n", "-1e999\n"} {
		v := ParseReading([]byte(record))
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "record %q", record)
		assert.Equal(t, 0.0, v, "record %q", record)
	}
}
