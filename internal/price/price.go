// File: internal/price/price.go

// Package price extracts numeric amounts from storefront price labels.
// Labels arrive in arbitrary shapes ("PKR 1,299", "Rs. 8,999.50", "Free",
// badge text, empty strings) and the parser must accept them all.
package price

import (
	"errors"
	"strconv"
	"strings"
)

// Parse extracts the first numeric amount from a price label. The second
// return value reports whether a number was present at all: "Free" and
// "" carry no value, which is different from a price of zero.
//
// Thousands separators are stripped first, then the first maximal run of
// digits with at most one interior decimal point is taken. Parse never
// fails on any input.
func Parse(text string) (float64, bool) {
	s := strings.ReplaceAll(text, ",", "")

	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start == -1 {
		return 0, false
	}

	end := start
	sawPoint := false
	for end < len(s) {
		c := s[end]
		switch {
		case c >= '0' && c <= '9':
			end++
		case c == '.' && !sawPoint && end+1 < len(s) && isDigit(s[end+1]):
			// A decimal point counts only when digits follow it, so a
			// trailing "1299." keeps the integer part.
			sawPoint = true
			end++
		default:
			return finish(s[start:end])
		}
	}
	return finish(s[start:end])
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func finish(run string) (float64, bool) {
	v, err := strconv.ParseFloat(run, 64)
	if err != nil {
		// Absurdly long digit runs overflow float64; the clamped value
		// strconv reports is still a value.
		if errors.Is(err, strconv.ErrRange) {
			return v, true
		}
		return 0, false
	}
	return v, true
}
