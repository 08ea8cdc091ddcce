package media

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	ErrBadYear   = errors.New("year must be exactly 4 digits")
	ErrBadRating = errors.New("rating must be a number between 0 and 10")
)

// NormalizeYear turns a 4-digit year into the date form the rest of the
// pipeline expects. Only the year is meaningful; the day is a placeholder.
func NormalizeYear(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return "", ErrBadYear
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", ErrBadYear
		}
	}
	return s + "-01-01", nil
}

func SplitGenres(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

var notApplicable = map[string]bool{
	"n/a":            true,
	"na":             true,
	"not applicable": true,
}

// ParseRating accepts a decimal rating on a 0-10 scale, rounded to one
// decimal place, or a "not applicable" token normalized to 0.0.
func ParseRating(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if notApplicable[strings.ToLower(s)] {
		return 0.0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrBadRating
	}
	if v < 0 || v > 10 {
		return 0, ErrBadRating
	}
	return math.Round(v*10) / 10, nil
}
