package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrQueryEmpty is returned when the search query is missing or blank.
var ErrQueryEmpty = errors.New("query parameter q is required")

// ErrQueryTooLong is returned when the search query exceeds the maximum length.
var ErrQueryTooLong = errors.New("query too long")

// ErrQueryInvalidChars is returned when the query contains disallowed characters.
var ErrQueryInvalidChars = errors.New("query contains invalid characters")

const maxQueryRunes = 100

// ValidateSearchQuery trims the input, requires it to be non-empty, bounds
// its length, and restricts it to letters (Unicode), digits, space, comma,
// hyphen, period. Returns the trimmed string or an error suitable for a 400.
func ValidateSearchQuery(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrQueryEmpty
	}
	if len(r) > maxQueryRunes {
		return "", ErrQueryTooLong
	}
	for _, c := range r {
		if !isAllowedQueryRune(c) {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}

func isAllowedQueryRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.':
		return true
	}
	return false
}

// ParseCoordinates parses lat/lon query values. Only numeric parse is
// enforced; out-of-range coordinates are accepted and later routed to the
// synthetic path.
func ParseCoordinates(latStr, lonStr string) (lat, lon float64, err error) {
	latStr = strings.TrimSpace(latStr)
	lonStr = strings.TrimSpace(lonStr)
	if latStr == "" || lonStr == "" {
		return 0, 0, errors.New("lat and lon query parameters are required")
	}
	lat, err = strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid lat: %q", latStr)
	}
	lon, err = strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid lon: %q", lonStr)
	}
	return lat, lon, nil
}
