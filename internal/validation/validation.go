package validation

import (
	"errors"
	"strings"
	"unicode"
)

// MaxCityNameLen bounds city names in runes.
const MaxCityNameLen = 50

// ErrCityEmpty is returned when the name is empty or whitespace-only after trim.
var ErrCityEmpty = errors.New("city name is required")

// ErrCityTooLong is returned when the name exceeds MaxCityNameLen runes.
var ErrCityTooLong = errors.New("city name too long")

// ErrCityInvalidChars is returned when the name contains disallowed characters.
var ErrCityInvalidChars = errors.New("city name contains invalid characters")

// ValidateCityName trims the input, enforces the length bound and restricts
// to letters (Unicode, so Hangul passes), digits, space and hyphen.
// Returns the trimmed name or an error suitable for 400 INVALID_CITY responses.
// Whether the city exists is decided by the caller.
func ValidateCityName(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrCityEmpty
	}
	if len(r) > MaxCityNameLen {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedCityRune(c) {
			return "", ErrCityInvalidChars
		}
	}
	return s, nil
}

func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', '-':
		return true
	}
	return false
}
