package onboarding

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	usernameMinRunes = 3
	usernameMaxRunes = 32

	minUTCOffset = -12
	maxUTCOffset = 14
)

// ValidateUsername normalizes and checks a user-chosen display name.
// Returns the canonical NFC form and whether it is acceptable: 3 to 32
// runes of letters, digits, spaces, hyphens, underscores and periods.
func ValidateUsername(raw string) (string, bool) {
	name := norm.NFC.String(strings.TrimSpace(raw))

	count := 0
	for _, r := range name {
		count++
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
		case r == ' ' || r == '-' || r == '_' || r == '.':
		default:
			return "", false
		}
	}

	if count < usernameMinRunes || count > usernameMaxRunes {
		return "", false
	}

	return name, true
}

// ValidateTimezone accepts either an IANA zone name (Europe/Berlin) or a
// plain UTC offset ("+3", "-5", "UTC+2") and returns a canonical form.
func ValidateTimezone(raw string) (string, bool) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return "", false
	}

	if offset, ok := parseUTCOffset(input); ok {
		return FormatUTCOffset(offset), true
	}

	if loc, err := time.LoadLocation(input); err == nil && loc != time.Local {
		return loc.String(), true
	}

	return "", false
}

func parseUTCOffset(input string) (int, bool) {
	trimmed := strings.TrimPrefix(strings.ToUpper(input), "UTC")
	if trimmed == "" {
		return 0, true
	}

	offset, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, false
	}
	if offset < minUTCOffset || offset > maxUTCOffset {
		return 0, false
	}

	return offset, true
}

// FormatUTCOffset renders an hour offset as the canonical stored form.
func FormatUTCOffset(offset int) string {
	if offset == 0 {
		return "UTC"
	}
	return fmt.Sprintf("UTC%+d", offset)
}
