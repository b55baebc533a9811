package util

import (
	"regexp"
)

var (
	uuidRegex        = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	pairingCodeRegex = regexp.MustCompile(`^[0-9]{6}$`)
)

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	return uuidRegex.MatchString(s)
}

// IsValidPairingCode reports whether s has the shape of a pairing code.
// Shape only: it says nothing about whether the code exists.
func IsValidPairingCode(s string) bool {
	return pairingCodeRegex.MatchString(s)
}

func IsValidEnum(value string, validValues []string) bool {
	for _, v := range validValues {
		if value == v {
			return true
		}
	}
	return false
}
