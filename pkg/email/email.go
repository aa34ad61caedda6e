package email

import (
	"strings"
	"unicode"
)

// Normalize lowercases and trims an email address. Every comparison in the
// engine goes through this so provider-side and store-side lookups agree.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Domain returns the part after '@', normalized, or "" when the address has
// no domain part.
func Domain(email string) string {
	normalized := Normalize(email)
	at := strings.LastIndexByte(normalized, '@')
	if at < 0 || at == len(normalized)-1 {
		return ""
	}
	return normalized[at+1:]
}

// DeriveNameFromEmail guesses a first/last name pair from the local part of
// an address. Used to seed display fields when the provider carries no name
// claims.
func DeriveNameFromEmail(email string) (string, string) {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
