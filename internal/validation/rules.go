// Package validation holds the pure form rules shared by every auth screen.
package validation

import (
	"regexp"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted anywhere.
const MinPasswordLength = 8

// MaxStrength is the highest score Strength can return.
const MaxStrength = 5

var (
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	upperPattern = regexp.MustCompile(`[A-Z]`)
	lowerPattern = regexp.MustCompile(`[a-z]`)
	digitPattern = regexp.MustCompile(`[0-9]`)
	// Anything outside ASCII letters and digits counts as a symbol.
	symbolPattern = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// IsEmail reports whether s looks like an email address.
// The pattern is deliberately permissive: something@something.something.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// HasUpper reports whether s contains an ASCII uppercase letter.
func HasUpper(s string) bool { return upperPattern.MatchString(s) }

// HasLower reports whether s contains an ASCII lowercase letter.
func HasLower(s string) bool { return lowerPattern.MatchString(s) }

// HasDigit reports whether s contains an ASCII digit.
func HasDigit(s string) bool { return digitPattern.MatchString(s) }

// HasSymbol reports whether s contains a character other than an ASCII letter or digit.
func HasSymbol(s string) bool { return symbolPattern.MatchString(s) }

// LongEnough reports whether s has at least MinPasswordLength characters.
func LongEnough(s string) bool {
	return utf8.RuneCountInString(s) >= MinPasswordLength
}

// Strength scores a password from 0 to MaxStrength, one point per satisfied
// predicate: length, uppercase, lowercase, digit, symbol.
func Strength(password string) int {
	checks := [...]bool{
		LongEnough(password),
		HasUpper(password),
		HasLower(password),
		HasDigit(password),
		HasSymbol(password),
	}

	score := 0
	for _, ok := range checks {
		if ok {
			score++
		}
	}
	return score
}

// StrengthLabel names a strength score the way the sign-up meter shows it.
func StrengthLabel(score int) string {
	switch {
	case score <= 2:
		return "Weak"
	case score == 3:
		return "Fair"
	case score == 4:
		return "Good"
	default:
		return "Strong"
	}
}
