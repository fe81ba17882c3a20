package payment

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ValidCard applies the card validation shared by all providers:
//
//   - card number: 13-19 digits after stripping whitespace
//   - expiry month: 1-12
//   - expiry year: current year or later (two-digit years mean 20xx)
//   - CVV: 3-4 digits
//   - cardholder name: at least 2 non-whitespace characters
//
// Validation runs before any provider-specific logic, so invalid cards
// fail fast without the simulated network delay.
func ValidCard(card CardDetails, now time.Time) bool {
	number := stripSpaces(card.Number)
	if len(number) < 13 || len(number) > 19 || !allDigits(number) {
		return false
	}

	month, err := strconv.Atoi(card.ExpiryMonth)
	if err != nil || month < 1 || month > 12 {
		return false
	}

	year, err := strconv.Atoi(card.ExpiryYear)
	if err != nil {
		return false
	}
	if len(card.ExpiryYear) == 2 {
		year += 2000
	}
	if year < now.Year() {
		return false
	}

	cvv := card.CVV
	if len(cvv) < 3 || len(cvv) > 4 || !allDigits(cvv) {
		return false
	}

	return len(strings.TrimSpace(card.CardholderName)) >= 2
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
