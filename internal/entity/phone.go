package entity

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidPhone = errors.New("phone has no digits")

var nonDigit = regexp.MustCompile(`\D`)

const domesticLength = 10

// NormalizePhone reduces a user typed phone to the digits-only key used to
// search the CRM. Leading zeros (trunk or "00" international prefix) are
// dropped, 10 digit numbers get defaultCountryCode, anything else is kept.
func NormalizePhone(raw, defaultCountryCode string) (string, error) {
	digits := nonDigit.ReplaceAllString(raw, "")
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "", ErrInvalidPhone
	}

	if len(digits) == domesticLength {
		return nonDigit.ReplaceAllString(defaultCountryCode, "") + digits, nil
	}

	return digits, nil
}
