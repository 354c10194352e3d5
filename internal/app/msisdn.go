/**
 * @description
 * Mozambican MSISDN normalization and per-wallet prefix validation. Phone
 * numbers arrive in whatever shape the checkout form produced; the gateway
 * wants the bare 9-digit national number, and each wallet only serves its own
 * operator prefixes.
 */

package app

import (
	"errors"
	"strings"
)

var (
	ErrInvalidPhone        = errors.New("phone number is not a valid mozambican msisdn")
	ErrUnsupportedMethod   = errors.New("unsupported payment method")
	ErrPhoneMethodMismatch = errors.New("phone prefix does not belong to the selected wallet")
)

// methodPrefixes maps each supported wallet to the operator prefixes it can
// charge. Vodacom (M-Pesa) 84/85, Movitel (e-Mola) 86/87, mKesh 82/83.
var methodPrefixes = map[string][]string{
	"mpesa": {"84", "85"},
	"emola": {"86", "87"},
	"mkesh": {"82", "83"},
}

// NormalizePhone strips spaces and the +258/258 country prefix, leaving the
// bare 9-digit national number. It fails when what remains is not exactly
// nine digits.
func NormalizePhone(raw string) (string, error) {
	phone := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	phone = strings.TrimPrefix(phone, "+258")
	if len(phone) == 12 && strings.HasPrefix(phone, "258") {
		phone = phone[3:]
	}
	if len(phone) != 9 {
		return "", ErrInvalidPhone
	}
	for _, c := range phone {
		if c < '0' || c > '9' {
			return "", ErrInvalidPhone
		}
	}
	return phone, nil
}

// ValidatePhoneForMethod normalizes the phone and checks that its operator
// prefix is served by the chosen wallet. It returns the normalized number.
func ValidatePhoneForMethod(raw, method string) (string, error) {
	prefixes, ok := methodPrefixes[strings.ToLower(strings.TrimSpace(method))]
	if !ok {
		return "", ErrUnsupportedMethod
	}
	phone, err := NormalizePhone(raw)
	if err != nil {
		return "", err
	}
	for _, p := range prefixes {
		if strings.HasPrefix(phone, p) {
			return phone, nil
		}
	}
	return "", ErrPhoneMethodMismatch
}
