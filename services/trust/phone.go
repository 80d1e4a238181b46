// File: trustpay/services/trust/phone.go
package trust

import (
	"unicode"

	"trustpay/models"
)

const minPhoneDigits = 10

// ValidatePhoneNumber accepts any number carrying at least ten digits after
// stripping formatting characters.
func ValidatePhoneNumber(phone string) error {
	digits := 0
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits < minPhoneDigits {
		return &models.ValidationError{
			Field:   "phoneNumber",
			Message: "must contain at least 10 digits",
		}
	}
	return nil
}
