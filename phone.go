package accounts

import (
	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// ValidatePhoneNumber accepts E.164 formatted numbers. Empty input is
// valid since phone is an optional profile field.
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return nil
	}

	num, err := phonenumbers.Parse(phone, "")
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid phone number").
			WithCode(errors.CodeBadRequest)
	}

	if !phonenumbers.IsValidNumber(num) {
		return errors.New("phone number is not valid", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	return nil
}
