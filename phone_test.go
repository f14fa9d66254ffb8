package accounts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	accounts "github.com/userkit/go-accounts"
)

func TestValidatePhoneNumber(t *testing.T) {
	cases := []struct {
		phone string
		valid bool
	}{
		{"", true},
		{"+14155552671", true},
		{"+442071838750", true},
		{"not-a-number", false},
		{"555-0100", false},
		{"+1999999999999999", false},
	}

	for _, tc := range cases {
		err := accounts.ValidatePhoneNumber(tc.phone)
		if tc.valid {
			assert.NoError(t, err, "phone %q", tc.phone)
		} else {
			assert.Error(t, err, "phone %q", tc.phone)
		}
	}
}
