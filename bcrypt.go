package accounts

import (
	"crypto/rand"
	"errors"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

const (
	tempPasswordLength = 8

	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	numberChars  = "0123456789"
	specialChars = "@$!%*?&"
)

// GenerateTemporaryPassword produces a random password for invited accounts
// that satisfies the registration complexity rules: at least one uppercase,
// one lowercase, one digit, and one special character. The invited user
// replaces it when completing their profile.
func GenerateTemporaryPassword() string {
	all := upperChars + lowerChars + numberChars + specialChars

	chars := []byte{
		randomChar(upperChars),
		randomChar(lowerChars),
		randomChar(numberChars),
		randomChar(specialChars),
	}

	for len(chars) < tempPasswordLength {
		chars = append(chars, randomChar(all))
	}

	shuffle(chars)

	return string(chars)
}

func randomChar(set string) byte {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		// crypto/rand only fails when the platform source is broken
		panic(err)
	}
	return set[n.Int64()]
}

func shuffle(b []byte) {
	for i := len(b) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			panic(err)
		}
		j := n.Int64()
		b[i], b[j] = b[j], b[i]
	}
}
