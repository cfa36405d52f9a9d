package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/desafio-dunas/registration-api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var codeSpace = big.NewInt(1_000_000)

// GenerateVerificationCode returns a uniformly random 6-digit code
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", models.VerificationCodeLength, n.Int64()), nil
}

// HashVerificationCode hashes a code for storage
func HashVerificationCode(code string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash verification code: %w", err)
	}
	return string(hash), nil
}

// CompareVerificationCode reports whether code matches the stored hash
func CompareVerificationCode(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
