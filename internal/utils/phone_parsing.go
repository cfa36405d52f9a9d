package utils

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is assumed for numbers written without a country code
const DefaultPhoneRegion = "PE"

// ParsePhoneNumber parses a phone number and returns it in E.164 form
func ParsePhoneNumber(phoneString string) (string, error) {
	cleanPhone := strings.TrimSpace(phoneString)
	if cleanPhone == "" {
		return "", fmt.Errorf("empty phone number")
	}

	num, err := phonenumbers.Parse(cleanPhone, DefaultPhoneRegion)
	if err != nil {
		return "", fmt.Errorf("failed to parse phone number: %w", err)
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("invalid phone number: %s", phoneString)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ValidatePhone reports whether phoneString is a dialable number
func ValidatePhone(phoneString string) error {
	_, err := ParsePhoneNumber(phoneString)
	return err
}
