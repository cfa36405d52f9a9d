package observability

import (
	"strings"

	"github.com/desafio-dunas/registration-api/internal/logging"
)

// Logger returns the global safe logger instance
func Logger() *logging.SafeLogger {
	return logging.Logger
}

// MaskEmail keeps the first character of the local part and the domain
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 1 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// MaskDocument keeps the last two digits of an identity document number
func MaskDocument(doc string) string {
	if len(doc) < 4 {
		return "********"
	}
	return strings.Repeat("*", len(doc)-2) + doc[len(doc)-2:]
}
