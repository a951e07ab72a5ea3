package utils

import (
	"strings"
)

// DomainOf extracts the domain part from an email address, lowercased
// since mail domains compare case-insensitively.
func DomainOf(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return strings.ToLower(parts[1])
}
