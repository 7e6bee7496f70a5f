package httpapi

import (
	"strings"
	"unicode/utf8"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 20
	minPasswordLength = 6
)

// validateRegistration returns every violated field. Lengths count
// characters, not bytes.
func validateRegistration(username, password string) map[string][]string {
	fields := make(map[string][]string)

	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		fields["username"] = append(fields["username"], "must be between 3 and 20 characters")
	}
	if strings.TrimSpace(username) != username {
		fields["username"] = append(fields["username"], "must not start or end with whitespace")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		fields["password"] = append(fields["password"], "must be at least 6 characters")
	}

	return fields
}
