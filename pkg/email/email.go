// Package email derives display names from reviewer email addresses.
package email

import (
	"strings"
	"unicode"
)

const fallbackName = "Reviewer"

// DeriveNameFromEmail splits an email's local part into a displayable
// first/last name pair. Seed entries carry only an address and an API key,
// so queue views need something presentable to show.
func DeriveNameFromEmail(email string) (first, last string) {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	switch len(parts) {
	case 0:
		return fallbackName, fallbackName
	case 1:
		return title(parts[0]), fallbackName
	default:
		return title(parts[0]), title(parts[len(parts)-1])
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
