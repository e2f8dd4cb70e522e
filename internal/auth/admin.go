package auth

import "strings"

// AdminList is the set of emails that are site admins.
// Comparison is case-insensitive and ignores surrounding whitespace.
type AdminList map[string]struct{}

// NewAdminList builds an AdminList, skipping blank entries.
func NewAdminList(emails []string) AdminList {
	list := make(AdminList, len(emails))
	for _, e := range emails {
		e = normalizeEmail(e)
		if e != "" {
			list[e] = struct{}{}
		}
	}
	return list
}

// Contains reports whether email is on the list. A nil email never is.
func (a AdminList) Contains(email *string) bool {
	if email == nil {
		return false
	}
	_, ok := a[normalizeEmail(*email)]
	return ok
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
