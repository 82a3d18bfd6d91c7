package shared

import "strings"

// NameKey is the case-insensitive identity used to match accounts and categories by name
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
