package domain

import "fmt"

// Name is a validated database name. Comparison is case-sensitive.
type Name string

// ReservedDatabaseName is the system database name. User records may never
// be created with it or renamed to it.
const ReservedDatabaseName Name = "rethinkdb"

// ParseName validates s against the server naming rules: non-empty,
// characters restricted to A-Z, a-z, 0-9 and underscore.
func ParseName(s string) (Name, error) {
	if s == "" || !validNameChars(s) {
		return "", fmt.Errorf("Database name `%s` invalid. (Use A-Za-z0-9_ only.)", s)
	}
	return Name(s), nil
}

func validNameChars(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

func (n Name) String() string { return string(n) }
