package jwt

import (
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated subject carried by a token.
type Identity struct {
	Subject  string
	Roles    []string
	IssuedAt time.Time
}

// HasRole reports whether role is in the identity's role set.
func (i Identity) HasRole(role string) bool {
	idx := sort.SearchStrings(i.Roles, role)
	return idx < len(i.Roles) && i.Roles[idx] == role
}

// Claims is the token payload. Field order is fixed by the struct so the
// serialised payload is stable.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// Token is an issued access token.
type Token struct {
	Raw       string
	KeyID     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (t Token) String() string { return t.Raw }

// NormalizeRoles trims, drops empties, de-duplicates and sorts roles. The
// result is never nil.
func NormalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func unixUTC(t time.Time) time.Time {
	return time.Unix(t.Unix(), 0).UTC()
}
