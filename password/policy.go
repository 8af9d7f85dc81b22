package password

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Policy is the plaintext policy applied at registration, before hashing.
type Policy struct {
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	// Deny lists passwords rejected regardless of shape, compared case-insensitively.
	Deny []string
}

// DefaultPolicy returns a length-only policy with a small deny list.
func DefaultPolicy() Policy {
	return Policy{
		MinLength: 10,
		MaxLength: 128,
		Deny:      []string{"password123", "1234567890", "qwertyuiop", "letmein123"},
	}
}

// Check returns the list of unmet requirements. Lengths count runes.
func (p Policy) Check(s string) []string {
	var reasons []string
	n := utf8.RuneCountInString(s)
	if n < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		reasons = append(reasons, "too_long")
	}

	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	if p.RequireUpper && !hasU {
		reasons = append(reasons, "missing_upper")
	}
	if p.RequireLower && !hasL {
		reasons = append(reasons, "missing_lower")
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, "missing_digit")
	}
	if p.RequireSymbol && !hasS {
		reasons = append(reasons, "missing_symbol")
	}
	for _, d := range p.Deny {
		if strings.EqualFold(s, d) {
			reasons = append(reasons, "denied")
			break
		}
	}
	return reasons
}

// Validate wraps [ErrWeak] with the unmet requirements, or returns nil.
func (p Policy) Validate(s string) error {
	reasons := p.Check(s)
	if len(reasons) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrWeak, strings.Join(reasons, ","))
}
