package jwt

import (
	"fmt"

	"github.com/MrEthical07/goToken/keystore"
	"github.com/golang-jwt/jwt/v5"
)

const maxTokenLength = 8 << 10

// Header is the decoded JOSE header.
type Header struct {
	Algorithm string
	KeyID     string
	Type      string
}

// Decoded is a token split into its parts. The signature has not been checked.
type Decoded struct {
	Header    Header
	Claims    Claims
	Signature []byte

	signingInput string
}

// SigningInput returns the exact header and payload segments the signature covers.
func (d *Decoded) SigningInput() string { return d.signingInput }

// Codec converts between claims and the compact serialisation
// base64url(header) "." base64url(payload) "." base64url(signature).
type Codec struct {
	parser *jwt.Parser
}

// NewCodec returns a codec that rejects non-canonical base64.
func NewCodec() *Codec {
	return &Codec{parser: jwt.NewParser(jwt.WithStrictDecoding())}
}

// Encode serialises claims with a header naming key's algorithm and id, then
// signs the result. Output is deterministic for fixed claims and key.
func (c *Codec) Encode(claims Claims, key *keystore.SigningKey) (string, error) {
	if key == nil {
		return "", keystore.ErrNoKeyConfigured
	}
	if claims.Roles == nil {
		claims.Roles = []string{}
	}
	tok := jwt.NewWithClaims(key.Method(), claims)
	tok.Header["kid"] = key.ID()

	signingInput, err := tok.SigningString()
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	sig, err := key.Sign(signingInput)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signingInput + "." + tok.EncodeSegment(sig), nil
}

// Decode splits raw into header, claims and signature. It fails with
// [ErrMalformed] when any segment cannot be decoded, the algorithm is not one
// the keystore supports, or sub, iat or exp are missing.
func (c *Codec) Decode(raw string) (*Decoded, error) {
	if raw == "" || len(raw) > maxTokenLength {
		return nil, fmt.Errorf("%w: bad length", ErrMalformed)
	}

	var claims Claims
	tok, parts, err := c.parser.ParseUnverified(raw, &claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	h, err := decodeHeader(tok.Header)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrMalformed)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing iat or exp", ErrMalformed)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, fmt.Errorf("%w: exp must follow iat", ErrMalformed)
	}

	return &Decoded{
		Header:       h,
		Claims:       claims,
		Signature:    tok.Signature,
		signingInput: parts[0] + "." + parts[1],
	}, nil
}

// VerifySignature reports whether d was signed by key. The header algorithm
// must match the key's algorithm.
func (c *Codec) VerifySignature(d *Decoded, key *keystore.SigningKey) bool {
	if d == nil || key == nil {
		return false
	}
	if d.Header.Algorithm != string(key.Algorithm()) {
		return false
	}
	return key.Verify(d.signingInput, d.Signature)
}

func decodeHeader(raw map[string]any) (Header, error) {
	var h Header
	alg, _ := raw["alg"].(string)
	switch keystore.Algorithm(alg) {
	case keystore.AlgorithmHS256, keystore.AlgorithmEdDSA:
		h.Algorithm = alg
	default:
		return Header{}, fmt.Errorf("%w: unsupported alg %q", ErrMalformed, alg)
	}
	if v, ok := raw["kid"]; ok {
		kid, isString := v.(string)
		if !isString {
			return Header{}, fmt.Errorf("%w: kid must be a string", ErrMalformed)
		}
		h.KeyID = kid
	}
	if v, ok := raw["typ"]; ok {
		typ, isString := v.(string)
		if !isString {
			return Header{}, fmt.Errorf("%w: typ must be a string", ErrMalformed)
		}
		h.Type = typ
	}
	return h, nil
}
