package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm names a JWS signing algorithm supported by the store.
type Algorithm string

const (
	// AlgorithmHS256 is HMAC-SHA256 with a shared secret.
	AlgorithmHS256 Algorithm = "HS256"
	// AlgorithmEdDSA is Ed25519.
	AlgorithmEdDSA Algorithm = "EdDSA"
)

const minHMACSecretBytes = 32

// Window bounds the time during which a key may be used. NotBefore is
// inclusive, NotAfter is exclusive. A zero bound is open-ended.
type Window struct {
	NotBefore time.Time
	NotAfter  time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.NotBefore.IsZero() && t.Before(w.NotBefore) {
		return false
	}
	if !w.NotAfter.IsZero() && !t.Before(w.NotAfter) {
		return false
	}
	return true
}

func (w Window) validate() error {
	if !w.NotBefore.IsZero() && !w.NotAfter.IsZero() && !w.NotAfter.After(w.NotBefore) {
		return fmt.Errorf("%w: not-after must be later than not-before", ErrInvalidKey)
	}
	return nil
}

// SigningKey is a key id, its algorithm, its validity window and the secret
// material needed to sign or verify. The material stays unexported.
type SigningKey struct {
	id     string
	alg    Algorithm
	window Window

	secret  []byte
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

// KeyInfo is the metadata of a key, safe to log or return from admin APIs.
type KeyInfo struct {
	ID        string
	Algorithm Algorithm
	NotBefore time.Time
	NotAfter  time.Time
	CanSign   bool
	Current   bool
}

// NewHMACKey builds an HS256 key. The secret is copied and must be at least
// 32 bytes.
func NewHMACKey(id string, secret []byte, w Window) (*SigningKey, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	if len(secret) < minHMACSecretBytes {
		return nil, fmt.Errorf("%w: hs256 secret must be at least %d bytes", ErrInvalidKey, minHMACSecretBytes)
	}
	if err := w.validate(); err != nil {
		return nil, err
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &SigningKey{id: id, alg: AlgorithmHS256, window: w, secret: s}, nil
}

// NewEd25519Key builds a signing-capable Ed25519 key.
func NewEd25519Key(id string, priv ed25519.PrivateKey, w Window) (*SigningKey, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: ed25519 private key must be %d bytes", ErrInvalidKey, ed25519.PrivateKeySize)
	}
	if err := w.validate(); err != nil {
		return nil, err
	}
	p := make(ed25519.PrivateKey, len(priv))
	copy(p, priv)
	return &SigningKey{
		id:      id,
		alg:     AlgorithmEdDSA,
		window:  w,
		private: p,
		public:  p.Public().(ed25519.PublicKey),
	}, nil
}

// NewEd25519VerifyKey builds a verify-only Ed25519 key, for example the
// published key of a peer issuer. It can never become the current key.
func NewEd25519VerifyKey(id string, pub ed25519.PublicKey, w Window) (*SigningKey, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: ed25519 public key must be %d bytes", ErrInvalidKey, ed25519.PublicKeySize)
	}
	if err := w.validate(); err != nil {
		return nil, err
	}
	p := make(ed25519.PublicKey, len(pub))
	copy(p, pub)
	return &SigningKey{id: id, alg: AlgorithmEdDSA, window: w, public: p}, nil
}

// GenerateEd25519 creates a fresh Ed25519 key from crypto/rand.
func GenerateEd25519(id string, w Window) (*SigningKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return NewEd25519Key(id, priv, w)
}

// GenerateHMAC creates a fresh 32-byte HS256 secret from crypto/rand.
func GenerateHMAC(id string, w Window) (*SigningKey, error) {
	secret := make([]byte, minHMACSecretBytes)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("generate hmac secret: %w", err)
	}
	return NewHMACKey(id, secret, w)
}

// ParseEd25519PrivateKey accepts a raw 64-byte key or a PKCS#8 PEM block.
func ParseEd25519PrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ed25519 private key", ErrInvalidKey)
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: invalid ed25519 private key type", ErrInvalidKey)
	}
	return edKey, nil
}

// ParseEd25519PublicKey accepts a raw 32-byte key or a PKIX PEM block.
func ParseEd25519PublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ed25519 public key", ErrInvalidKey)
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: invalid ed25519 public key type", ErrInvalidKey)
	}
	return edKey, nil
}

// ID returns the key id carried in token headers.
func (k *SigningKey) ID() string { return k.id }

// Algorithm returns the JWS algorithm of the key.
func (k *SigningKey) Algorithm() Algorithm { return k.alg }

// Window returns the validity window.
func (k *SigningKey) Window() Window { return k.window }

// CanSign reports whether the key holds signing material.
func (k *SigningKey) CanSign() bool {
	switch k.alg {
	case AlgorithmHS256:
		return len(k.secret) > 0
	case AlgorithmEdDSA:
		return len(k.private) > 0
	default:
		return false
	}
}

// ValidAt reports whether t is inside the key's validity window.
func (k *SigningKey) ValidAt(t time.Time) bool {
	return k.window.Contains(t)
}

// Info returns key metadata without material.
func (k *SigningKey) Info() KeyInfo {
	return KeyInfo{
		ID:        k.id,
		Algorithm: k.alg,
		NotBefore: k.window.NotBefore,
		NotAfter:  k.window.NotAfter,
		CanSign:   k.CanSign(),
	}
}

// Method returns the jwt signing method matching the key algorithm.
func (k *SigningKey) Method() jwt.SigningMethod {
	switch k.alg {
	case AlgorithmHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

// Sign signs the exact bytes of signingInput.
func (k *SigningKey) Sign(signingInput string) ([]byte, error) {
	if !k.CanSign() {
		return nil, ErrKeyNotSigning
	}
	switch k.alg {
	case AlgorithmHS256:
		return jwt.SigningMethodHS256.Sign(signingInput, k.secret)
	default:
		return jwt.SigningMethodEdDSA.Sign(signingInput, k.private)
	}
}

// Verify checks sig over signingInput with the same jwt signing method Sign
// uses. HMAC comparison is constant time.
func (k *SigningKey) Verify(signingInput string, sig []byte) bool {
	var key any
	switch k.alg {
	case AlgorithmHS256:
		if len(k.secret) == 0 {
			return false
		}
		key = k.secret
	case AlgorithmEdDSA:
		if len(k.public) == 0 {
			return false
		}
		key = k.public
	default:
		return false
	}
	return k.Method().Verify(signingInput, sig, key) == nil
}

func (k *SigningKey) withNotAfter(t time.Time) *SigningKey {
	cp := *k
	cp.window.NotAfter = t
	return &cp
}

func normalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty key id", ErrInvalidKey)
	}
	return id, nil
}
