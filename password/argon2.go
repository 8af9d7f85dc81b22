package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

// DefaultMaxPasswordBytes bounds the plaintext accepted by Hash and Verify.
const DefaultMaxPasswordBytes = 1024

const argon2idPrefix = "$argon2id$"

// floor is the weakest configuration NewArgon2 accepts and the weakest a
// stored hash may declare.
var floor = Argon2Config{
	Memory:      8 * 1024,
	Time:        1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   16,
}

// Argon2Config holds Argon2id cost parameters.
type Argon2Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MaxPasswordBytes caps plaintext length. Zero selects DefaultMaxPasswordBytes.
	MaxPasswordBytes int
}

// DefaultArgon2Config returns the parameters used when none are configured.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Argon2Config) validate() error {
	switch {
	case c.Memory < floor.Memory:
		return fmt.Errorf("password memory must be >= %d KB", floor.Memory)
	case c.Time < floor.Time:
		return errors.New("password time must be >= 1")
	case c.Parallelism < floor.Parallelism:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < floor.SaltLength:
		return fmt.Errorf("password salt length must be >= %d", floor.SaltLength)
	case c.KeyLength < floor.KeyLength:
		return fmt.Errorf("password key length must be >= %d", floor.KeyLength)
	case c.MaxPasswordBytes < 0:
		return errors.New("password max bytes must not be negative")
	}
	return nil
}

// phc is a decoded Argon2id hash in PHC string format:
// $argon2id$v=19$m=<KiB>,t=<iterations>,p=<lanes>$<salt>$<key>
// Salt and key are unpadded standard base64.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (h phc) String() string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idPrefix, argon2.Version,
		h.memory, h.time, h.parallelism,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func (h phc) derive(password string) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.key)))
}

func decodePHC(encoded string) (phc, error) {
	var h phc
	if !strings.HasPrefix(encoded, "$") {
		return h, fmt.Errorf("%w: invalid PHC format", ErrInvalidHash)
	}
	fields := strings.Split(encoded[1:], "$")
	if len(fields) != 5 {
		return h, fmt.Errorf("%w: invalid PHC format", ErrInvalidHash)
	}
	if fields[0] != "argon2id" {
		return h, ErrUnsupportedAlgorithm
	}

	var version int
	if _, err := fmt.Sscanf(fields[1], "v=%d", &version); err != nil {
		return h, fmt.Errorf("%w: invalid argon2 version", ErrInvalidHash)
	}
	if version != argon2.Version {
		return h, fmt.Errorf("%w: unsupported argon2 version %d", ErrInvalidHash, version)
	}

	var m, t, p uint32
	n, err := fmt.Sscanf(fields[2], "m=%d,t=%d,p=%d", &m, &t, &p)
	if err != nil || n != 3 || fmt.Sprintf("m=%d,t=%d,p=%d", m, t, p) != fields[2] {
		return h, fmt.Errorf("%w: invalid parameters", ErrInvalidHash)
	}
	if m < floor.Memory || t < floor.Time || p < uint32(floor.Parallelism) || p > 255 {
		return h, fmt.Errorf("%w: parameters below minimum", ErrInvalidHash)
	}
	h.memory, h.time, h.parallelism = m, t, uint8(p)

	if h.salt, err = decodeB64(fields[3]); err != nil || len(h.salt) < int(floor.SaltLength) {
		return h, fmt.Errorf("%w: invalid salt", ErrInvalidHash)
	}
	if h.key, err = decodeB64(fields[4]); err != nil || len(h.key) == 0 {
		return h, fmt.Errorf("%w: invalid key", ErrInvalidHash)
	}
	return h, nil
}

// decodeB64 accepts padded and unpadded encodings; older hashes were padded.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// Argon2 is an Argon2id [Hasher]. It is safe for concurrent use.
type Argon2 struct {
	cfg Argon2Config
}

// NewArgon2 rejects configurations weaker than the package floor.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash derives a PHC-encoded Argon2id hash with a fresh random salt.
// Plaintext is hashed as raw bytes without Unicode normalisation.
func (a *Argon2) Hash(password string) (string, error) {
	switch {
	case password == "":
		return "", ErrEmptyPassword
	case len(password) > a.cfg.MaxPasswordBytes:
		return "", ErrPasswordTooLong
	}

	h := phc{
		memory:      a.cfg.Memory,
		time:        a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        make([]byte, a.cfg.SaltLength),
		key:         make([]byte, a.cfg.KeyLength),
	}
	if _, err := io.ReadFull(rand.Reader, h.salt); err != nil {
		return "", err
	}
	h.key = h.derive(password)
	return h.String(), nil
}

// Verify recomputes the key with the stored parameters and compares in
// constant time. A mismatch is (false, nil); an unparsable hash is an error.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > a.cfg.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	h, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(h.derive(password), h.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash is weaker than the configured
// parameters in any dimension, or uses a different key length.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	h, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	weaker := h.memory < a.cfg.Memory ||
		h.time < a.cfg.Time ||
		h.parallelism < a.cfg.Parallelism ||
		uint32(len(h.salt)) < a.cfg.SaltLength ||
		uint32(len(h.key)) != a.cfg.KeyLength
	return weaker, nil
}

// Recognizes reports whether encodedHash is an Argon2id PHC string.
func (a *Argon2) Recognizes(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, argon2idPrefix)
}
