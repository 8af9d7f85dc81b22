package password

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

// cheapConfig keeps the tests fast while staying at the accepted floor.
func cheapConfig() Argon2Config {
	return Argon2Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func mustArgon2(t *testing.T, cfg Argon2Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func mustHash(t *testing.T, h *Argon2, plain string) string {
	t.Helper()
	encoded, err := h.Hash(plain)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return encoded
}

func TestArgon2RoundTrip(t *testing.T) {
	h := mustArgon2(t, cheapConfig())
	encoded := mustHash(t, h, "P@ssw0rd-Ascii")

	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", encoded)
	}
	if strings.Contains(encoded, "=$") || strings.HasSuffix(encoded, "=") {
		t.Fatalf("expected unpadded base64: %s", encoded)
	}

	for _, tc := range []struct {
		plain string
		want  bool
	}{
		{"P@ssw0rd-Ascii", true},
		{"P@ssw0rd-ascii", false},
		{"", false},
	} {
		ok, err := h.Verify(tc.plain, encoded)
		if err != nil {
			t.Fatalf("Verify(%q): %v", tc.plain, err)
		}
		if ok != tc.want {
			t.Fatalf("Verify(%q) = %v, want %v", tc.plain, ok, tc.want)
		}
	}
}

func TestArgon2SaltsDiffer(t *testing.T) {
	h := mustArgon2(t, cheapConfig())
	if mustHash(t, h, "same") == mustHash(t, h, "same") {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestArgon2AcceptsPaddedLegacyEncoding(t *testing.T) {
	h := mustArgon2(t, cheapConfig())
	encoded := mustHash(t, h, "legacy-padding")

	parts := strings.Split(encoded, "$")
	salt, _ := base64.RawStdEncoding.DecodeString(parts[4])
	key, _ := base64.RawStdEncoding.DecodeString(parts[5])
	parts[4] = base64.StdEncoding.EncodeToString(salt)
	parts[5] = base64.StdEncoding.EncodeToString(key)
	padded := strings.Join(parts, "$")

	ok, err := h.Verify("legacy-padding", padded)
	if err != nil || !ok {
		t.Fatalf("padded hash: ok=%v err=%v", ok, err)
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	with := func(mutate func(*Argon2Config)) Argon2Config {
		c := cheapConfig()
		mutate(&c)
		return c
	}

	cases := []struct {
		name            string
		stored, current Argon2Config
		want            bool
	}{
		{"same parameters", cheapConfig(), cheapConfig(), false},
		{"stored is stronger", with(func(c *Argon2Config) { c.Time = 2 }), cheapConfig(), false},
		{"less memory", cheapConfig(), with(func(c *Argon2Config) { c.Memory = 16 * 1024 }), true},
		{"fewer iterations", cheapConfig(), with(func(c *Argon2Config) { c.Time = 2 }), true},
		{"shorter key", with(func(c *Argon2Config) { c.KeyLength = 16 }), cheapConfig(), true},
		{"longer key", with(func(c *Argon2Config) { c.KeyLength = 64 }), cheapConfig(), true},
		{"shorter salt", cheapConfig(), with(func(c *Argon2Config) { c.SaltLength = 32 }), true},
		{"max bytes ignored", cheapConfig(), with(func(c *Argon2Config) { c.MaxPasswordBytes = 64 }), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stored := mustHash(t, mustArgon2(t, tc.stored), "upgrade-me")
			got, err := mustArgon2(t, tc.current).NeedsUpgrade(stored)
			if err != nil {
				t.Fatalf("NeedsUpgrade: %v", err)
			}
			if got != tc.want {
				t.Fatalf("NeedsUpgrade = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestArgon2RejectsBrokenHashes(t *testing.T) {
	h := mustArgon2(t, cheapConfig())
	good := mustHash(t, h, "broken")

	cases := map[string]struct {
		hash string
		want error
	}{
		"not phc":          {"not-a-phc-hash", ErrInvalidHash},
		"too few fields":   {"$argon2id$v=19$m=8192,t=1,p=1$abc", ErrInvalidHash},
		"other algorithm":  {strings.Replace(good, "$argon2id$", "$argon2i$", 1), ErrUnsupportedAlgorithm},
		"wrong version":    {strings.Replace(good, "$v=19$", "$v=18$", 1), ErrInvalidHash},
		"memory too low":   {strings.Replace(good, "m=8192", "m=1024", 1), ErrInvalidHash},
		"extra parameter":  {strings.Replace(good, "p=1$", "p=1,x=2$", 1), ErrInvalidHash},
		"parameter order":  {strings.Replace(good, "m=8192,t=1", "t=1,m=8192", 1), ErrInvalidHash},
		"salt not base64":  {strings.Replace(good, "p=1$", "p=1$!!", 1), ErrInvalidHash},
		"parallelism zero": {strings.Replace(good, "p=1$", "p=0$", 1), ErrInvalidHash},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := h.Verify("broken", tc.hash); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestArgon2PlaintextLimits(t *testing.T) {
	limited := cheapConfig()
	limited.MaxPasswordBytes = 64
	h := mustArgon2(t, limited)

	if _, err := h.Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("empty: expected ErrEmptyPassword, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("65 bytes: expected ErrPasswordTooLong, got %v", err)
	}

	exact := strings.Repeat("b", 64)
	encoded := mustHash(t, h, exact)
	if ok, err := h.Verify(exact, encoded); err != nil || !ok {
		t.Fatalf("max-length password: ok=%v err=%v", ok, err)
	}
	if _, err := h.Verify(strings.Repeat("c", 65), encoded); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("Verify 65 bytes: expected ErrPasswordTooLong, got %v", err)
	}

	// zero MaxPasswordBytes falls back to DefaultMaxPasswordBytes
	d := mustArgon2(t, cheapConfig())
	if _, err := d.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected default limit of %d bytes, got %v", DefaultMaxPasswordBytes, err)
	}
}

func TestArgon2Recognizes(t *testing.T) {
	h := mustArgon2(t, cheapConfig())
	if !h.Recognizes(mustHash(t, h, "x")) {
		t.Fatal("expected own hash to be recognised")
	}
	if h.Recognizes("$2a$10$abcdefghijklmnopqrstuu") {
		t.Fatal("bcrypt hash must not be recognised")
	}
}

func TestNewArgon2RejectsWeakParameters(t *testing.T) {
	cases := map[string]func(*Argon2Config){
		"memory":      func(c *Argon2Config) { c.Memory = 1024 },
		"time":        func(c *Argon2Config) { c.Time = 0 },
		"parallelism": func(c *Argon2Config) { c.Parallelism = 0 },
		"salt":        func(c *Argon2Config) { c.SaltLength = 8 },
		"key":         func(c *Argon2Config) { c.KeyLength = 8 },
		"max bytes":   func(c *Argon2Config) { c.MaxPasswordBytes = -1 },
	}
	for name, mutate := range cases {
		cfg := cheapConfig()
		mutate(&cfg)
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("%s: expected config to be rejected", name)
		}
	}
}
