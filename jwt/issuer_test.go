package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/keystore"
)

func TestNewIssuerValidatesLifetime(t *testing.T) {
	store := keystore.New(keystore.Options{})
	for _, lifetime := range []time.Duration{0, -time.Second, 1500 * time.Millisecond} {
		if _, err := NewIssuer(store, nil, IssuerConfig{Lifetime: lifetime}); err == nil {
			t.Fatalf("expected lifetime %v to be rejected", lifetime)
		}
	}
	if _, err := NewIssuer(nil, nil, IssuerConfig{Lifetime: time.Minute}); err == nil {
		t.Fatal("expected nil key source to be rejected")
	}
}

func TestIssueWithoutKey(t *testing.T) {
	f := newFixture(t, nil, time.Hour, 0)
	if _, err := f.issuer.Issue(Identity{Subject: "u1"}); !errors.Is(err, keystore.ErrNoKeyConfigured) {
		t.Fatalf("expected ErrNoKeyConfigured, got %v", err)
	}
}

func TestIssueRejectsEmptySubject(t *testing.T) {
	f := newFixture(t, hmacKey(t, "k1"), time.Hour, 0)
	if _, err := f.issuer.Issue(Identity{Subject: "  "}); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
}

func TestIssueSetsTimesKeyAndID(t *testing.T) {
	clock := newTestClock(1000)
	store := keystore.New(keystore.Options{Now: clock.Now})
	if err := store.Rotate(hmacKey(t, "k1")); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	iss, err := NewIssuer(store, nil, IssuerConfig{
		Lifetime: time.Hour,
		Issuer:   "gotoken",
		Audience: "api",
		Now:      clock.Now,
		NewID:    func() string { return "jti-1" },
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	tok, err := iss.Issue(Identity{Subject: "u1", Roles: []string{"b", "a", "b"}})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tok.KeyID != "k1" || tok.ID != "jti-1" {
		t.Fatalf("unexpected token metadata %+v", tok)
	}
	if tok.IssuedAt.Unix() != 1000 || tok.ExpiresAt.Unix() != 4600 {
		t.Fatalf("unexpected times iat=%d exp=%d", tok.IssuedAt.Unix(), tok.ExpiresAt.Unix())
	}

	d, err := NewCodec().Decode(tok.Raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Claims.Issuer != "gotoken" || len(d.Claims.Audience) != 1 || d.Claims.Audience[0] != "api" {
		t.Fatalf("unexpected iss/aud %+v", d.Claims.RegisteredClaims)
	}
	if got := d.Claims.ExpiresAt.Sub(d.Claims.IssuedAt.Time); got != time.Hour {
		t.Fatalf("expected exp-iat=1h, got %v", got)
	}
	if len(d.Claims.Roles) != 2 || d.Claims.Roles[0] != "a" || d.Claims.Roles[1] != "b" {
		t.Fatalf("expected normalized roles, got %v", d.Claims.Roles)
	}
}
