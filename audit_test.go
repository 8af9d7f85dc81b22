package goToken

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func auditTestConfig() Config {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 32
	cfg.Audit.DropIfFull = false
	return cfg
}

func collectEvents(t *testing.T, sink *ChannelSink, n int) []AuditEvent {
	t.Helper()

	events := make([]AuditEvent, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("expected %d audit events, got %d", n, len(events))
		}
	}
	return events
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = false

	sink := &countingSink{}
	te := newEngineForTest(t, cfg, withAuditSink(sink))
	te.up.seed(t, newTestHasher(t), "u1", "alice", "correct-horse-battery")

	_, _ = te.engine.Login(WithClientIP(context.Background(), "203.0.113.1"), "alice", "wrong-password")
	te.engine.Close()

	if got := sink.count.Load(); got != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", got)
	}
}

func TestAuditLoginEventsCarryFields(t *testing.T) {
	sink := NewChannelSink(16)
	te := newEngineForTest(t, auditTestConfig(), withAuditSink(sink))
	te.up.seed(t, newTestHasher(t), "u1", "alice", "correct-horse-battery")

	ctx := WithClientIP(context.Background(), "198.51.100.33")
	_, _ = te.engine.Login(ctx, "alice", "wrong-password")
	_, _ = te.engine.Login(ctx, "nobody", "wrong-password")
	tok, err := te.engine.Login(ctx, "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	events := collectEvents(t, sink, 3)

	wrong, unknown, ok := events[0], events[1], events[2]
	if wrong.EventType != auditEventLoginFailure || wrong.Error != string(auditErrInvalidCredentials) || wrong.UserID != "u1" {
		t.Fatalf("unexpected wrong-password event: %+v", wrong)
	}
	if unknown.EventType != auditEventLoginFailure || unknown.Error != string(auditErrUnknownIdentity) || unknown.UserID != "" {
		t.Fatalf("unexpected unknown-identity event: %+v", unknown)
	}
	if !ok.Success || ok.EventType != auditEventLoginSuccess || ok.KeyID != tok.KeyID {
		t.Fatalf("unexpected success event: %+v", ok)
	}
	if ok.Metadata["jti"] != tok.ID {
		t.Fatalf("expected jti metadata %q, got %q", tok.ID, ok.Metadata["jti"])
	}
	for _, ev := range events {
		if ev.IP != "198.51.100.33" {
			t.Fatalf("expected IP 198.51.100.33, got %q", ev.IP)
		}
		if !ev.Timestamp.Equal(te.clock.Now()) {
			t.Fatalf("expected engine clock timestamp, got %v", ev.Timestamp)
		}
	}
}

func TestAuditRegisterAndRotation(t *testing.T) {
	sink := NewChannelSink(16)
	te := newEngineForTest(t, auditTestConfig(), withAuditSink(sink))
	ctx := context.Background()

	if _, err := te.engine.Register(ctx, RegisterRequest{Identifier: "alice", Password: "correct-horse-battery", Roles: []string{"admin"}}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_, _ = te.engine.Register(ctx, RegisterRequest{Identifier: "alice", Password: "correct-horse-battery"})
	if err := te.engine.RotateKey(ctx, mustHMACKey(t, "k2")); err != nil {
		t.Fatalf("RotateKey failed: %v", err)
	}

	events := collectEvents(t, sink, 3)
	if events[0].EventType != auditEventRegisterSuccess || events[0].Metadata["roles"] != "admin" {
		t.Fatalf("unexpected register event: %+v", events[0])
	}
	if events[1].EventType != auditEventRegisterDuplicate || events[1].Error != string(auditErrDuplicate) {
		t.Fatalf("unexpected duplicate event: %+v", events[1])
	}
	if events[2].EventType != auditEventKeyRotated || events[2].KeyID != "k2" || events[2].Metadata["previous_kid"] != "k1" {
		t.Fatalf("unexpected rotation event: %+v", events[2])
	}
}

func TestAuditAuthenticateFailuresOptIn(t *testing.T) {
	ctx := context.Background()

	sink := &countingSink{}
	te := newEngineForTest(t, auditTestConfig(), withAuditSink(sink))
	_, _ = te.engine.Authenticate(ctx, "not-a-token")
	te.engine.Close()
	if got := sink.count.Load(); got != 0 {
		t.Fatalf("expected no authenticate audit by default, got %d", got)
	}

	cfg := auditTestConfig()
	cfg.Audit.AuthenticateFailures = true
	ch := NewChannelSink(4)
	te = newEngineForTest(t, cfg, withAuditSink(ch))
	_, _ = te.engine.Authenticate(ctx, "not-a-token")

	ev := collectEvents(t, ch, 1)[0]
	if ev.EventType != auditEventAuthenticateFailure || ev.Error != string(auditErrInvalidToken) {
		t.Fatalf("unexpected authenticate event: %+v", ev)
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	sink := NewChannelSink(32)
	te := newEngineForTest(t, auditTestConfig(), withAuditSink(sink))
	ctx := context.Background()

	const secret = "correct-horse-battery"
	user, err := te.engine.Register(ctx, RegisterRequest{Identifier: "alice", Password: secret})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_, _ = te.engine.Login(ctx, "alice", secret+"-typo")
	tok, err := te.engine.Login(ctx, "alice", secret)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	needles := []string{secret, secret + "-typo", user.PasswordHash, tok.Raw}
	for _, ev := range collectEvents(t, sink, 3) {
		for _, needle := range needles {
			if strings.Contains(ev.Error, needle) {
				t.Fatalf("sensitive value leaked in audit error field: %q", needle)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("sensitive value leaked in audit metadata: %q", needle)
				}
			}
		}
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrInvalidCredential, auditErrInvalidCredentials},
		{ErrLoginRateLimited, auditErrRateLimited},
		{ErrRegisterRateLimited, auditErrRateLimited},
		{ErrWeakCredential, auditErrWeakCredential},
		{ErrExpired, auditErrExpiredToken},
		{ErrBadSignature, auditErrInvalidToken},
		{ErrUnknownKey, auditErrUnknownKey},
		{ErrKeyNotSigning, auditErrKeyRejected},
		{context.DeadlineExceeded, auditErrInternal},
	}
	for _, tt := range tests {
		if got := auditErrorCode(tt.err); got != tt.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
