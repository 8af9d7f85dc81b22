package flows

import "context"

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Register     RegisterDeps
	Login        LoginDeps
	Authenticate AuthenticateDeps
}

// AuditFunc emits one audit event. userID, identifier and keyID may be empty.
type AuditFunc func(ctx context.Context, eventType string, success bool, userID, identifier, keyID string, err error, metadata func() map[string]string)

func noopAudit(context.Context, string, bool, string, string, string, error, func() map[string]string) {}

func noopMetric(int) {}
