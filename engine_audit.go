package goToken

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventRegisterSuccess     = "register_success"
	auditEventRegisterFailure     = "register_failure"
	auditEventRegisterDuplicate   = "register_duplicate"
	auditEventRegisterRateLimited = "register_rate_limited"
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginRateLimited    = "login_rate_limited"
	auditEventAuthenticateFailure = "authenticate_failure"
	auditEventKeyRotated          = "key_rotated"
)

// AuditErrorCode is the stable error label written into AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUnknownIdentity    AuditErrorCode = "unknown_identity"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrWeakCredential     AuditErrorCode = "weak_credential"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrExpiredToken       AuditErrorCode = "expired_token"
	auditErrUnknownKey         AuditErrorCode = "unknown_key"
	auditErrNoKey              AuditErrorCode = "no_signing_key"
	auditErrKeyRejected        AuditErrorCode = "key_rejected"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	identifier string,
	keyID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  e.now().UTC(),
		EventType:  eventType,
		UserID:     userID,
		Identifier: identifier,
		KeyID:      keyID,
		IP:         ClientIPFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredential):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUnknownIdentity):
		return auditErrUnknownIdentity
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRegisterRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrWeakCredential):
		return auditErrWeakCredential
	case errors.Is(err, ErrDuplicateIdentity),
		errors.Is(err, ErrProviderDuplicateIdentifier),
		errors.Is(err, ErrDuplicateKey):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidRegistration),
		errors.Is(err, ErrInvalidIdentity):
		return auditErrInvalidRequest
	case errors.Is(err, ErrExpired):
		return auditErrExpiredToken
	case errors.Is(err, ErrUnknownKey):
		return auditErrUnknownKey
	case errors.Is(err, ErrMalformed),
		errors.Is(err, ErrBadSignature),
		errors.Is(err, ErrNotYetValid),
		errors.Is(err, ErrClaimMismatch):
		return auditErrInvalidToken
	case errors.Is(err, ErrNoKeyConfigured):
		return auditErrNoKey
	case errors.Is(err, ErrKeyNotSigning),
		errors.Is(err, ErrKeyNotValid):
		return auditErrKeyRejected
	default:
		return auditErrInternal
	}
}
