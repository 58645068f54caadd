package model

import (
	"time"

	"github.com/google/uuid"
)

// VerificationOutcome is the single terminal classification of one
// verification attempt. Exactly one outcome is produced per attempt.
type VerificationOutcome string

const (
	OutcomeSuccess           VerificationOutcome = "success"
	OutcomeTokenMismatch     VerificationOutcome = "token-mismatch"
	OutcomeTokenAbsent       VerificationOutcome = "token-absent"
	OutcomeUnreachable       VerificationOutcome = "unreachable"
	OutcomeTimeout           VerificationOutcome = "timeout"
	OutcomeInvalidURL        VerificationOutcome = "invalid-url"
	OutcomeDisallowedHost    VerificationOutcome = "disallowed-host"
	OutcomeNonHTML           VerificationOutcome = "non-html-response"
	OutcomeHTTPError         VerificationOutcome = "http-error"
	OutcomeAttemptsExhausted VerificationOutcome = "attempts-exhausted"
)

// InputError reports whether the outcome stems from bad caller input rather
// than anything observed at the target. Input errors map to HTTP 400 on the
// verification endpoint; everything else is a business outcome served as 200.
func (o VerificationOutcome) InputError() bool {
	return o == OutcomeInvalidURL || o == OutcomeDisallowedHost
}

// Message returns the caller-facing description for a failed outcome.
func (o VerificationOutcome) Message() string {
	switch o {
	case OutcomeSuccess:
		return ""
	case OutcomeTokenMismatch:
		return "verification token does not match; check that you copied it correctly"
	case OutcomeTokenAbsent:
		return "verification meta tag not found on the website"
	case OutcomeUnreachable:
		return "could not reach the website; check that the URL is correct and accessible"
	case OutcomeTimeout:
		return "timeout: the website took too long to respond (max 10s)"
	case OutcomeInvalidURL:
		return "invalid website URL"
	case OutcomeDisallowedHost:
		return "website URL is not allowed"
	case OutcomeNonHTML:
		return "the website did not return a valid HTML page"
	case OutcomeAttemptsExhausted:
		return "verification attempt limit reached; start a new verification session"
	default:
		return "could not access the website"
	}
}

// SessionStatus is the lifecycle state of a verification session.
type SessionStatus string

const (
	// SessionPending — token issued, ownership not yet proven.
	SessionPending SessionStatus = "pending"
	// SessionVerified — a fetch found the matching token. Terminal.
	SessionVerified SessionStatus = "verified"
	// SessionLocked — the attempt cap was reached without success. Terminal.
	SessionLocked SessionStatus = "locked"
)

// VerificationSession is a server-side ownership verification attempt record.
// The attempt counter lives here, not in the client, so the cap holds against
// a client that simply stops reporting its local count.
type VerificationSession struct {
	ID          uuid.UUID           `json:"id"           db:"id"`
	OwnerUserID uuid.UUID           `json:"owner_user_id" db:"owner_user_id"`
	Token       string              `json:"token"        db:"token"`
	Status      SessionStatus       `json:"status"       db:"status"`
	Attempts    int                 `json:"attempts"     db:"attempts"`
	LastOutcome VerificationOutcome `json:"last_outcome,omitempty" db:"last_outcome"`
	WebsiteURL  string              `json:"website_url,omitempty"  db:"website_url"`
	CreatedAt   time.Time           `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"   db:"updated_at"`
	ExpiresAt   time.Time           `json:"expires_at"   db:"expires_at"`

	// MetaTag is computed at read time; never stored.
	MetaTag string `json:"meta_tag,omitempty" db:"-"`
}

// Verified reports whether this session proved ownership.
func (s *VerificationSession) Verified() bool {
	return s.Status == SessionVerified
}
