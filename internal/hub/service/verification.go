package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/otservhub/hub/internal/hub/model"
	"github.com/otservhub/hub/internal/hub/repository"
	"github.com/otservhub/hub/internal/sitecheck"
	"go.uber.org/zap"
)

// Sentinel errors for the verification service.
var (
	ErrSessionNotFound = errors.New("verification session not found")
	ErrSessionExpired  = errors.New("verification session has expired; start a new one")
	ErrNotSessionOwner = errors.New("verification session belongs to another user")
)

// MaxAttempts is the hard cap on verification attempts per session. Once
// reached the session locks and a new one must be started.
const MaxAttempts = 3

// SessionTTL is how long a pending session stays usable.
const SessionTTL = 30 * time.Minute

// sessionStore is the storage interface required by VerificationService.
// *repository.VerificationSessionRepository satisfies this interface.
type sessionStore interface {
	Create(ctx context.Context, s *model.VerificationSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.VerificationSession, error)
	GetByToken(ctx context.Context, token string) (*model.VerificationSession, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	RecordOutcome(ctx context.Context, id uuid.UUID, outcome model.VerificationOutcome, status model.SessionStatus, websiteURL string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// pageFetcher retrieves the HTML body of a resolved target.
// In production this is *sitecheck.HTTPFetcher; in tests it can be stubbed.
type pageFetcher interface {
	Fetch(ctx context.Context, target *url.URL) (string, error)
}

// metaExtractor scans markup for a named meta tag's content attribute.
type metaExtractor interface {
	ExtractMetaContent(src, metaName string) string
}

// VerificationService manages website ownership verification sessions. A
// session issues a token the owner must publish as a meta tag on their site;
// each verify call fetches the site and compares.
type VerificationService struct {
	store     sessionStore
	fetcher   pageFetcher
	extractor metaExtractor
	logger    *zap.Logger
}

// NewVerificationService creates a VerificationService. Pass nil for fetcher
// or extractor to use the real HTTP fetcher and token scanner.
func NewVerificationService(store sessionStore, fetcher pageFetcher, extractor metaExtractor, logger *zap.Logger) *VerificationService {
	if fetcher == nil {
		fetcher = sitecheck.NewHTTPFetcher(sitecheck.DefaultTimeout)
	}
	if extractor == nil {
		extractor = sitecheck.TokenScanExtractor{}
	}
	return &VerificationService{store: store, fetcher: fetcher, extractor: extractor, logger: logger}
}

// StartSession issues a fresh token for the given user and persists a pending
// session. The caller must publish the returned meta tag on their website
// before calling Verify.
func (s *VerificationService) StartSession(ctx context.Context, userID uuid.UUID) (*model.VerificationSession, error) {
	token, err := sitecheck.NewToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	sess := &model.VerificationSession{
		OwnerUserID: userID,
		Token:       token,
		Status:      model.SessionPending,
		ExpiresAt:   time.Now().UTC().Add(SessionTTL),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	sess.MetaTag = sitecheck.MetaTag(token)

	s.logger.Info("verification session started",
		zap.String("session_id", sess.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Time("expires_at", sess.ExpiresAt),
	)
	return sess, nil
}

// GetSession returns a session's current state. The owner check keeps one
// user from reading another's token.
func (s *VerificationService) GetSession(ctx context.Context, id, userID uuid.UUID) (*model.VerificationSession, error) {
	sess, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.OwnerUserID != userID {
		return nil, ErrNotSessionOwner
	}
	sess.MetaTag = sitecheck.MetaTag(sess.Token)
	return sess, nil
}

// Verify runs one ownership check for the session: fetch the website and
// look for the session token in the verification meta tag. Every call that
// reaches the network consumes one of the session's attempts; the counter is
// bumped before the fetch so a crash mid-check still counts. A session that
// already verified returns success without fetching. A session at the attempt
// cap returns OutcomeAttemptsExhausted without fetching.
func (s *VerificationService) Verify(ctx context.Context, id, userID uuid.UUID, websiteURL string) (*model.VerificationSession, model.VerificationOutcome, error) {
	sess, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, "", ErrSessionNotFound
		}
		return nil, "", fmt.Errorf("get session: %w", err)
	}
	if sess.OwnerUserID != userID {
		return nil, "", ErrNotSessionOwner
	}
	return s.verifySession(ctx, sess, websiteURL)
}

// VerifyByToken runs one ownership check for the session identified by its
// token. This is the entry point for the public verify-website endpoint,
// where the token itself is the credential.
func (s *VerificationService) VerifyByToken(ctx context.Context, token, websiteURL string) (*model.VerificationSession, model.VerificationOutcome, error) {
	sess, err := s.store.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, "", ErrSessionNotFound
		}
		return nil, "", fmt.Errorf("get session: %w", err)
	}
	return s.verifySession(ctx, sess, websiteURL)
}

func (s *VerificationService) verifySession(ctx context.Context, sess *model.VerificationSession, websiteURL string) (*model.VerificationSession, model.VerificationOutcome, error) {
	sess.MetaTag = sitecheck.MetaTag(sess.Token)

	if sess.Verified() {
		return sess, model.OutcomeSuccess, nil // idempotent
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, "", ErrSessionExpired
	}
	if sess.Status == model.SessionLocked || sess.Attempts >= MaxAttempts {
		return sess, model.OutcomeAttemptsExhausted, nil
	}

	attempts, err := s.store.IncrementAttempts(ctx, sess.ID)
	if err != nil {
		return nil, "", fmt.Errorf("increment attempts: %w", err)
	}
	sess.Attempts = attempts

	outcome := s.check(ctx, sess.Token, websiteURL)

	status := model.SessionPending
	switch {
	case outcome == model.OutcomeSuccess:
		status = model.SessionVerified
	case attempts >= MaxAttempts:
		status = model.SessionLocked
	}
	if err := s.store.RecordOutcome(ctx, sess.ID, outcome, status, websiteURL); err != nil {
		return nil, "", fmt.Errorf("record outcome: %w", err)
	}
	sess.Status = status
	sess.LastOutcome = outcome
	sess.WebsiteURL = websiteURL

	s.logger.Info("verification attempt finished",
		zap.String("session_id", sess.ID.String()),
		zap.String("outcome", string(outcome)),
		zap.Int("attempts", attempts),
		zap.String("status", string(status)),
	)
	return sess, outcome, nil
}

// check performs one resolve-fetch-extract pass and classifies the result.
func (s *VerificationService) check(ctx context.Context, token, websiteURL string) model.VerificationOutcome {
	target, err := sitecheck.Resolve(websiteURL)
	if err != nil {
		if errors.Is(err, sitecheck.ErrDisallowedHost) {
			return model.OutcomeDisallowedHost
		}
		return model.OutcomeInvalidURL
	}

	body, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		var statusErr *sitecheck.StatusError
		switch {
		case errors.Is(err, sitecheck.ErrTimeout):
			return model.OutcomeTimeout
		case errors.Is(err, sitecheck.ErrNotHTML):
			return model.OutcomeNonHTML
		case errors.As(err, &statusErr):
			return model.OutcomeHTTPError
		default:
			return model.OutcomeUnreachable
		}
	}

	found := s.extractor.ExtractMetaContent(body, sitecheck.MetaTagName)
	switch {
	case found == "":
		return model.OutcomeTokenAbsent
	case found != token:
		return model.OutcomeTokenMismatch
	}
	return model.OutcomeSuccess
}

// DeleteExpired removes all unverified sessions past their expiry. Returns
// the number of rows removed. Safe to call from a background goroutine.
func (s *VerificationService) DeleteExpired(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned expired verification sessions", zap.Int64("count", n))
	}
	return n, nil
}
