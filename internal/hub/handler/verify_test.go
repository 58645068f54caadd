package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/otservhub/hub/internal/auth"
	"github.com/otservhub/hub/internal/hub/handler"
	"github.com/otservhub/hub/internal/hub/model"
	"github.com/otservhub/hub/internal/hub/service"
	"go.uber.org/zap"
)

// ── Stub VerificationService ──────────────────────────────────────────────

type stubVerifySvc struct {
	session    *model.VerificationSession
	outcome    model.VerificationOutcome
	verifyErr  error
	startErr   error
	getErr     error
	lastToken  string
	lastSite   string
}

func (s *stubVerifySvc) StartSession(_ context.Context, userID uuid.UUID) (*model.VerificationSession, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	return &model.VerificationSession{
		ID:          uuid.New(),
		OwnerUserID: userID,
		Token:       "otservhub-verify-a1b2c3d4",
		Status:      model.SessionPending,
		MetaTag:     `<meta name="otservhub-verification" content="otservhub-verify-a1b2c3d4">`,
		ExpiresAt:   time.Now().Add(30 * time.Minute),
	}, nil
}

func (s *stubVerifySvc) GetSession(_ context.Context, id, _ uuid.UUID) (*model.VerificationSession, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.session != nil {
		return s.session, nil
	}
	return &model.VerificationSession{ID: id, Status: model.SessionPending}, nil
}

func (s *stubVerifySvc) VerifyByToken(_ context.Context, token, websiteURL string) (*model.VerificationSession, model.VerificationOutcome, error) {
	s.lastToken = token
	s.lastSite = websiteURL
	if s.verifyErr != nil {
		return nil, "", s.verifyErr
	}
	sess := s.session
	if sess == nil {
		sess = &model.VerificationSession{ID: uuid.New(), Attempts: 1}
	}
	return sess, s.outcome, nil
}

// ── Test setup ────────────────────────────────────────────────────────────

func setupVerifyRouter(t *testing.T, svc *stubVerifySvc) (*gin.Engine, *auth.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := auth.NewTokenIssuer([]byte("test-secret"), "http://test", time.Hour)
	h := handler.NewVerifyHandler(svc, tokens, zap.NewNop())

	r := gin.New()
	v1 := r.Group("/api/v1")
	h.Register(v1)
	return r, tokens
}

func postJSON(router *gin.Engine, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ── POST /verify-website ──────────────────────────────────────────────────

func TestVerifyWebsite_200_success(t *testing.T) {
	svc := &stubVerifySvc{outcome: model.OutcomeSuccess}
	router, _ := setupVerifyRouter(t, svc)

	w := postJSON(router, "/api/v1/verify-website",
		`{"website":"https://dragonrealm.net","token":"otservhub-verify-a1b2c3d4"}`, "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["success"] != true {
		t.Errorf("expected success=true, got %v", resp)
	}
	if svc.lastSite != "https://dragonrealm.net" {
		t.Errorf("website not forwarded to service: %q", svc.lastSite)
	}
}

func TestVerifyWebsite_200_checkFailedWithAttempts(t *testing.T) {
	svc := &stubVerifySvc{
		outcome: model.OutcomeTokenAbsent,
		session: &model.VerificationSession{ID: uuid.New(), Attempts: 2},
	}
	router, _ := setupVerifyRouter(t, svc)

	w := postJSON(router, "/api/v1/verify-website",
		`{"website":"https://dragonrealm.net","token":"otservhub-verify-a1b2c3d4"}`, "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["success"] != false {
		t.Errorf("expected success=false, got %v", resp)
	}
	if resp["attempts"] != float64(2) {
		t.Errorf("expected attempts=2, got %v", resp["attempts"])
	}
	if resp["error"] == nil || resp["error"] == "" {
		t.Error("expected a reason in the error field")
	}
}

func TestVerifyWebsite_400_missingFields(t *testing.T) {
	router, _ := setupVerifyRouter(t, &stubVerifySvc{})

	for _, body := range []string{
		`{}`,
		`{"website":"https://x.com"}`,
		`{"token":"otservhub-verify-a1b2c3d4"}`,
		`not json`,
	} {
		w := postJSON(router, "/api/v1/verify-website", body, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestVerifyWebsite_400_unknownToken(t *testing.T) {
	svc := &stubVerifySvc{verifyErr: service.ErrSessionNotFound}
	router, _ := setupVerifyRouter(t, svc)

	w := postJSON(router, "/api/v1/verify-website",
		`{"website":"https://dragonrealm.net","token":"otservhub-verify-zzzzzzzz"}`, "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if got, _ := resp["error"].(string); !strings.Contains(got, "unknown verification token") {
		t.Errorf("unexpected error message: %v", resp["error"])
	}
}

func TestVerifyWebsite_400_expiredSession(t *testing.T) {
	svc := &stubVerifySvc{verifyErr: service.ErrSessionExpired}
	router, _ := setupVerifyRouter(t, svc)

	w := postJSON(router, "/api/v1/verify-website",
		`{"website":"https://dragonrealm.net","token":"otservhub-verify-a1b2c3d4"}`, "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestVerifyWebsite_400_inputOutcomes(t *testing.T) {
	for _, outcome := range []model.VerificationOutcome{
		model.OutcomeInvalidURL,
		model.OutcomeDisallowedHost,
	} {
		svc := &stubVerifySvc{outcome: outcome}
		router, _ := setupVerifyRouter(t, svc)

		w := postJSON(router, "/api/v1/verify-website",
			`{"website":"ftp://x","token":"otservhub-verify-a1b2c3d4"}`, "")

		if w.Code != http.StatusBadRequest {
			t.Errorf("outcome %s: expected 400, got %d", outcome, w.Code)
		}
	}
}

func TestVerifyWebsite_500_noDetailLeaked(t *testing.T) {
	svc := &stubVerifySvc{verifyErr: errors.New("pq: connection refused to 10.0.3.7")}
	router, _ := setupVerifyRouter(t, svc)

	w := postJSON(router, "/api/v1/verify-website",
		`{"website":"https://dragonrealm.net","token":"otservhub-verify-a1b2c3d4"}`, "")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "10.0.3.7") {
		t.Error("internal error detail leaked to the response")
	}
}

// ── /verify/sessions ──────────────────────────────────────────────────────

func TestStartSession_401_withoutAuth(t *testing.T) {
	router, _ := setupVerifyRouter(t, &stubVerifySvc{})

	w := postJSON(router, "/api/v1/verify/sessions", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestStartSession_201(t *testing.T) {
	router, tokens := setupVerifyRouter(t, &stubVerifySvc{})

	tok, err := tokens.Issue(uuid.NewString(), "alice@example.com", "alice")
	if err != nil {
		t.Fatal(err)
	}

	w := postJSON(router, "/api/v1/verify/sessions", "", tok)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	token, _ := resp["token"].(string)
	if !strings.HasPrefix(token, "otservhub-verify-") {
		t.Errorf("unexpected token: %q", token)
	}
	metaTag, _ := resp["meta_tag"].(string)
	if !strings.Contains(metaTag, token) {
		t.Errorf("meta tag does not embed the token: %q", metaTag)
	}
	if resp["instructions"] == nil {
		t.Error("expected instructions in response")
	}
}

func TestGetSession_404_notOwner(t *testing.T) {
	svc := &stubVerifySvc{getErr: service.ErrNotSessionOwner}
	router, tokens := setupVerifyRouter(t, svc)

	tok, _ := tokens.Issue(uuid.NewString(), "bob@example.com", "bob")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/verify/sessions/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}
