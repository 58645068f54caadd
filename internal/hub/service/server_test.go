package service_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/otservhub/hub/internal/hub/model"
	"github.com/otservhub/hub/internal/hub/repository"
	"github.com/otservhub/hub/internal/hub/service"
	"github.com/otservhub/hub/internal/users"
	"go.uber.org/zap"
)

// ── In-memory stubs ────────────────────────────────────────────────────────

type stubServerStore struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*model.Server
}

func newStubServers() *stubServerStore {
	return &stubServerStore{rows: make(map[uuid.UUID]*model.Server)}
}

func (s *stubServerStore) Create(_ context.Context, srv *model.Server) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.Slug == srv.Slug {
			return repository.ErrDuplicateSlug
		}
	}
	srv.ID = uuid.New()
	now := time.Now().UTC()
	srv.CreatedAt = now
	srv.UpdatedAt = now
	cp := *srv
	s.rows[srv.ID] = &cp
	return nil
}

func (s *stubServerStore) GetByID(_ context.Context, id uuid.UUID) (*model.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	srv, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrServerNotFound
	}
	cp := *srv
	return &cp, nil
}

func (s *stubServerStore) GetBySlug(_ context.Context, slug string) (*model.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, srv := range s.rows {
		if srv.Slug == slug {
			cp := *srv
			return &cp, nil
		}
	}
	return nil, repository.ErrServerNotFound
}

func (s *stubServerStore) List(_ context.Context, search string, limit, offset int) ([]*model.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Server
	for _, srv := range s.rows {
		if search == "" || strings.Contains(strings.ToLower(srv.Name), strings.ToLower(search)) {
			cp := *srv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubServerStore) ListByOwner(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]*model.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Server
	for _, srv := range s.rows {
		if srv.OwnerID == ownerID {
			cp := *srv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubServerStore) Update(_ context.Context, srv *model.Server) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[srv.ID]; !ok {
		return repository.ErrServerNotFound
	}
	cp := *srv
	s.rows[srv.ID] = &cp
	return nil
}

func (s *stubServerStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return repository.ErrServerNotFound
	}
	delete(s.rows, id)
	return nil
}

type stubVersions struct {
	catalog map[string]int64
}

func (s *stubVersions) GetByValue(_ context.Context, value string) (*model.GameVersion, error) {
	id, ok := s.catalog[value]
	if !ok {
		return nil, repository.ErrVersionNotFound
	}
	return &model.GameVersion{ID: id, Value: value}, nil
}

type stubSystems struct {
	mu      sync.Mutex
	failAll bool
	linked  map[uuid.UUID][]string
}

func newStubSystems() *stubSystems {
	return &stubSystems{linked: make(map[uuid.UUID][]string)}
}

func (s *stubSystems) FindOrCreate(_ context.Context, name string) (*model.System, error) {
	if s.failAll {
		return nil, errors.New("systems table unavailable")
	}
	return &model.System{ID: uuid.New(), Name: name}, nil
}

func (s *stubSystems) LinkServer(_ context.Context, serverID, _ uuid.UUID) error {
	if s.failAll {
		return errors.New("systems table unavailable")
	}
	return nil
}

func (s *stubSystems) NamesForServer(_ context.Context, serverID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linked[serverID], nil
}

type stubSessionReader struct {
	sessions map[uuid.UUID]*model.VerificationSession
}

func (s *stubSessionReader) GetSession(_ context.Context, id, userID uuid.UUID) (*model.VerificationSession, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, service.ErrSessionNotFound
	}
	if sess.OwnerUserID != userID {
		return nil, service.ErrNotSessionOwner
	}
	return sess, nil
}

// ── Helpers ────────────────────────────────────────────────────────────────

func newServerSvc(store *stubServerStore, systems *stubSystems, sessions *stubSessionReader) *service.ServerService {
	if systems == nil {
		systems = newStubSystems()
	}
	if sessions == nil {
		sessions = &stubSessionReader{sessions: map[uuid.UUID]*model.VerificationSession{}}
	}
	versions := &stubVersions{catalog: map[string]int64{"8.6": 1, "10.98": 2, "13.x": 3}}
	return service.NewServerService(store, versions, systems, sessions, zap.NewNop())
}

func validRequest() *model.RegisterRequest {
	return &model.RegisterRequest{
		Name:        "Dragon Realm",
		IP:          "play.dragonrealm.com",
		Port:        7171,
		Version:     "8.6",
		Website:     "https://dragonrealm.com",
		Description: "A long running high rate realm.",
		MapType:     "custom",
		PvPType:     model.PvPOpen,
		Rate:        "150x",
	}
}

var slugRe = regexp.MustCompile(`^dragon-realm-\d{4}$`)

// ── Tests ──────────────────────────────────────────────────────────────────

func TestRegister_createsListing(t *testing.T) {
	store := newStubServers()
	svc := newServerSvc(store, nil, nil)
	owner := uuid.New()

	srv, err := svc.Register(context.Background(), owner, validRequest())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if srv.ID == uuid.Nil {
		t.Error("expected non-nil ID")
	}
	if !slugRe.MatchString(srv.Slug) {
		t.Errorf("slug: got %q, want dragon-realm-NNNN", srv.Slug)
	}
	if srv.OwnerID != owner {
		t.Errorf("owner: got %v", srv.OwnerID)
	}
	if srv.IsVerified {
		t.Error("listing must start unverified without a session")
	}
	if srv.VersionID == nil || *srv.VersionID != 1 {
		t.Errorf("version FK: got %v, want 1", srv.VersionID)
	}
	if srv.CustomVersion != "" {
		t.Errorf("custom version must be empty for a catalog match, got %q", srv.CustomVersion)
	}
}

func TestRegister_unknownVersionStoredAsCustom(t *testing.T) {
	svc := newServerSvc(newStubServers(), nil, nil)

	req := validRequest()
	req.Version = "7.4-custom-fork"
	srv, err := svc.Register(context.Background(), uuid.New(), req)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if srv.VersionID != nil {
		t.Errorf("version FK: got %v, want nil", srv.VersionID)
	}
	if srv.CustomVersion != "7.4-custom-fork" {
		t.Errorf("custom version: got %q", srv.CustomVersion)
	}
}

func TestRegister_verifiedOnlyFromSuccessfulSession(t *testing.T) {
	owner := uuid.New()

	verified := &model.VerificationSession{ID: uuid.New(), OwnerUserID: owner, Status: model.SessionVerified}
	pending := &model.VerificationSession{ID: uuid.New(), OwnerUserID: owner, Status: model.SessionPending}
	foreign := &model.VerificationSession{ID: uuid.New(), OwnerUserID: uuid.New(), Status: model.SessionVerified}
	sessions := &stubSessionReader{sessions: map[uuid.UUID]*model.VerificationSession{
		verified.ID: verified,
		pending.ID:  pending,
		foreign.ID:  foreign,
	}}

	cases := []struct {
		name      string
		sessionID *uuid.UUID
		want      bool
	}{
		{"noSession", nil, false},
		{"verifiedSession", &verified.ID, true},
		{"pendingSession", &pending.ID, false},
		{"foreignSession", &foreign.ID, false},
		{"unknownSession", ptr(uuid.New()), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newServerSvc(newStubServers(), nil, sessions)
			req := validRequest()
			req.SessionID = tc.sessionID
			srv, err := svc.Register(context.Background(), owner, req)
			if err != nil {
				t.Fatalf("Register: %v", err)
			}
			if srv.IsVerified != tc.want {
				t.Errorf("IsVerified: got %v, want %v", srv.IsVerified, tc.want)
			}
		})
	}
}

func TestRegister_systemFailureDoesNotFailRegistration(t *testing.T) {
	systems := newStubSystems()
	systems.failAll = true
	svc := newServerSvc(newStubServers(), systems, nil)

	req := validRequest()
	req.Systems = []string{"War System", "Castle Sieges"}
	srv, err := svc.Register(context.Background(), uuid.New(), req)
	if err != nil {
		t.Fatalf("Register must succeed despite tag failures: %v", err)
	}
	if len(srv.Systems) != 0 {
		t.Errorf("linked systems: got %v, want none", srv.Systems)
	}
}

func TestRegister_validation(t *testing.T) {
	svc := newServerSvc(newStubServers(), nil, nil)
	cases := []struct {
		name   string
		mutate func(*model.RegisterRequest)
	}{
		{"emptyName", func(r *model.RegisterRequest) { r.Name = "  " }},
		{"emptyIP", func(r *model.RegisterRequest) { r.IP = "" }},
		{"badPort", func(r *model.RegisterRequest) { r.Port = 70000 }},
		{"badPvPType", func(r *model.RegisterRequest) { r.PvPType = "HARDCORE" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(req)
			_, err := svc.Register(context.Background(), uuid.New(), req)
			var vErr *model.ErrValidation
			if !errors.As(err, &vErr) {
				t.Errorf("got %v, want ErrValidation", err)
			}
		})
	}
}

func TestUpdate_clearsVerifiedOnAddressChange(t *testing.T) {
	store := newStubServers()
	svc := newServerSvc(store, nil, nil)
	owner := uuid.New()

	srv, err := svc.Register(context.Background(), owner, validRequest())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	store.mu.Lock()
	store.rows[srv.ID].IsVerified = true
	store.mu.Unlock()

	desc := "Refreshed description for the listing."
	updated, err := svc.Update(context.Background(), srv.ID, owner, &model.UpdateRequest{Description: &desc})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.IsVerified {
		t.Error("cosmetic update must keep the verified flag")
	}

	newIP := "203.0.113.10"
	updated, err = svc.Update(context.Background(), srv.ID, owner, &model.UpdateRequest{IP: &newIP})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.IsVerified {
		t.Error("IP change must clear the verified flag")
	}

	store.mu.Lock()
	store.rows[srv.ID].IsVerified = true
	store.mu.Unlock()
	newSite := "https://new.dragonrealm.com"
	updated, err = svc.Update(context.Background(), srv.ID, owner, &model.UpdateRequest{Website: &newSite})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.IsVerified {
		t.Error("website change must clear the verified flag")
	}
}

func TestUpdate_ownerOnly(t *testing.T) {
	svc := newServerSvc(newStubServers(), nil, nil)
	owner := uuid.New()

	srv, err := svc.Register(context.Background(), owner, validRequest())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	name := "Hijacked"
	if _, err := svc.Update(context.Background(), srv.ID, uuid.New(), &model.UpdateRequest{Name: &name}); err != service.ErrNotServerOwner {
		t.Errorf("Update by stranger: got %v, want ErrNotServerOwner", err)
	}
	if err := svc.Delete(context.Background(), srv.ID, uuid.New()); err != service.ErrNotServerOwner {
		t.Errorf("Delete by stranger: got %v, want ErrNotServerOwner", err)
	}
	if err := svc.Delete(context.Background(), srv.ID, owner); err != nil {
		t.Errorf("Delete by owner: %v", err)
	}
	if _, err := svc.Get(context.Background(), srv.ID); err != service.ErrServerNotFound {
		t.Errorf("Get after delete: got %v, want ErrServerNotFound", err)
	}
}

type stubMailer struct {
	mu   sync.Mutex
	sent []struct{ to, subject, body string }
}

func (m *stubMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, struct{ to, subject, body string }{to, subject, body})
	return nil
}

type stubOwners struct {
	user *users.User
}

func (o *stubOwners) GetByID(_ context.Context, id uuid.UUID) (*users.User, error) {
	if o.user == nil || o.user.ID != id {
		return nil, errors.New("no such user")
	}
	return o.user, nil
}

func TestRegister_verifiedListingEmailsOwner(t *testing.T) {
	owner := uuid.New()
	verified := &model.VerificationSession{ID: uuid.New(), OwnerUserID: owner, Status: model.SessionVerified}
	sessions := &stubSessionReader{sessions: map[uuid.UUID]*model.VerificationSession{verified.ID: verified}}

	mailer := &stubMailer{}
	svc := newServerSvc(newStubServers(), nil, sessions)
	svc.SetMailer(mailer, &stubOwners{user: &users.User{ID: owner, Email: "owner@dragonrealm.com", Username: "dragonmaster"}})

	req := validRequest()
	req.SessionID = &verified.ID
	srv, err := svc.Register(context.Background(), owner, req)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !srv.IsVerified {
		t.Fatal("expected a verified listing")
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("emails sent: got %d, want 1", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.to != "owner@dragonrealm.com" {
		t.Errorf("recipient: got %q", msg.to)
	}
	if !strings.Contains(msg.body, srv.Name) || !strings.Contains(msg.body, srv.Slug) {
		t.Errorf("body must mention the listing name and slug:\n%s", msg.body)
	}
}

func TestRegister_unverifiedListingSendsNoEmail(t *testing.T) {
	owner := uuid.New()
	mailer := &stubMailer{}
	svc := newServerSvc(newStubServers(), nil, nil)
	svc.SetMailer(mailer, &stubOwners{user: &users.User{ID: owner, Email: "owner@dragonrealm.com"}})

	if _, err := svc.Register(context.Background(), owner, validRequest()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("emails sent: got %d, want 0", len(mailer.sent))
	}
}

func ptr[T any](v T) *T { return &v }
