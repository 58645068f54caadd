package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/otservhub/hub/internal/email"
	"github.com/otservhub/hub/internal/hub/model"
	"github.com/otservhub/hub/internal/hub/repository"
	"github.com/otservhub/hub/internal/users"
	"go.uber.org/zap"
)

// Sentinel errors for the server service.
var (
	ErrServerNotFound = errors.New("server not found")
	ErrNotServerOwner = errors.New("server belongs to another user")
)

// serverStore is the storage interface required by ServerService.
// *repository.ServerRepository satisfies this interface.
type serverStore interface {
	Create(ctx context.Context, s *model.Server) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Server, error)
	GetBySlug(ctx context.Context, slug string) (*model.Server, error)
	List(ctx context.Context, search string, limit, offset int) ([]*model.Server, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*model.Server, error)
	Update(ctx context.Context, s *model.Server) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// versionStore resolves freeform client versions against the catalog.
type versionStore interface {
	GetByValue(ctx context.Context, value string) (*model.GameVersion, error)
}

// systemStore manages gameplay-feature tags. Tag linking is best effort: a
// failure is logged, never surfaced to the registering user.
type systemStore interface {
	FindOrCreate(ctx context.Context, name string) (*model.System, error)
	LinkServer(ctx context.Context, serverID, systemID uuid.UUID) error
	NamesForServer(ctx context.Context, serverID uuid.UUID) ([]string, error)
}

// verifiedSessionReader checks whether a registration's referenced
// verification session proved ownership.
type verifiedSessionReader interface {
	GetSession(ctx context.Context, id, userID uuid.UUID) (*model.VerificationSession, error)
}

// ownerDirectory resolves a listing owner's account for notifications.
// *users.UserService satisfies this interface.
type ownerDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// ServerService coordinates server listing registration and lifecycle.
type ServerService struct {
	store    serverStore
	versions versionStore
	systems  systemStore
	sessions verifiedSessionReader
	mailer   email.EmailSender
	owners   ownerDirectory
	logger   *zap.Logger
}

// NewServerService creates a ServerService.
func NewServerService(store serverStore, versions versionStore, systems systemStore, sessions verifiedSessionReader, logger *zap.Logger) *ServerService {
	return &ServerService{store: store, versions: versions, systems: systems, sessions: sessions, logger: logger}
}

// SetMailer enables the listing-confirmation email sent to owners of
// verified registrations. Without it no email is sent.
func (s *ServerService) SetMailer(mailer email.EmailSender, owners ownerDirectory) {
	s.mailer = mailer
	s.owners = owners
}

// Register creates a new server listing for ownerID. The listing starts
// unverified unless req.SessionID names a verification session owned by the
// same user whose outcome was success.
func (s *ServerService) Register(ctx context.Context, ownerID uuid.UUID, req *model.RegisterRequest) (*model.Server, error) {
	if err := validateRegister(req); err != nil {
		return nil, err
	}

	srv := &model.Server{
		OwnerID:          ownerID,
		Name:             strings.TrimSpace(req.Name),
		IPAddress:        strings.TrimSpace(req.IP),
		Port:             req.Port,
		WebsiteURL:       strings.TrimSpace(req.Website),
		DownloadLink:     req.DownloadLink,
		Description:      req.Description,
		MapType:          req.MapType,
		CustomMapType:    req.CustomMapType,
		PvPType:          req.PvPType,
		ExpRate:          req.Rate,
		Theme:            req.Theme,
		IsReleaseDateTBA: req.IsReleaseDateTBA,
		Timezone:         req.Timezone,
		DiscordLink:      req.DiscordLink,
		WhatsappLink:     req.WhatsappLink,
		HasMobile:        req.HasMobile,
	}
	if srv.Port == 0 {
		srv.Port = 7171
	}
	if req.Theme == "custom" && req.CustomTheme != "" {
		srv.Theme = req.CustomTheme
	}

	if !req.IsReleaseDateTBA && req.LaunchDate != "" {
		launch, err := parseLaunch(req.LaunchDate, req.LaunchTime)
		if err != nil {
			return nil, &model.ErrValidation{Msg: "invalid launch date"}
		}
		srv.LaunchDate = launch
	}

	// Freeform version: catalog FK when it matches a known value, otherwise
	// kept verbatim as a custom version.
	version := strings.TrimSpace(req.Version)
	if version == "" {
		version = strings.TrimSpace(req.CustomVersion)
	}
	if version != "" {
		gv, err := s.versions.GetByValue(ctx, version)
		switch {
		case err == nil:
			srv.VersionID = &gv.ID
		case errors.Is(err, repository.ErrVersionNotFound):
			srv.CustomVersion = version
		default:
			return nil, fmt.Errorf("resolve version: %w", err)
		}
	}

	if req.SessionID != nil {
		sess, err := s.sessions.GetSession(ctx, *req.SessionID, ownerID)
		if err == nil && sess.Verified() {
			srv.IsVerified = true
		} else if err != nil && !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrNotSessionOwner) {
			return nil, fmt.Errorf("check verification session: %w", err)
		}
	}

	srv.Slug = slugify(srv.Name) + fmt.Sprintf("-%d", rand.Intn(9000)+1000)
	if err := s.store.Create(ctx, srv); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			// One retry with a fresh suffix covers the rare collision.
			srv.Slug = slugify(srv.Name) + fmt.Sprintf("-%d", rand.Intn(9000)+1000)
			err = s.store.Create(ctx, srv)
		}
		if err != nil {
			return nil, fmt.Errorf("create server: %w", err)
		}
	}

	s.linkSystems(ctx, srv, req.Systems)

	if srv.IsVerified {
		s.notifyVerifiedListing(ctx, srv)
	}

	s.logger.Info("server registered",
		zap.String("server_id", srv.ID.String()),
		zap.String("slug", srv.Slug),
		zap.String("owner_id", ownerID.String()),
		zap.Bool("verified", srv.IsVerified),
	)
	return srv, nil
}

// notifyVerifiedListing emails the owner that their listing went live with
// the verified badge. Best effort: delivery failures are logged, never
// surfaced to the registering user.
func (s *ServerService) notifyVerifiedListing(ctx context.Context, srv *model.Server) {
	if s.mailer == nil || s.owners == nil {
		return
	}
	owner, err := s.owners.GetByID(ctx, srv.OwnerID)
	if err != nil {
		s.logger.Warn("listing notification: owner lookup failed",
			zap.String("server_id", srv.ID.String()),
			zap.Error(err),
		)
		return
	}

	subject := fmt.Sprintf("%s is live on OTServHub", srv.Name)
	body := fmt.Sprintf(
		"Hi %s,\n\nYour server %q is now listed on OTServHub with the verified badge.\n\nAddress: %s\nListing: https://otservhub.com/servers/%s\n\n— The OTServHub Team\n",
		owner.Username, srv.Name, srv.Address(), srv.Slug,
	)
	if err := s.mailer.Send(ctx, owner.Email, subject, body); err != nil {
		s.logger.Warn("listing notification: send failed",
			zap.String("server_id", srv.ID.String()),
			zap.Error(err),
		)
	}
}

// linkSystems attaches feature tags to a fresh listing. Failures here never
// fail the registration; they are logged and skipped.
func (s *ServerService) linkSystems(ctx context.Context, srv *model.Server, names []string) {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		sys, err := s.systems.FindOrCreate(ctx, name)
		if err != nil {
			s.logger.Warn("system tag lookup failed",
				zap.String("server_id", srv.ID.String()),
				zap.String("system", name),
				zap.Error(err),
			)
			continue
		}
		if err := s.systems.LinkServer(ctx, srv.ID, sys.ID); err != nil {
			s.logger.Warn("system tag link failed",
				zap.String("server_id", srv.ID.String()),
				zap.String("system", name),
				zap.Error(err),
			)
			continue
		}
		srv.Systems = append(srv.Systems, sys.Name)
	}
}

// Get returns one listing by ID with its system tags populated.
func (s *ServerService) Get(ctx context.Context, id uuid.UUID) (*model.Server, error) {
	srv, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrServerNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("get server: %w", err)
	}
	s.populateSystems(ctx, srv)
	return srv, nil
}

// GetBySlug returns one listing by slug with its system tags populated.
func (s *ServerService) GetBySlug(ctx context.Context, slug string) (*model.Server, error) {
	srv, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrServerNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("get server: %w", err)
	}
	s.populateSystems(ctx, srv)
	return srv, nil
}

// List returns listings verified-first then newest-first.
func (s *ServerService) List(ctx context.Context, search string, limit, offset int) ([]*model.Server, error) {
	servers, err := s.store.List(ctx, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	for _, srv := range servers {
		s.populateSystems(ctx, srv)
	}
	return servers, nil
}

// ListByOwner returns a user's own listings.
func (s *ServerService) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*model.Server, error) {
	servers, err := s.store.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	for _, srv := range servers {
		s.populateSystems(ctx, srv)
	}
	return servers, nil
}

// Update applies the non-nil fields of req to the listing. Changing the IP
// or website clears the verified flag, since the proof no longer covers the
// listing's address.
func (s *ServerService) Update(ctx context.Context, id, userID uuid.UUID, req *model.UpdateRequest) (*model.Server, error) {
	srv, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrServerNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("get server: %w", err)
	}
	if srv.OwnerID != userID {
		return nil, ErrNotServerOwner
	}

	if req.Name != nil {
		srv.Name = *req.Name
	}
	if req.IP != nil && *req.IP != srv.IPAddress {
		srv.IPAddress = *req.IP
		srv.IsVerified = false
	}
	if req.Port != nil {
		srv.Port = *req.Port
	}
	if req.Website != nil && *req.Website != srv.WebsiteURL {
		srv.WebsiteURL = *req.Website
		srv.IsVerified = false
	}
	if req.DownloadLink != nil {
		srv.DownloadLink = *req.DownloadLink
	}
	if req.Description != nil {
		srv.Description = *req.Description
	}
	if req.ExpRate != nil {
		srv.ExpRate = *req.ExpRate
	}
	if req.DiscordLink != nil {
		srv.DiscordLink = *req.DiscordLink
	}
	if req.WhatsappLink != nil {
		srv.WhatsappLink = *req.WhatsappLink
	}
	if req.PvPType != nil {
		srv.PvPType = *req.PvPType
	}

	if err := s.store.Update(ctx, srv); err != nil {
		return nil, fmt.Errorf("update server: %w", err)
	}
	s.populateSystems(ctx, srv)
	return srv, nil
}

// Delete removes a listing the caller owns.
func (s *ServerService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	srv, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrServerNotFound) {
			return ErrServerNotFound
		}
		return fmt.Errorf("get server: %w", err)
	}
	if srv.OwnerID != userID {
		return ErrNotServerOwner
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete server: %w", err)
	}
	s.logger.Info("server deleted",
		zap.String("server_id", id.String()),
		zap.String("owner_id", userID.String()),
	)
	return nil
}

func (s *ServerService) populateSystems(ctx context.Context, srv *model.Server) {
	names, err := s.systems.NamesForServer(ctx, srv.ID)
	if err != nil {
		s.logger.Warn("load system tags failed",
			zap.String("server_id", srv.ID.String()),
			zap.Error(err),
		)
		return
	}
	srv.Systems = names
}

func validateRegister(req *model.RegisterRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return &model.ErrValidation{Msg: "name is required"}
	}
	ip := strings.TrimSpace(req.IP)
	if ip == "" {
		return &model.ErrValidation{Msg: "ip is required"}
	}
	// A hostname is accepted too; only a literal that parses as an IP gets
	// the stricter check.
	if net.ParseIP(ip) == nil && strings.ContainsAny(ip, " /?#") {
		return &model.ErrValidation{Msg: "invalid server address"}
	}
	if req.Port < 0 || req.Port > 65535 {
		return &model.ErrValidation{Msg: "invalid port"}
	}
	if !req.PvPType.Valid() {
		return &model.ErrValidation{Msg: "invalid pvp type"}
	}
	return nil
}

func parseLaunch(date, clock string) (time.Time, error) {
	if clock == "" {
		clock = "00:00"
	}
	return time.Parse("2006-01-02 15:04", date+" "+clock)
}

// slugify lowers the name and collapses every non-alphanumeric run into a
// single hyphen.
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "server"
	}
	return slug
}
