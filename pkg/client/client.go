// Package client provides the OTServHub Go SDK for listing game servers,
// managing accounts, and driving website-ownership verification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// ErrVerificationFailed is returned by VerifyWebsite when the hub reached the
// website but the verification check did not pass (token missing, token
// mismatch, fetch error, attempts exhausted). Inspect VerifyResult.Reason.
var ErrVerificationFailed = errors.New("website verification did not pass")

// User is the account record returned by auth endpoints.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"display_name"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// Server is a game-server listing as returned by the hub API.
type Server struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Name          string     `json:"name"`
	Slug          string     `json:"slug"`
	IPAddress     string     `json:"ip_address"`
	Port          int        `json:"port"`
	VersionID     *int64     `json:"version_id,omitempty"`
	CustomVersion string     `json:"custom_version,omitempty"`
	WebsiteURL    string     `json:"website_url"`
	Description   string     `json:"description"`
	MapType       string     `json:"map_type"`
	PvPType       string     `json:"pvp_type"`
	ExpRate       string     `json:"exp_rate"`
	Theme         string     `json:"theme,omitempty"`
	LaunchDate    time.Time  `json:"launch_date"`
	HypeScore     int        `json:"hype_score"`
	IsVerified    bool       `json:"is_verified"`
	IsOnline      bool       `json:"is_online"`
	OnlineCount   int        `json:"online_count"`
	LastPing      *time.Time `json:"last_ping,omitempty"`
	Systems       []string   `json:"systems,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// RegisterServerRequest is the payload for RegisterServer.
type RegisterServerRequest struct {
	Name          string   `json:"name"`
	IP            string   `json:"ip"`
	Port          int      `json:"port,omitempty"`
	Version       string   `json:"version"`
	CustomVersion string   `json:"custom_version,omitempty"`
	Website       string   `json:"website"`
	DownloadLink  string   `json:"download_link,omitempty"`
	Description   string   `json:"description"`
	MapType       string   `json:"map_type"`
	CustomMapType string   `json:"custom_map_type,omitempty"`
	PvPType       string   `json:"pvp_type"`
	Rate          string   `json:"rate"`
	Theme         string   `json:"theme,omitempty"`
	CustomTheme   string   `json:"custom_theme,omitempty"`
	LaunchDate    string   `json:"launch_date,omitempty"` // "2006-01-02"
	LaunchTime    string   `json:"launch_time,omitempty"` // "15:04"
	Timezone      string   `json:"timezone,omitempty"`
	DiscordLink   string   `json:"discord_link,omitempty"`
	WhatsappLink  string   `json:"whatsapp_link,omitempty"`
	HasMobile     bool     `json:"has_mobile,omitempty"`
	Systems       []string `json:"systems,omitempty"`
	SessionID     string   `json:"session_id,omitempty"`
}

// VerificationSession holds the state of one website-ownership session.
type VerificationSession struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	Outcome   string    `json:"last_outcome"`
	MetaTag   string    `json:"meta_tag"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyResult is the outcome of one VerifyWebsite call.
type VerifyResult struct {
	Success  bool   `json:"success"`
	Reason   string `json:"error,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}

// HypeCounts aggregates hype votes for one server.
type HypeCounts struct {
	Going   int `json:"going"`
	Waiting int `json:"waiting"`
	Maybe   int `json:"maybe"`
	Total   int `json:"total"`
}

// Client is the OTServHub SDK entry point.
type Client struct {
	hubBase    string
	httpClient *http.Client

	// token state — guarded by mu
	mu          sync.Mutex
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a pre-obtained session token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a new SDK Client connected to hubBase.
//
//	c, err := client.New("https://otservhub.com",
//	    client.WithBearerToken(token),
//	)
func New(hubBase string, opts ...Option) (*Client, error) {
	c := &Client{
		hubBase:    hubBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(hubBase string, opts ...Option) *Client {
	c, err := New(hubBase, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Token returns the session token currently attached to requests.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bearerToken
}

// ── Auth ─────────────────────────────────────────────────────────────────────

// Signup creates an account and stores the returned session token on the
// client for subsequent calls.
func (c *Client) Signup(ctx context.Context, email, password, displayName string) (*User, error) {
	body, err := c.postJSON(ctx, "/api/v1/auth/signup", map[string]string{
		"email":        email,
		"password":     password,
		"display_name": displayName,
	})
	if err != nil {
		return nil, err
	}
	return c.adoptSession(body)
}

// Login authenticates and stores the returned session token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	body, err := c.postJSON(ctx, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	return c.adoptSession(body)
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.getJSON(ctx, "/api/v1/auth/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) adoptSession(body []byte) (*User, error) {
	var resp struct {
		User  User   `json:"user"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	c.mu.Lock()
	c.bearerToken = resp.Token
	c.mu.Unlock()
	return &resp.User, nil
}

// ── Website verification ─────────────────────────────────────────────────────

// StartVerification opens a new website-ownership session and returns the
// token plus the exact meta tag to place in the site's <head>.
func (c *Client) StartVerification(ctx context.Context) (*VerificationSession, error) {
	body, err := c.postJSON(ctx, "/api/v1/verify/sessions", nil)
	if err != nil {
		return nil, err
	}
	var sess VerificationSession
	if err := json.Unmarshal(body, &sess); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}
	return &sess, nil
}

// GetVerification fetches the current state of a session by ID.
func (c *Client) GetVerification(ctx context.Context, id string) (*VerificationSession, error) {
	var sess VerificationSession
	if err := c.getJSON(ctx, "/api/v1/verify/sessions/"+id, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// VerifyWebsite asks the hub to fetch websiteURL and look for the session
// token in its markup. Returns (result, nil) on success, (result,
// ErrVerificationFailed) when the check ran but did not pass, or (nil, err)
// for request-level errors such as a malformed URL or unknown token.
func (c *Client) VerifyWebsite(ctx context.Context, websiteURL, token string) (*VerifyResult, error) {
	payload, _ := json.Marshal(map[string]string{"website": websiteURL, "token": token})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.hubBase+"/api/v1/verify-website", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	status, body, err := c.doStatusBody(req)
	if err != nil {
		return nil, err
	}

	var result VerifyResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}

	switch {
	case status == http.StatusOK && result.Success:
		return &result, nil
	case status == http.StatusOK:
		return &result, ErrVerificationFailed
	default:
		return nil, fmt.Errorf("verify request rejected (HTTP %d): %s", status, result.Reason)
	}
}

// ── Servers ──────────────────────────────────────────────────────────────────

// RegisterServer creates a new listing.
func (c *Client) RegisterServer(ctx context.Context, reg RegisterServerRequest) (*Server, error) {
	body, err := c.postJSON(ctx, "/api/v1/servers", reg)
	if err != nil {
		return nil, err
	}
	var srv Server
	if err := json.Unmarshal(body, &srv); err != nil {
		return nil, fmt.Errorf("decode server response: %w", err)
	}
	return &srv, nil
}

// GetServer fetches a single listing by UUID or slug.
func (c *Client) GetServer(ctx context.Context, idOrSlug string) (*Server, error) {
	var srv Server
	if err := c.getJSON(ctx, "/api/v1/servers/"+url.PathEscape(idOrSlug), &srv); err != nil {
		return nil, err
	}
	return &srv, nil
}

// ListServers returns public listings. search filters by name or description;
// pass "" to list everything. limit <= 0 means the server default.
func (c *Client) ListServers(ctx context.Context, search string, limit, offset int) ([]Server, error) {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/v1/servers"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var wrapper struct {
		Servers []Server `json:"servers"`
	}
	if err := c.getJSON(ctx, path, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Servers, nil
}

// MyServers returns the authenticated user's listings.
func (c *Client) MyServers(ctx context.Context) ([]Server, error) {
	var wrapper struct {
		Servers []Server `json:"servers"`
	}
	if err := c.getJSON(ctx, "/api/v1/users/me/servers", &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Servers, nil
}

// UpdateServer patches fields on an owned listing. fields uses the same JSON
// keys as RegisterServerRequest; only the keys present are changed.
func (c *Client) UpdateServer(ctx context.Context, id string, fields map[string]any) (*Server, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		c.hubBase+"/api/v1/servers/"+id, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var srv Server
	if err := json.Unmarshal(body, &srv); err != nil {
		return nil, fmt.Errorf("decode server response: %w", err)
	}
	return &srv, nil
}

// DeleteServer removes an owned listing.
func (c *Client) DeleteServer(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.hubBase+"/api/v1/servers/"+id, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	_, err = c.do(req)
	return err
}

// ── Hype ─────────────────────────────────────────────────────────────────────

// Hype casts or changes the authenticated user's vote on a server.
// hypeType is one of GOING, WAITING, MAYBE.
func (c *Client) Hype(ctx context.Context, serverID, hypeType string) (*HypeCounts, error) {
	body, err := c.postJSON(ctx, "/api/v1/servers/"+serverID+"/hype",
		map[string]string{"hype_type": hypeType})
	if err != nil {
		return nil, err
	}
	var counts HypeCounts
	if err := json.Unmarshal(body, &counts); err != nil {
		return nil, fmt.Errorf("decode hype response: %w", err)
	}
	return &counts, nil
}

// HypeCounts returns the vote tallies for a server.
func (c *Client) HypeCounts(ctx context.Context, serverID string) (*HypeCounts, error) {
	var wrapper struct {
		Counts HypeCounts `json:"counts"`
	}
	if err := c.getJSON(ctx, "/api/v1/servers/"+serverID+"/hype", &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Counts, nil
}

// ── HTTP plumbing ────────────────────────────────────────────────────────────

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.hubBase+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.hubBase+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// do executes an HTTP request, attaching the Bearer token if present.
func (c *Client) do(req *http.Request) ([]byte, error) {
	c.mu.Lock()
	token := c.bearerToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("not found: %s", req.URL.Path)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("unauthorized: %s", string(body))
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// doStatusBody is a lower-level HTTP call that returns (statusCode, body, error)
// without failing on 4xx responses. The caller interprets the status code.
func (c *Client) doStatusBody(req *http.Request) (int, []byte, error) {
	c.mu.Lock()
	token := c.bearerToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
