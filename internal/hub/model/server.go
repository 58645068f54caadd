package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PvPType enumerates the combat rule sets a listed server can declare.
type PvPType string

const (
	PvPOpen     PvPType = "PVP"
	PvPNone     PvPType = "NO_PVP"
	PvPEnforced PvPType = "PVP_ENFORCED"
	PvPRetro    PvPType = "RETRO_PVP"
)

// Valid reports whether t is one of the known rule sets.
func (t PvPType) Valid() bool {
	switch t {
	case PvPOpen, PvPNone, PvPEnforced, PvPRetro:
		return true
	}
	return false
}

// Server is a game-server listing in the directory.
type Server struct {
	ID               uuid.UUID  `json:"id"                 db:"id"`
	OwnerID          uuid.UUID  `json:"owner_id"           db:"owner_id"`
	Name             string     `json:"name"               db:"name"`
	Slug             string     `json:"slug"               db:"slug"`
	IPAddress        string     `json:"ip_address"         db:"ip_address"`
	Port             int        `json:"port"               db:"port"`
	VersionID        *int64     `json:"version_id,omitempty" db:"version_id"`
	CustomVersion    string     `json:"custom_version,omitempty" db:"custom_version"`
	WebsiteURL       string     `json:"website_url"        db:"website_url"`
	DownloadLink     string     `json:"download_link,omitempty" db:"download_link"`
	Description      string     `json:"description"        db:"description"`
	MapType          string     `json:"map_type"           db:"map_type"`
	CustomMapType    string     `json:"custom_map_type,omitempty" db:"custom_map_type"`
	PvPType          PvPType    `json:"pvp_type"           db:"pvp_type"`
	ExpRate          string     `json:"exp_rate"           db:"exp_rate"`
	Theme            string     `json:"theme,omitempty"    db:"theme"`
	LaunchDate       time.Time  `json:"launch_date"        db:"launch_date"`
	IsReleaseDateTBA bool       `json:"is_release_date_tba" db:"is_release_date_tba"`
	Timezone         string     `json:"timezone"           db:"timezone"`
	DiscordLink      string     `json:"discord_invite_link,omitempty" db:"discord_invite_link"`
	WhatsappLink     string     `json:"whatsapp_group_link,omitempty" db:"whatsapp_group_link"`
	HasMobile        bool       `json:"has_mobile"         db:"has_mobile"`
	HypeScore        int        `json:"hype_score"         db:"hype_score"`
	IsVerified       bool       `json:"is_verified"        db:"is_verified"`
	IsOnline         bool       `json:"is_online"          db:"is_online"`
	OnlineCount      int        `json:"online_count"       db:"online_count"`
	LastPing         *time.Time `json:"last_ping,omitempty" db:"last_ping"`
	CreatedAt        time.Time  `json:"created_at"         db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"         db:"updated_at"`

	// Systems are the tag names linked to this server; populated at read
	// time from the join table, never stored on the servers row.
	Systems []string `json:"systems,omitempty" db:"-"`
}

// Address returns the ip:port the game client connects to.
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.IPAddress, s.Port)
}

// RegisterRequest is the payload for creating a new server listing.
type RegisterRequest struct {
	Name             string   `json:"name"     binding:"required,min=3"`
	IP               string   `json:"ip"       binding:"required"`
	Port             int      `json:"port"`
	Version          string   `json:"version"`
	CustomVersion    string   `json:"custom_version"`
	Website          string   `json:"website"  binding:"required"`
	DownloadLink     string   `json:"download_link"`
	Description      string   `json:"description" binding:"required,min=10"`
	MapType          string   `json:"map_type" binding:"required"`
	CustomMapType    string   `json:"custom_map_type"`
	PvPType          PvPType  `json:"pvp_type" binding:"required,oneof=PVP NO_PVP PVP_ENFORCED RETRO_PVP"`
	Rate             string   `json:"rate"     binding:"required"`
	Theme            string   `json:"theme"`
	CustomTheme      string   `json:"custom_theme"`
	LaunchDate       string   `json:"launch_date"` // "2006-01-02"
	LaunchTime       string   `json:"launch_time"` // "15:04"
	IsReleaseDateTBA bool     `json:"is_release_date_tba"`
	Timezone         string   `json:"timezone"`
	Systems          []string `json:"systems"`
	DiscordLink      string   `json:"discord_link"`
	WhatsappLink     string   `json:"whatsapp_link"`
	HasMobile        bool     `json:"has_mobile"`

	// SessionID references the caller's verification session; the listing is
	// created verified only when that session's outcome is success.
	SessionID *uuid.UUID `json:"session_id,omitempty"`
}

// UpdateRequest is the payload for updating an existing listing. Nil pointers
// leave the field unchanged. Changing IP or Website clears the verified flag.
type UpdateRequest struct {
	Name         *string  `json:"name,omitempty"`
	IP           *string  `json:"ip,omitempty"`
	Port         *int     `json:"port,omitempty"`
	Website      *string  `json:"website,omitempty"`
	DownloadLink *string  `json:"download_link,omitempty"`
	Description  *string  `json:"description,omitempty"`
	ExpRate      *string  `json:"rate,omitempty"`
	DiscordLink  *string  `json:"discord_link,omitempty"`
	WhatsappLink *string  `json:"whatsapp_link,omitempty"`
	PvPType      *PvPType `json:"pvp_type,omitempty"`
}

// GameVersion is a catalog entry for a known client version.
type GameVersion struct {
	ID           int64  `json:"id"            db:"id"`
	Value        string `json:"value"         db:"value"`
	Label        string `json:"label"         db:"label"`
	DisplayOrder int    `json:"display_order" db:"display_order"`
}

// System is a gameplay-feature tag (stock or user-submitted).
type System struct {
	ID         uuid.UUID `json:"id"          db:"id"`
	Name       string    `json:"name"        db:"name"`
	IsCustom   bool      `json:"is_custom"   db:"is_custom"`
	IsApproved bool      `json:"is_approved" db:"is_approved"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
}

// ErrValidation is a structural validation failure surfaced as HTTP 400.
type ErrValidation struct {
	Msg string
}

func (e *ErrValidation) Error() string { return e.Msg }
