// Package models defines the data structures shared across the application:
// identities, hazard reports, notifications, and the request/response
// shapes consumed by the HTTP layer.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes citizen accounts from authority accounts.
type Role string

const (
	RoleCitizen   Role = "citizen"
	RoleAuthority Role = "authority"
)

// BadgeTier is derived from a citizen's point balance. It is never stored
// independently; recompute it whenever the balance changes.
type BadgeTier string

const (
	BadgeNone   BadgeTier = "none"
	BadgeBronze BadgeTier = "bronze"
	BadgeSilver BadgeTier = "silver"
	BadgeGold   BadgeTier = "gold"
)

// Severity of a hazard, assigned at creation from the detection result.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// VerificationState tracks whether an authority has confirmed the report.
// Verified and Rejected are terminal.
type VerificationState string

const (
	VerificationPending  VerificationState = "pending"
	VerificationVerified VerificationState = "verified"
	VerificationRejected VerificationState = "rejected"
)

// FixingState tracks repair progress. Resolved and Rejected are terminal.
type FixingState string

const (
	FixingPending    FixingState = "pending"
	FixingInProgress FixingState = "in_progress"
	FixingResolved   FixingState = "resolved"
	FixingRejected   FixingState = "rejected"
)

// VoteDirection for the toggle-based voting engine.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// Location is a WGS84 coordinate pair with an optional reverse-geocoded
// address. The address is enrichment only, never required for correctness.
type Location struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
	Address   string  `json:"address,omitempty" db:"address"`
}

// Identity is a registered account, either citizen or authority.
// PointBalance and BadgeTier are only meaningful for citizens;
// OfficeLocation only for authorities.
type Identity struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Role           Role      `json:"role" db:"role"`
	Name           string    `json:"name" db:"name"`
	Email          string    `json:"email" db:"email"`
	PointBalance   int       `json:"point_balance,omitempty" db:"point_balance"`
	BadgeTier      BadgeTier `json:"badge_tier,omitempty" db:"badge_tier"`
	OfficeLocation *Location `json:"office_location,omitempty" db:"office_location"`
}

// IsCitizen reports whether the identity is a citizen account.
func (i *Identity) IsCitizen() bool { return i.Role == RoleCitizen }

// IsAuthority reports whether the identity is an authority account.
func (i *Identity) IsAuthority() bool { return i.Role == RoleAuthority }

// Report is a geotagged hazard report submitted by a citizen.
type Report struct {
	ID                uuid.UUID         `json:"id"`
	ReporterID        uuid.UUID         `json:"reporter_id"`
	CreatedAt         time.Time         `json:"created_at"`
	Location          Location          `json:"location"`
	Severity          Severity          `json:"severity"`
	VerificationState VerificationState `json:"verification_state"`
	FixingState       FixingState       `json:"fixing_state"`
	Description       string            `json:"description,omitempty"`
	Detection         *DetectionResult  `json:"detection,omitempty"`

	// Vote sets are mutually exclusive per identity; the counters always
	// equal the cardinality of the corresponding set.
	UpvoterIDs    map[uuid.UUID]struct{} `json:"-"`
	DownvoterIDs  map[uuid.UUID]struct{} `json:"-"`
	UpvoteCount   int                    `json:"upvote_count"`
	DownvoteCount int                    `json:"downvote_count"`

	// LastFixingActor is the authority that most recently advanced the
	// fixing state. Compliments for a resolution are addressed to it.
	LastFixingActor uuid.UUID `json:"-"`
}

// DetectionResult is the opaque payload from the external image-detection
// service. It is stored as supplied, never validated beyond decoding.
type DetectionResult struct {
	Class             string      `json:"class"`
	Confidence        float64     `json:"confidence"`
	Severity          Severity    `json:"severity,omitempty"`
	BBox              BoundingBox `json:"bbox"`
	RelativeSize      float64     `json:"relative_size"`
	AnnotatedImageRef string      `json:"annotated_image_ref,omitempty"`
}

// BoundingBox in image pixel coordinates.
type BoundingBox struct {
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
	X2     float64 `json:"x2"`
	Y2     float64 `json:"y2"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NotificationType discriminates the notification union. Each type fixes
// which optional fields are required at construction time.
type NotificationType string

const (
	NotificationNewReport    NotificationType = "new_report"
	NotificationStatusUpdate NotificationType = "status_update"
	NotificationResolved     NotificationType = "resolved"
	NotificationCompliment   NotificationType = "compliment"
)

// RecipientKind tags how a notification is addressed. Broadcasts are
// always explicit; there is no "no recipient means everyone" fallback.
type RecipientKind string

const (
	RecipientCitizen          RecipientKind = "citizen"
	RecipientAuthority        RecipientKind = "authority"
	RecipientCitizenBroadcast RecipientKind = "citizen_broadcast"
)

// Notification is an addressed message produced by the fan-out engine.
type Notification struct {
	ID            uuid.UUID        `json:"id"`
	Type          NotificationType `json:"type"`
	RecipientKind RecipientKind    `json:"recipient_kind"`
	// RecipientID is the bound citizen/authority for direct notifications.
	// For citizen broadcasts it is unset and ExcludedID carries the
	// reporter to skip.
	RecipientID uuid.UUID `json:"recipient_id,omitempty"`
	ExcludedID  uuid.UUID `json:"excluded_id,omitempty"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
	Read        bool      `json:"read"`
	ReportID    uuid.UUID `json:"report_id,omitempty"`
	Location    *Location `json:"location,omitempty"`

	// ResolverID binds a Resolved notification to the authority that
	// resolved the report, so compliments still route after the report
	// itself is deleted.
	ResolverID uuid.UUID `json:"-"`

	// ComplimentedBy is only meaningful on Resolved notifications and
	// enforces at most one compliment per citizen per resolution event.
	ComplimentedBy map[uuid.UUID]struct{} `json:"-"`

	// Broadcast notifications are shared records: read and delete state
	// is tracked per identity so one citizen can never mutate what
	// another citizen sees.
	ReadBy     map[uuid.UUID]struct{} `json:"-"`
	DeletedFor map[uuid.UUID]struct{} `json:"-"`
}

// StoredAccount is the persisted form of an identity plus its credential
// hash. Used by the optional Postgres-backed directory persistence.
type StoredAccount struct {
	Identity     Identity `json:"identity"`
	PasswordHash string   `json:"-" db:"password_hash"`
}

// ReportSubmission is the request body for submitting a new report.
type ReportSubmission struct {
	Latitude    float64          `json:"latitude"`
	Longitude   float64          `json:"longitude"`
	Address     string           `json:"address,omitempty"`
	Severity    Severity         `json:"severity,omitempty"`
	Detection   *DetectionResult `json:"detection,omitempty"`
	Description string           `json:"description,omitempty"`
}

// AuthorityAction is the request body for verification and fixing
// transitions. Exactly one of VerificationOutcome or FixingTransition
// must be set.
type AuthorityAction struct {
	VerificationOutcome VerificationState `json:"verification_outcome,omitempty"`
	FixingTransition    FixingState       `json:"fixing_transition,omitempty"`
}

// VoteRequest is the request body for casting or toggling a vote.
type VoteRequest struct {
	Direction VoteDirection `json:"direction"`
}

// ReportFilter narrows report listings. Zero values mean "no filter".
type ReportFilter struct {
	Severity          Severity
	VerificationState VerificationState
	FixingState       FixingState
	Since             *time.Time
	Until             *time.Time
	// Geofence: when RadiusKm > 0, only reports within RadiusKm of
	// (CenterLat, CenterLng) are returned.
	CenterLat float64
	CenterLng float64
	RadiusKm  float64
}

// BalanceResponse is the citizen points/badge query result.
type BalanceResponse struct {
	IdentityID   uuid.UUID `json:"identity_id"`
	PointBalance int       `json:"point_balance"`
	BadgeTier    BadgeTier `json:"badge_tier"`
}

// HealthStatus represents the server health check response.
type HealthStatus struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database,omitempty"`
}
