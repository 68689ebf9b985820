// Package models defines the data structures (structs) shared across the application.
// this package has no imports from other internal packages, making it the
// foundation of the dependency graph. other packages (db, publish, site, handlers) import from here.
package models

import "time"

/*
LeadMagnetStatus is a string under the hood, but giving it its own type
means the Go compiler will reject `leadMagnet.Status = someOtherType` and
every place that switches on status reads as a closed set of values.
raw strings from HTTP bodies still have to go through ParseLeadMagnetStatus.
*/
type LeadMagnetStatus string

const (
	// StatusActive means the page is served and accepts submissions
	StatusActive LeadMagnetStatus = "active"

	// StatusDraft means the page exists but has not been opened for submissions yet
	StatusDraft LeadMagnetStatus = "draft"

	// StatusArchived means the page is still viewable, but submissions are refused (410)
	StatusArchived LeadMagnetStatus = "archived"
)

// ParseLeadMagnetStatus converts a raw string (from a PATCH body) into a LeadMagnetStatus.
// the second return value is false for anything outside the three known states.
func ParseLeadMagnetStatus(raw string) (LeadMagnetStatus, bool) {
	switch LeadMagnetStatus(raw) {
	case StatusActive, StatusDraft, StatusArchived:
		return LeadMagnetStatus(raw), true
	}
	return "", false
}

// CanTransitionTo reports whether a lead magnet in the current status may move to next.
// allowed moves: active <-> archived, draft -> active.
// same-state "moves" are always allowed, they are no-ops for the caller.
// deletion is not a status, it removes the row entirely and is allowed from any state.
func (current LeadMagnetStatus) CanTransitionTo(next LeadMagnetStatus) bool {
	if current == next {
		return true
	}
	switch current {
	case StatusActive:
		return next == StatusArchived
	case StatusArchived:
		return next == StatusActive
	case StatusDraft:
		return next == StatusActive
	}
	return false
}

/*
LeadMagnet is the central data model for the application.
it maps 1:1 to the lead_magnets table and is the struct passed between
the database layer, the publisher, the static responder and the HTTP handlers.

the slug doubles as the asset key namespace: every file of the bundle lives at
"<slug>/<relative path>" in the asset store, and the public URL is /lm/<slug>.
*/
type LeadMagnet struct {
	// ID is a UUID v4, generated at publish time, used as the primary key
	ID string `json:"id" db:"id"`

	// Slug is the URL-safe identifier derived from the name. unique, never changes after creation
	// example: "My Guide!" -> "my-guide"
	Slug string `json:"slug" db:"slug"`

	// Name is the human-readable label the operator assigned on upload
	Name string `json:"name" db:"name"`

	// Description is optional free text shown in the admin listing.
	// pointer so NULL round-trips as nil instead of ""
	Description *string `json:"description,omitempty" db:"description"`

	// Status is the current lifecycle state of the lead magnet
	Status LeadMagnetStatus `json:"status" db:"status"`

	// SubmissionCount is not a column, it is filled by the listing query (LEFT JOIN + COUNT)
	// and left at zero for single-row reads.
	SubmissionCount int `json:"submission_count" db:"-"`

	// CreatedAt is set once at row insertion time
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is refreshed on every PATCH
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// URL returns the public path the lead magnet is served at.
func (leadMagnet *LeadMagnet) URL() string {
	return "/lm/" + leadMagnet.Slug
}

// IsAcceptingSubmissions is true only for active lead magnets.
// draft and archived pages still render, but the submission endpoint answers 410.
func (leadMagnet *LeadMagnet) IsAcceptingSubmissions() bool {
	return leadMagnet.Status == StatusActive
}

// Submission is one visitor form post recorded against a lead magnet.
type Submission struct {
	ID           string `json:"id" db:"id"`
	LeadMagnetID string `json:"lead_magnet_id" db:"lead_magnet_id"`

	// Email is extracted from the submitted fields (email / Email / any key containing "email")
	Email string `json:"email" db:"email"`

	// Name is extracted from name / Name / full_name / fullName, nil when none was sent
	Name *string `json:"name,omitempty" db:"name"`

	// Data is the full submitted field map, JSON-encoded, so nothing the form sent is lost
	Data *string `json:"data,omitempty" db:"data"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LeadMagnetPatch carries the optional fields of a PATCH request.
// nil means "leave unchanged".
type LeadMagnetPatch struct {
	Name        *string
	Description *string
	Status      *LeadMagnetStatus
}
