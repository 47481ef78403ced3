package companies

import (
	"regexp"
	"strings"
	"time"
)

// Status is a company's lifecycle state
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
	StatusPending   Status = "pending"
)

// ParseStatus matches a status case-insensitively
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, true
	case StatusSuspended:
		return StatusSuspended, true
	case StatusDeleted:
		return StatusDeleted, true
	case StatusPending:
		return StatusPending, true
	}
	return "", false
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusActive, StatusSuspended},
	StatusActive:    {StatusSuspended},
	StatusSuspended: {StatusActive},
}

// CanTransition reports whether a company may move between statuses
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Company is a tenant
type Company struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Slug      string            `json:"slug"`
	Status    Status            `json:"status"`
	Teams     []string          `json:"teams"`
	IsVendor  bool              `json:"is_vendor"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Clone returns a deep copy
func (c Company) Clone() Company {
	out := c
	out.Teams = append([]string(nil), c.Teams...)
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// SortField names a sortable list column
type SortField string

const (
	SortByName      SortField = "name"
	SortByStatus    SortField = "status"
	SortByCreatedAt SortField = "created_at"
)

// Filter selects and orders companies
type Filter struct {
	ID       string
	Status   Status
	IsVendor *bool
	Query    string
	SortBy   SortField
	SortDesc bool
	Limit    int
	Offset   int
}

// CreateRequest is the payload for creating a company
type CreateRequest struct {
	Name     string            `json:"name"`
	Slug     string            `json:"slug,omitempty"`
	Status   Status            `json:"status,omitempty"`
	Teams    []string          `json:"teams,omitempty"`
	IsVendor bool              `json:"is_vendor"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// UpdateRequest is a partial update
type UpdateRequest struct {
	Name     *string           `json:"name,omitempty"`
	Teams    *[]string         `json:"teams,omitempty"`
	IsVendor *bool             `json:"is_vendor,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	slugReplacer = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify derives a URL-safe slug from a company name
func Slugify(name string) string {
	slug := slugReplacer.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "company"
	}
	return slug
}

// ValidSlug reports whether slug is lowercase words joined by single hyphens
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}
