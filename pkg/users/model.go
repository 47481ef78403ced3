package users

import (
	"strings"
	"time"

	"github.com/platinummonkey/integrationhub/pkg/rbac"
)

// Status is a user's lifecycle state
type Status string

const (
	StatusInvited     Status = "Invited"
	StatusActive      Status = "Active"
	StatusSuspended   Status = "Suspended"
	StatusDeactivated Status = "Deactivated"
)

// AllStatuses returns every status in lifecycle order
func AllStatuses() []Status {
	return []Status{StatusInvited, StatusActive, StatusSuspended, StatusDeactivated}
}

// ParseStatus matches a status case-insensitively
func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses() {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, true
		}
	}
	return "", false
}

var transitions = map[Status][]Status{
	StatusInvited:   {StatusActive, StatusDeactivated},
	StatusActive:    {StatusSuspended, StatusDeactivated},
	StatusSuspended: {StatusActive, StatusDeactivated},
}

// CanTransition reports whether a user may move from one status to another
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Invitation tracks the invite that created a user
type Invitation struct {
	InvitedBy   string    `json:"invited_by"`
	InvitedAt   time.Time `json:"invited_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	ResentCount int       `json:"resent_count"`
	Expired     bool      `json:"expired"`
}

// StatusChange is one entry of the invite/suspend history
type StatusChange struct {
	From   Status    `json:"from,omitempty"`
	To     Status    `json:"to"`
	By     string    `json:"by"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// ActivityEntry is one entry of the user's activity timeline
type ActivityEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
}

// User is an administered user record
type User struct {
	ID          string          `json:"id"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Email       string          `json:"email"`
	CompanyID   string          `json:"company_id"`
	CompanyName string          `json:"company_name"`
	Roles       []rbac.Role     `json:"roles"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	LastLoginAt *time.Time      `json:"last_login_at,omitempty"`
	Invitation  *Invitation     `json:"invitation,omitempty"`
	History     []StatusChange  `json:"history,omitempty"`
	Activity    []ActivityEntry `json:"activity,omitempty"`
}

// FullName joins the name parts
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasRole reports whether the user holds role
func (u User) HasRole(role rbac.Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsActiveAdmin reports whether the user counts toward the System Admin quorum
func (u User) IsActiveAdmin() bool {
	return u.Status == StatusActive && u.HasRole(rbac.TopDirectoryRole)
}

// Clone returns a deep copy
func (u User) Clone() User {
	c := u
	c.Roles = append([]rbac.Role(nil), u.Roles...)
	c.History = append([]StatusChange(nil), u.History...)
	c.Activity = append([]ActivityEntry(nil), u.Activity...)
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	if u.Invitation != nil {
		inv := *u.Invitation
		c.Invitation = &inv
	}
	return c
}

// SortField names a sortable list column
type SortField string

const (
	SortByName      SortField = "name"
	SortByEmail     SortField = "email"
	SortByStatus    SortField = "status"
	SortByCompany   SortField = "company"
	SortByCreatedAt SortField = "created_at"
	SortByLastLogin SortField = "last_login"
)

// Filter selects and orders users in a list
type Filter struct {
	CompanyID string
	Status    Status
	Role      rbac.Role
	Query     string
	SortBy    SortField
	SortDesc  bool
	Limit     int
	Offset    int
}

// InviteRequest is the payload for inviting a user
type InviteRequest struct {
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	CompanyID string      `json:"company_id"`
	Roles     []rbac.Role `json:"roles"`
}

// UpdateRequest is a partial update of profile fields
type UpdateRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}
