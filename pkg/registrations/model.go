package registrations

import (
	"strings"
	"time"
)

// Status is the review state of a request
type Status string

const (
	StatusNew      Status = "new"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus matches a status case-insensitively
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusNew:
		return StatusNew, true
	case StatusApproved:
		return StatusApproved, true
	case StatusRejected:
		return StatusRejected, true
	}
	return "", false
}

// Request is a company registration request
type Request struct {
	ID               string     `json:"id"`
	CompanyName      string     `json:"company_name"`
	SubmittedByEmail string     `json:"submitted_by_email"`
	SubmitterName    string     `json:"submitter_name,omitempty"`
	Message          string     `json:"message,omitempty"`
	Status           Status     `json:"status"`
	SubmittedAt      time.Time  `json:"submitted_at"`
	DecidedBy        string     `json:"decided_by,omitempty"`
	DecidedAt        *time.Time `json:"decided_at,omitempty"`
	RejectReason     string     `json:"reject_reason,omitempty"`
	CompanyID        string     `json:"company_id,omitempty"`
	InvitedUserID    string     `json:"invited_user_id,omitempty"`
}

// Decided reports whether the request reached a terminal state
func (r Request) Decided() bool {
	return r.Status != StatusNew
}

// Clone returns a copy that shares no pointers with r
func (r Request) Clone() Request {
	c := r
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		c.DecidedAt = &t
	}
	return c
}

// Filter selects requests in a list, newest first
type Filter struct {
	Status Status
	Query  string
	Limit  int
	Offset int
}

// SubmitRequest is the public registration payload
type SubmitRequest struct {
	CompanyName   string `json:"company_name"`
	Email         string `json:"email"`
	SubmitterName string `json:"submitter_name,omitempty"`
	Message       string `json:"message,omitempty"`
}
