package audit

import (
	"context"
	"time"
)

// Action identifies what a mutation did
type Action string

const (
	ActionUserInvite          Action = "user.invite"
	ActionUserActivate        Action = "user.activate"
	ActionUserSuspend         Action = "user.suspend"
	ActionUserUnsuspend       Action = "user.unsuspend"
	ActionUserDeactivate      Action = "user.deactivate"
	ActionUserUpdate          Action = "user.update"
	ActionUserRolesUpdate     Action = "user.roles.update"
	ActionInvitationResend    Action = "invitation.resend"
	ActionInvitationExpire    Action = "invitation.expire"
	ActionInvitationWithdraw  Action = "invitation.withdraw"
	ActionCompanyCreate       Action = "company.create"
	ActionCompanyUpdate       Action = "company.update"
	ActionCompanyStatus       Action = "company.status"
	ActionCompanyDelete       Action = "company.delete"
	ActionRegistrationSubmit  Action = "registration.submit"
	ActionRegistrationApprove Action = "registration.approve"
	ActionRegistrationReject  Action = "registration.reject"
)

// TargetType is the kind of entity an event is about
type TargetType string

const (
	TargetUser         TargetType = "user"
	TargetCompany      TargetType = "company"
	TargetRegistration TargetType = "registration"
	TargetInvitation   TargetType = "invitation"
)

// Event is an append-only record of a mutation
type Event struct {
	ID          string                 `json:"id"`
	ActorUserID string                 `json:"actor_user_id"`
	ActorRole   string                 `json:"actor_role,omitempty"`
	Action      Action                 `json:"action"`
	TargetType  TargetType             `json:"target_type"`
	TargetID    string                 `json:"target_id"`
	CompanyID   string                 `json:"company_id,omitempty"`
	RequestID   string                 `json:"request_id,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// SearchFilter represents search criteria for audit events
type SearchFilter struct {
	CompanyID   string
	ActorUserID string
	Actions     []Action
	TargetType  TargetType
	TargetID    string
	Since       *time.Time
	Until       *time.Time
	Limit       int
	Offset      int
}

// Matches reports whether the event satisfies the filter, ignoring paging
func (f SearchFilter) Matches(e *Event) bool {
	if f.CompanyID != "" && e.CompanyID != f.CompanyID {
		return false
	}
	if f.ActorUserID != "" && e.ActorUserID != f.ActorUserID {
		return false
	}
	if f.TargetType != "" && e.TargetType != f.TargetType {
		return false
	}
	if f.TargetID != "" && e.TargetID != f.TargetID {
		return false
	}
	if f.Since != nil && e.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && !e.CreatedAt.Before(*f.Until) {
		return false
	}
	if len(f.Actions) > 0 {
		for _, a := range f.Actions {
			if e.Action == a {
				return true
			}
		}
		return false
	}
	return true
}

// Store persists audit events. Events are never updated or deleted.
type Store interface {
	Append(ctx context.Context, event *Event) error
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)
}

// ExportFormat represents the format for exporting audit events
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatNDJSON ExportFormat = "ndjson"
	ExportFormatCSV    ExportFormat = "csv"
)
