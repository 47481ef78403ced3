package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/integrationhub/pkg/registrations"
)

// RegistrationStore implements registrations.Store on PostgreSQL
type RegistrationStore struct {
	cm *ConnectionManager
}

// NewRegistrationStore creates a registration store
func NewRegistrationStore(cm *ConnectionManager) *RegistrationStore {
	return &RegistrationStore{cm: cm}
}

var _ registrations.Store = (*RegistrationStore)(nil)

const registrationColumns = `id, company_name, submitted_by_email, submitter_name, message, status, submitted_at,
	decided_by, decided_at, reject_reason, company_id, invited_user_id`

func scanRegistration(row rowScanner) (registrations.Request, error) {
	var (
		r         registrations.Request
		decidedAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.CompanyName, &r.SubmittedByEmail, &r.SubmitterName, &r.Message, &r.Status, &r.SubmittedAt,
		&r.DecidedBy, &decidedAt, &r.RejectReason, &r.CompanyID, &r.InvitedUserID)
	if err != nil {
		return registrations.Request{}, err
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		r.DecidedAt = &t
	}
	return r, nil
}

// List returns requests matching filter, newest first
func (s *RegistrationStore) List(ctx context.Context, filter registrations.Filter) ([]registrations.Request, error) {
	var w where
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	if filter.Query != "" {
		w.add("(LOWER(company_name) LIKE ? OR LOWER(submitted_by_email) LIKE ?)", likePattern(filter.Query), likePattern(filter.Query))
	}
	query := "SELECT " + registrationColumns + " FROM registration_requests" + w.String() +
		" ORDER BY submitted_at DESC, id ASC" + w.page(filter.Limit, filter.Offset)

	rows, err := s.cm.Replica().QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list registration requests: %w", err), "registration request", "")
	}
	defer rows.Close()

	out := []registrations.Request{}
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns a request by id
func (s *RegistrationStore) Get(ctx context.Context, id string) (registrations.Request, error) {
	r, err := scanRegistration(s.cm.Primary().QueryRowContext(ctx,
		"SELECT "+registrationColumns+" FROM registration_requests WHERE id = $1", id))
	if err != nil {
		return registrations.Request{}, classify(err, "registration request", id)
	}
	return r, nil
}

// Create inserts a request
func (s *RegistrationStore) Create(ctx context.Context, r registrations.Request) error {
	_, err := s.cm.Primary().ExecContext(ctx, `INSERT INTO registration_requests (`+registrationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ID, r.CompanyName, r.SubmittedByEmail, r.SubmitterName, r.Message, string(r.Status), r.SubmittedAt,
		r.DecidedBy, nullTime(r.DecidedAt), r.RejectReason, r.CompanyID, r.InvitedUserID)
	return classify(err, "registration request", r.ID)
}

// Decide stores the decision. Only requests still in the new state are updated.
func (s *RegistrationStore) Decide(ctx context.Context, r registrations.Request) error {
	res, err := s.cm.Primary().ExecContext(ctx, `UPDATE registration_requests SET
		status = $2, decided_by = $3, decided_at = $4, reject_reason = $5, company_id = $6, invited_user_id = $7
		WHERE id = $1 AND status = $8`,
		r.ID, string(r.Status), r.DecidedBy, nullTime(r.DecidedAt), r.RejectReason, r.CompanyID, r.InvitedUserID,
		string(registrations.StatusNew))
	if err != nil {
		return classify(err, "registration request", r.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// distinguish a missing request from one decided concurrently
	if _, err := s.Get(ctx, r.ID); err != nil {
		return err
	}
	return registrations.ErrAlreadyDecided
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
