package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/integrationhub/pkg/apperr"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/users"
)

// UserStore implements users.Store on PostgreSQL
type UserStore struct {
	cm *ConnectionManager
}

// NewUserStore creates a user store
func NewUserStore(cm *ConnectionManager) *UserStore {
	return &UserStore{cm: cm}
}

var _ users.Store = (*UserStore)(nil)

const userColumns = `id, first_name, last_name, email, company_id, company_name, roles, status,
	created_at, updated_at, last_login_at, invitation, history, activity`

var userSortColumns = map[users.SortField]string{
	users.SortByName:      "LOWER(first_name || ' ' || last_name)",
	users.SortByEmail:     "LOWER(email)",
	users.SortByStatus:    "status",
	users.SortByCompany:   "LOWER(company_name)",
	users.SortByCreatedAt: "created_at",
	users.SortByLastLogin: "COALESCE(last_login_at, 'epoch'::timestamptz)",
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (users.User, error) {
	var (
		u          users.User
		roles      []string
		lastLogin  sql.NullTime
		invitation []byte
		history    []byte
		activity   []byte
	)
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.CompanyID, &u.CompanyName,
		pq.Array(&roles), &u.Status, &u.CreatedAt, &u.UpdatedAt, &lastLogin, &invitation, &history, &activity)
	if err != nil {
		return users.User{}, err
	}

	u.Roles = make([]rbac.Role, len(roles))
	for i, r := range roles {
		u.Roles[i] = rbac.Role(r)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	if len(invitation) > 0 && string(invitation) != "null" {
		u.Invitation = &users.Invitation{}
		if err := json.Unmarshal(invitation, u.Invitation); err != nil {
			return users.User{}, fmt.Errorf("failed to decode invitation: %w", err)
		}
	}
	if err := json.Unmarshal(history, &u.History); err != nil {
		return users.User{}, fmt.Errorf("failed to decode history: %w", err)
	}
	if err := json.Unmarshal(activity, &u.Activity); err != nil {
		return users.User{}, fmt.Errorf("failed to decode activity: %w", err)
	}
	return u, nil
}

// userArgs returns the column values in userColumns order
func userArgs(u users.User) ([]interface{}, error) {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	var invitation []byte
	if u.Invitation != nil {
		var err error
		if invitation, err = json.Marshal(u.Invitation); err != nil {
			return nil, fmt.Errorf("failed to encode invitation: %w", err)
		}
	}
	history, err := json.Marshal(nonNil(u.History))
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	activity, err := json.Marshal(nonNil(u.Activity))
	if err != nil {
		return nil, fmt.Errorf("failed to encode activity: %w", err)
	}
	return []interface{}{u.ID, u.FirstName, u.LastName, u.Email, u.CompanyID, u.CompanyName,
		pq.Array(roles), string(u.Status), u.CreatedAt, u.UpdatedAt, nullTime(u.LastLoginAt), invitation, history, activity}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// List returns the users matching filter
func (s *UserStore) List(ctx context.Context, filter users.Filter) ([]users.User, error) {
	var w where
	if filter.CompanyID != "" {
		w.add("company_id = ?", filter.CompanyID)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	if filter.Role != "" {
		w.add("? = ANY(roles)", string(filter.Role))
	}
	if filter.Query != "" {
		w.add(`(LOWER(first_name || ' ' || last_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company_name) LIKE ?)`,
			likePattern(filter.Query), likePattern(filter.Query), likePattern(filter.Query))
	}

	column, ok := userSortColumns[filter.SortBy]
	if !ok {
		column = userSortColumns[users.SortByName]
	}
	query := "SELECT " + userColumns + " FROM users" + w.String() + orderBy(column, filter.SortDesc)
	query += w.page(filter.Limit, filter.Offset)

	rows, err := s.cm.Replica().QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list users: %w", err), "user", "")
	}
	defer rows.Close()

	out := []users.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Get returns a user by id
func (s *UserStore) Get(ctx context.Context, id string) (users.User, error) {
	row := s.cm.Primary().QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	u, err := scanUser(row)
	if err != nil {
		return users.User{}, classify(err, "user", id)
	}
	return u, nil
}

// GetByEmail returns a user by email, case-insensitively
func (s *UserStore) GetByEmail(ctx context.Context, email string) (users.User, error) {
	row := s.cm.Primary().QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE LOWER(email) = LOWER($1)", email)
	u, err := scanUser(row)
	if err != nil {
		return users.User{}, classify(err, "user", email)
	}
	return u, nil
}

// Create inserts a user
func (s *UserStore) Create(ctx context.Context, u users.User) error {
	args, err := userArgs(u)
	if err != nil {
		return err
	}
	_, err = s.cm.Primary().ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`, args...)
	return classify(err, "user", u.ID)
}

const updateUserSQL = `UPDATE users SET
		first_name = $2, last_name = $3, email = $4, company_id = $5, company_name = $6, roles = $7,
		status = $8, created_at = $9, updated_at = $10, last_login_at = $11, invitation = $12,
		history = $13, activity = $14
		WHERE id = $1`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func updateUser(ctx context.Context, db execer, u users.User) error {
	args, err := userArgs(u)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, updateUserSQL, args...)
	if err != nil {
		return classify(err, "user", u.ID)
	}
	return expectOneRow(res, "user", u.ID)
}

// Update replaces a user
func (s *UserStore) Update(ctx context.Context, u users.User) error {
	return updateUser(ctx, s.cm.Primary(), u)
}

// UpdateRetainingAdmin replaces u inside a transaction that locks every Active System
// Admin row, in id order, before counting the admins other than u. Concurrent
// demotions on any instance therefore see each other's writes.
func (s *UserStore) UpdateRetainingAdmin(ctx context.Context, u users.User) error {
	tx, err := s.cm.Primary().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT id FROM users WHERE status = $1 AND $2 = ANY(roles) ORDER BY id FOR UPDATE",
		string(users.StatusActive), string(rbac.TopDirectoryRole))
	if err != nil {
		return fmt.Errorf("failed to lock active admins: %w", err)
	}
	others := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan active admin: %w", err)
		}
		if id != u.ID {
			others++
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to lock active admins: %w", err)
	}
	rows.Close()

	if others == 0 && !u.IsActiveAdmin() {
		return apperr.ErrLastAdmin
	}
	if err := updateUser(ctx, tx, u); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user update: %w", err)
	}
	return nil
}

// Delete removes a user
func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.cm.Primary().ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return classify(err, "user", id)
	}
	return expectOneRow(res, "user", id)
}

// CountActiveAdmins counts Active users holding SYSTEM_ADMIN
func (s *UserStore) CountActiveAdmins(ctx context.Context) (int, error) {
	var n int
	err := s.cm.Primary().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE status = $1 AND $2 = ANY(roles)",
		string(users.StatusActive), string(rbac.TopDirectoryRole),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active admins: %w", err)
	}
	return n, nil
}
