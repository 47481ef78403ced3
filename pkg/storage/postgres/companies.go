package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/integrationhub/pkg/companies"
)

// CompanyStore implements companies.Store on PostgreSQL
type CompanyStore struct {
	cm *ConnectionManager
}

// NewCompanyStore creates a company store
func NewCompanyStore(cm *ConnectionManager) *CompanyStore {
	return &CompanyStore{cm: cm}
}

var _ companies.Store = (*CompanyStore)(nil)

const companyColumns = `id, name, slug, status, teams, is_vendor, metadata, created_at, updated_at`

var companySortColumns = map[companies.SortField]string{
	companies.SortByName:      "LOWER(name)",
	companies.SortByStatus:    "status",
	companies.SortByCreatedAt: "created_at",
}

func scanCompany(row rowScanner) (companies.Company, error) {
	var (
		c        companies.Company
		metadata []byte
	)
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Status, pq.Array(&c.Teams), &c.IsVendor, &metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return companies.Company{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return companies.Company{}, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	if len(c.Metadata) == 0 {
		c.Metadata = nil
	}
	if c.Teams == nil {
		c.Teams = []string{}
	}
	return c, nil
}

func companyArgs(c companies.Company) ([]interface{}, error) {
	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return []interface{}{c.ID, c.Name, c.Slug, string(c.Status), pq.Array(nonNil(c.Teams)), c.IsVendor, encoded,
		c.CreatedAt, c.UpdatedAt}, nil
}

// List returns the companies matching filter
func (s *CompanyStore) List(ctx context.Context, filter companies.Filter) ([]companies.Company, error) {
	var w where
	if filter.ID != "" {
		w.add("id = ?", filter.ID)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	if filter.IsVendor != nil {
		w.add("is_vendor = ?", *filter.IsVendor)
	}
	if filter.Query != "" {
		w.add("(LOWER(name) LIKE ? OR slug LIKE ?)", likePattern(filter.Query), likePattern(filter.Query))
	}

	column, ok := companySortColumns[filter.SortBy]
	if !ok {
		column = companySortColumns[companies.SortByName]
	}
	query := "SELECT " + companyColumns + " FROM companies" + w.String() + orderBy(column, filter.SortDesc)
	query += w.page(filter.Limit, filter.Offset)

	rows, err := s.cm.Replica().QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list companies: %w", err), "company", "")
	}
	defer rows.Close()

	out := []companies.Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get returns a company by id
func (s *CompanyStore) Get(ctx context.Context, id string) (companies.Company, error) {
	c, err := scanCompany(s.cm.Primary().QueryRowContext(ctx, "SELECT "+companyColumns+" FROM companies WHERE id = $1", id))
	if err != nil {
		return companies.Company{}, classify(err, "company", id)
	}
	return c, nil
}

// GetBySlug returns a company by slug
func (s *CompanyStore) GetBySlug(ctx context.Context, slug string) (companies.Company, error) {
	c, err := scanCompany(s.cm.Primary().QueryRowContext(ctx, "SELECT "+companyColumns+" FROM companies WHERE slug = $1", slug))
	if err != nil {
		return companies.Company{}, classify(err, "company", slug)
	}
	return c, nil
}

// Create inserts a company
func (s *CompanyStore) Create(ctx context.Context, c companies.Company) error {
	args, err := companyArgs(c)
	if err != nil {
		return err
	}
	_, err = s.cm.Primary().ExecContext(ctx, `INSERT INTO companies (`+companyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, args...)
	return classify(err, "company", c.ID)
}

// Update replaces a company
func (s *CompanyStore) Update(ctx context.Context, c companies.Company) error {
	args, err := companyArgs(c)
	if err != nil {
		return err
	}
	res, err := s.cm.Primary().ExecContext(ctx, `UPDATE companies SET
		name = $2, slug = $3, status = $4, teams = $5, is_vendor = $6, metadata = $7, created_at = $8, updated_at = $9
		WHERE id = $1`, args...)
	if err != nil {
		return classify(err, "company", c.ID)
	}
	return expectOneRow(res, "company", c.ID)
}

// Delete removes a company
func (s *CompanyStore) Delete(ctx context.Context, id string) error {
	res, err := s.cm.Primary().ExecContext(ctx, "DELETE FROM companies WHERE id = $1", id)
	if err != nil {
		return classify(err, "company", id)
	}
	return expectOneRow(res, "company", id)
}
