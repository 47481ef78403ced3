// Package seed loads the fixed starting data set into the entity stores.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/integrationhub/pkg/actor"
	"github.com/platinummonkey/integrationhub/pkg/apperr"
	"github.com/platinummonkey/integrationhub/pkg/companies"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/registrations"
	"github.com/platinummonkey/integrationhub/pkg/users"
)

//go:embed fixture.yaml
var defaultFixture []byte

// Fixture is the seed data set
type Fixture struct {
	Companies     []Company      `yaml:"companies"`
	Users         []User         `yaml:"users"`
	Registrations []Registration `yaml:"registrations"`
}

// Company is a seeded tenant
type Company struct {
	ID       string           `yaml:"id"`
	Name     string           `yaml:"name"`
	Slug     string           `yaml:"slug"`
	Status   companies.Status `yaml:"status"`
	Teams    []string         `yaml:"teams"`
	IsVendor bool             `yaml:"is_vendor"`
}

// User is a seeded directory user
type User struct {
	ID        string       `yaml:"id"`
	FirstName string       `yaml:"first_name"`
	LastName  string       `yaml:"last_name"`
	Email     string       `yaml:"email"`
	CompanyID string       `yaml:"company_id"`
	Roles     []rbac.Role  `yaml:"roles"`
	Status    users.Status `yaml:"status"`
}

// Registration is a seeded pending registration request
type Registration struct {
	ID            string `yaml:"id"`
	CompanyName   string `yaml:"company_name"`
	Email         string `yaml:"email"`
	SubmitterName string `yaml:"submitter_name"`
	Message       string `yaml:"message"`
}

// Default returns the embedded fixture
func Default() *Fixture {
	f, err := Parse(defaultFixture)
	if err != nil {
		panic(fmt.Sprintf("seed: embedded fixture is invalid: %v", err))
	}
	return f
}

// Load reads a fixture from a YAML file
func Load(filename string) (*Fixture, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed fixture: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a YAML fixture
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks references and requires at least one Active System Admin
func (f *Fixture) Validate() error {
	companyIDs := make(map[string]bool, len(f.Companies))
	for i := range f.Companies {
		c := &f.Companies[i]
		if c.ID == "" || c.Name == "" {
			return fmt.Errorf("seed company needs an id and a name")
		}
		if companyIDs[c.ID] {
			return fmt.Errorf("seed company %s is declared twice", c.ID)
		}
		companyIDs[c.ID] = true
		status, ok := companies.ParseStatus(string(c.Status))
		if !ok {
			return fmt.Errorf("seed company %s has unknown status %q", c.ID, c.Status)
		}
		c.Status = status
	}

	admins := 0
	userIDs := make(map[string]bool, len(f.Users))
	for i := range f.Users {
		u := &f.Users[i]
		if u.ID == "" || u.Email == "" {
			return fmt.Errorf("seed user needs an id and an email")
		}
		if userIDs[u.ID] {
			return fmt.Errorf("seed user %s is declared twice", u.ID)
		}
		userIDs[u.ID] = true
		if !companyIDs[u.CompanyID] {
			return fmt.Errorf("seed user %s references unknown company %q", u.ID, u.CompanyID)
		}
		status, ok := users.ParseStatus(string(u.Status))
		if !ok {
			return fmt.Errorf("seed user %s has unknown status %q", u.ID, u.Status)
		}
		u.Status = status
		for _, r := range u.Roles {
			if !rbac.DirectoryCatalog().Contains(r) {
				return fmt.Errorf("seed user %s has unknown role %q", u.ID, r)
			}
		}
		if u.record(time.Time{}, "").IsActiveAdmin() {
			admins++
		}
	}
	if admins == 0 {
		return fmt.Errorf("seed fixture must contain at least one active %s", rbac.TopDirectoryRole)
	}
	return nil
}

// Stores are the stores a fixture is written to
type Stores struct {
	Companies     companies.Store
	Users         users.Store
	Registrations registrations.Store
}

// Result counts what Apply created
type Result struct {
	Companies     int
	Users         int
	Registrations int
}

// Apply writes the fixture into the stores. Records that already exist are left
// untouched, so Apply can run on every start.
func Apply(ctx context.Context, f *Fixture, stores Stores, logger *observability.Logger) (Result, error) {
	var res Result
	now := time.Now().UTC()

	names := make(map[string]string, len(f.Companies))
	for _, c := range f.Companies {
		names[c.ID] = c.Name
		created, err := ensure(ctx, "company", c.ID,
			func(ctx context.Context) error { _, err := stores.Companies.Get(ctx, c.ID); return err },
			func(ctx context.Context) error { return stores.Companies.Create(ctx, c.record(now)) })
		if err != nil {
			return res, err
		}
		if created {
			res.Companies++
		}
	}

	for _, u := range f.Users {
		created, err := ensure(ctx, "user", u.ID,
			func(ctx context.Context) error { _, err := stores.Users.Get(ctx, u.ID); return err },
			func(ctx context.Context) error { return stores.Users.Create(ctx, u.record(now, names[u.CompanyID])) })
		if err != nil {
			return res, err
		}
		if created {
			res.Users++
		}
	}

	if stores.Registrations != nil {
		for _, r := range f.Registrations {
			created, err := ensure(ctx, "registration", r.ID,
				func(ctx context.Context) error { _, err := stores.Registrations.Get(ctx, r.ID); return err },
				func(ctx context.Context) error { return stores.Registrations.Create(ctx, r.record(now)) })
			if err != nil {
				return res, err
			}
			if created {
				res.Registrations++
			}
		}
	}

	logger.WithFields(map[string]interface{}{
		"companies":     res.Companies,
		"users":         res.Users,
		"registrations": res.Registrations,
	}).Info("seed fixture applied")
	return res, nil
}

func ensure(ctx context.Context, entity, id string, get, create func(context.Context) error) (bool, error) {
	err := get(ctx)
	if err == nil {
		return false, nil
	}
	if !apperr.IsKind(err, apperr.NotFound) {
		return false, fmt.Errorf("failed to look up seed %s %s: %w", entity, id, err)
	}
	if err := create(ctx); err != nil {
		return false, fmt.Errorf("failed to seed %s %s: %w", entity, id, err)
	}
	return true, nil
}

func (c Company) record(now time.Time) companies.Company {
	slug := c.Slug
	if slug == "" {
		slug = companies.Slugify(c.Name)
	}
	teams := c.Teams
	if teams == nil {
		teams = []string{}
	}
	return companies.Company{
		ID:        c.ID,
		Name:      c.Name,
		Slug:      slug,
		Status:    c.Status,
		Teams:     teams,
		IsVendor:  c.IsVendor,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (u User) record(now time.Time, companyName string) users.User {
	rec := users.User{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		CompanyID:   u.CompanyID,
		CompanyName: companyName,
		Roles:       append([]rbac.Role(nil), u.Roles...),
		Status:      u.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
		History:     []users.StatusChange{{To: u.Status, By: actor.SystemID, At: now, Reason: "seeded"}},
	}
	if u.Status == users.StatusInvited {
		rec.Invitation = &users.Invitation{
			InvitedBy: actor.SystemID,
			InvitedAt: now,
			ExpiresAt: now.Add(7 * 24 * time.Hour),
		}
	}
	return rec
}

func (r Registration) record(now time.Time) registrations.Request {
	return registrations.Request{
		ID:               r.ID,
		CompanyName:      r.CompanyName,
		SubmittedByEmail: r.Email,
		SubmitterName:    r.SubmitterName,
		Message:          r.Message,
		Status:           registrations.StatusNew,
		SubmittedAt:      now,
	}
}
