// Package fixtures loads users, companies and reports from a YAML file into a store.
// It backs the seed command and the in-memory demo server.
package fixtures

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"workscope/auth"
	"workscope/db"
	"workscope/models"
)

// File is the fixture document.
type File struct {
	Companies []Company `yaml:"companies"`
	Users     []User    `yaml:"users"`
	Reports   []Report  `yaml:"reports"`
}

type Company struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Contact string `yaml:"contact"`
	Address string `yaml:"address"`
	Phone   string `yaml:"phone"`
	Email   string `yaml:"email"`
}

type User struct {
	ID         string `yaml:"id"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	Department string `yaml:"department"`
	Role       string `yaml:"role"`
	AdminLevel int    `yaml:"admin_level"`
	CreatedBy  string `yaml:"created_by"`
}

// Report keeps priority and status as written so fixtures can exercise the legacy
// spellings the normalizer accepts.
type Report struct {
	ID              string     `yaml:"id"`
	Worker          string     `yaml:"worker"`
	Company         string     `yaml:"company"`
	Department      string     `yaml:"department"`
	WorkType        string     `yaml:"work_type"`
	Description     string     `yaml:"description"`
	Location        string     `yaml:"location"`
	Priority        string     `yaml:"priority"`
	Status          string     `yaml:"status"`
	CreatedAt       time.Time  `yaml:"created_at"`
	CompletedAt     *time.Time `yaml:"completed_at"`
	ResolutionNotes string     `yaml:"resolution_notes"`
	Materials       string     `yaml:"materials"`
	Evidence        []string   `yaml:"evidence"`
}

// Counts reports how many documents Apply wrote.
type Counts struct {
	Companies int
	Users     int
	Passwords int
	Reports   int
}

// Load reads and parses a fixture file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return Parse(data)
}

// Parse decodes a fixture document and checks that ids are present and references resolve.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) check() error {
	users := make(map[string]bool, len(f.Users))
	for i, u := range f.Users {
		if u.ID == "" || u.Username == "" {
			return fmt.Errorf("user %d: id and username are required", i)
		}
		users[u.ID] = true
	}
	for i, co := range f.Companies {
		if co.ID == "" {
			return fmt.Errorf("company %d: id is required", i)
		}
	}
	for i, r := range f.Reports {
		if r.ID == "" {
			return fmt.Errorf("report %d: id is required", i)
		}
		if !users[r.Worker] {
			return fmt.Errorf("report %s: unknown worker %q", r.ID, r.Worker)
		}
	}
	return nil
}

// Apply writes every fixture into store. Passwords are hashed with hasher; a nil hasher
// skips them.
func (f *File) Apply(ctx context.Context, store db.Store, hasher *auth.Hasher) (Counts, error) {
	var n Counts

	for _, co := range f.Companies {
		c := models.Company{ID: co.ID, Name: co.Name, Contact: co.Contact, Address: co.Address, Phone: co.Phone, Email: co.Email}
		if err := store.Set(ctx, models.CollectionCompanies, c.ID, c.Fields()); err != nil {
			return n, fmt.Errorf("failed to create company %s: %w", c.ID, err)
		}
		n.Companies++
	}

	for _, u := range f.Users {
		fields := map[string]interface{}{
			models.FieldUsername: u.Username,
			models.FieldName:     u.Name,
			models.FieldRole:     u.Role,
		}
		if u.Department != "" {
			fields[models.FieldDepartment] = u.Department
		}
		if u.AdminLevel != 0 {
			fields[models.FieldAdminLevel] = u.AdminLevel
		}
		if u.CreatedBy != "" {
			fields[models.FieldCreatorID] = u.CreatedBy
		}
		if err := store.Set(ctx, models.CollectionUsers, u.ID, fields); err != nil {
			return n, fmt.Errorf("failed to create user %s: %w", u.ID, err)
		}
		n.Users++

		if u.Password == "" || hasher == nil {
			continue
		}
		hash, err := hasher.Hash(u.Password)
		if err != nil {
			return n, fmt.Errorf("user %s: %w", u.ID, err)
		}
		if err := db.StorePasswordHash(ctx, store, u.ID, hash); err != nil {
			return n, err
		}
		n.Passwords++
	}

	for _, r := range f.Reports {
		if err := store.Set(ctx, models.CollectionReports, r.ID, r.fields()); err != nil {
			return n, fmt.Errorf("failed to create report %s: %w", r.ID, err)
		}
		n.Reports++
	}

	return n, nil
}

func (r Report) fields() map[string]interface{} {
	fields := map[string]interface{}{
		models.FieldWorkerID:    r.Worker,
		models.FieldCompanyID:   r.Company,
		models.FieldWorkType:    r.WorkType,
		models.FieldDescription: r.Description,
		models.FieldLocation:    r.Location,
		models.FieldPriority:    r.Priority,
		models.FieldStatus:      r.Status,
	}
	if r.Department != "" {
		fields[models.FieldDepartment] = r.Department
	}
	if !r.CreatedAt.IsZero() {
		fields[models.FieldCreatedAt] = r.CreatedAt
	}
	if r.CompletedAt != nil {
		fields[models.FieldCompletedAt] = *r.CompletedAt
	}
	if r.ResolutionNotes != "" {
		fields[models.FieldResolutionNotes] = r.ResolutionNotes
	}
	if r.Materials != "" {
		fields[models.FieldMaterialsUsed] = r.Materials
	}
	if len(r.Evidence) > 0 {
		fields[models.FieldEvidence] = r.Evidence
	}
	return fields
}
