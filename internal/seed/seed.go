// Package seed loads users, projects and stages from a YAML file into the database.
// Rows are upserted by ID, so loading the same file twice leaves the data unchanged.
package seed

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/verustcode/stagereport/internal/model"
	"github.com/verustcode/stagereport/internal/store"
	"github.com/verustcode/stagereport/pkg/errors"
	"github.com/verustcode/stagereport/pkg/logger"
)

// DateLayout is the layout of every date in a seed file
const DateLayout = "2006-01-02"

// File is the top-level structure of a seed file
type File struct {
	Users    []User    `yaml:"users" validate:"dive"`
	Projects []Project `yaml:"projects" validate:"dive"`
}

// User is a seeded user
type User struct {
	ID       uint   `yaml:"id" validate:"required"`
	Username string `yaml:"username" validate:"required,max=100"`
	FullName string `yaml:"full_name" validate:"required"`
	Role     string `yaml:"role" validate:"omitempty,oneof=Administrator Specialist"`
}

// Project is a seeded project with its stages
type Project struct {
	ID          uint    `yaml:"id" validate:"required"`
	Name        string  `yaml:"name" validate:"required"`
	Description string  `yaml:"description"`
	Budget      float64 `yaml:"budget" validate:"min=0"`
	StartDate   string  `yaml:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string  `yaml:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Status      string  `yaml:"status" validate:"omitempty,oneof=Planning Active OnHold Completed Canceled"`
	CreatedBy   uint    `yaml:"created_by"`
	Stages      []Stage `yaml:"stages" validate:"dive"`
}

// Stage is a seeded project stage
type Stage struct {
	ID         uint   `yaml:"id" validate:"required"`
	Name       string `yaml:"name" validate:"required"`
	Type       string `yaml:"type" validate:"required,oneof=Exploration Design Installation Testing"`
	Status     string `yaml:"status" validate:"omitempty,oneof=Pending InProgress Completed Delayed"`
	Progress   int    `yaml:"progress" validate:"min=0,max=100"`
	Deadline   string `yaml:"deadline" validate:"omitempty,datetime=2006-01-02"`
	Specialist *uint  `yaml:"specialist"`
}

// Counts reports how many rows a load wrote
type Counts struct {
	Users    int
	Projects int
	Stages   int
}

var validate = validator.New()

// Load reads and validates a seed file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigNotFound, fmt.Sprintf("read seed file %s", path), err)
	}
	return Parse(data)
}

// Parse decodes and validates seed data. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigParse, "parse seed file", err)
	}

	if err := validate.Struct(&f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeValidation, "invalid seed data", err)
	}

	for _, p := range f.Projects {
		if p.EndDate == "" {
			continue
		}
		// validator already checked the layout
		start, _ := time.Parse(DateLayout, p.StartDate)
		end, _ := time.Parse(DateLayout, p.EndDate)
		if end.Before(start) {
			return nil, errors.ErrValidation(
				fmt.Sprintf("project %d: end_date %s is before start_date %s", p.ID, p.EndDate, p.StartDate))
		}
	}

	return &f, nil
}

// Apply upserts the seed data in a single transaction.
// Users go first so project creators and stage specialists resolve.
func Apply(s store.Store, f *File) (Counts, error) {
	var counts Counts

	err := s.Transaction(func(tx store.Store) error {
		for _, u := range f.Users {
			if err := tx.User().Upsert(u.toModel()); err != nil {
				return fmt.Errorf("upsert user %d: %w", u.ID, err)
			}
			counts.Users++
		}

		for _, p := range f.Projects {
			if err := tx.Project().Upsert(p.toModel()); err != nil {
				return fmt.Errorf("upsert project %d: %w", p.ID, err)
			}
			counts.Projects++

			for _, st := range p.Stages {
				if err := tx.Project().UpsertStage(st.toModel(p.ID)); err != nil {
					return fmt.Errorf("upsert stage %d: %w", st.ID, err)
				}
				counts.Stages++
			}
		}
		return nil
	})
	if err != nil {
		return Counts{}, errors.Wrap(errors.ErrCodeDBQuery, "apply seed data", err)
	}

	logger.Info("Seed data applied",
		zap.Int("users", counts.Users),
		zap.Int("projects", counts.Projects),
		zap.Int("stages", counts.Stages),
	)
	return counts, nil
}

func (u User) toModel() *model.User {
	role := model.UserRole(u.Role)
	if role == "" {
		role = model.UserRoleSpecialist
	}
	return &model.User{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Role:     role,
	}
}

func (p Project) toModel() *model.Project {
	status := model.ProjectStatus(p.Status)
	if status == "" {
		status = model.ProjectStatusPlanning
	}
	start, _ := time.Parse(DateLayout, p.StartDate)
	return &model.Project{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Budget:          p.Budget,
		StartDate:       start,
		EndDate:         parseOptionalDate(p.EndDate),
		Status:          status,
		CreatedByUserID: p.CreatedBy,
	}
}

func (st Stage) toModel(projectID uint) *model.Stage {
	status := model.StageStatus(st.Status)
	if status == "" {
		status = model.StageStatusPending
	}
	return &model.Stage{
		ID:               st.ID,
		ProjectID:        projectID,
		Name:             st.Name,
		StageType:        model.StageType(st.Type),
		Status:           status,
		ProgressPercent:  st.Progress,
		Deadline:         parseOptionalDate(st.Deadline),
		SpecialistUserID: st.Specialist,
	}
}

func parseOptionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
