package store

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/verustcode/stagereport/internal/model"
)

// ProjectStore defines read and seed operations for Project and Stage models.
type ProjectStore interface {
	// Project operations
	Create(project *model.Project) error
	Upsert(project *model.Project) error
	GetByID(id uint) (*model.Project, error)
	GetByIDWithStages(id uint) (*model.Project, error)
	Exists(id uint) (bool, error)
	List() ([]model.Project, error)

	// Stage operations
	UpsertStage(stage *model.Stage) error
	ListStages(projectID uint) ([]model.Stage, error)
	StageIDs(projectID uint) ([]uint, error)
}

// projectStore implements ProjectStore using GORM.
type projectStore struct {
	db *gorm.DB
}

func newProjectStore(db *gorm.DB) ProjectStore {
	return &projectStore{db: db}
}

func (s *projectStore) Create(project *model.Project) error {
	return s.db.Create(project).Error
}

// Upsert writes the project row only; stages are upserted separately.
func (s *projectStore) Upsert(project *model.Project) error {
	return s.db.Omit("Stages").Clauses(clause.OnConflict{UpdateAll: true}).Create(project).Error
}

func (s *projectStore) GetByID(id uint) (*model.Project, error) {
	var project model.Project
	if err := s.db.First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *projectStore) GetByIDWithStages(id uint) (*model.Project, error) {
	var project model.Project
	err := s.db.Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("stages.id ASC")
	}).First(&project, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *projectStore) Exists(id uint) (bool, error) {
	var count int64
	err := s.db.Model(&model.Project{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (s *projectStore) List() ([]model.Project, error) {
	var projects []model.Project
	err := s.db.Order("id ASC").Find(&projects).Error
	return projects, err
}

func (s *projectStore) UpsertStage(stage *model.Stage) error {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(stage).Error
}

// ListStages returns the stages of a project ordered by ID ascending.
func (s *projectStore) ListStages(projectID uint) ([]model.Stage, error) {
	var stages []model.Stage
	err := s.db.Where("project_id = ?", projectID).Order("id ASC").Find(&stages).Error
	return stages, err
}

func (s *projectStore) StageIDs(projectID uint) ([]uint, error) {
	var ids []uint
	err := s.db.Model(&model.Stage{}).Where("project_id = ?", projectID).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}
