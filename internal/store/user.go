package store

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/verustcode/stagereport/internal/model"
)

// UserStore defines operations for User model.
type UserStore interface {
	Create(user *model.User) error
	// Upsert inserts the user or overwrites the row with the same ID
	Upsert(user *model.User) error
	GetByID(id uint) (*model.User, error)
	GetByUsername(username string) (*model.User, error)
	Exists(id uint) (bool, error)
	List() ([]model.User, error)
}

// userStore implements UserStore using GORM.
type userStore struct {
	db *gorm.DB
}

func newUserStore(db *gorm.DB) UserStore {
	return &userStore{db: db}
}

func (s *userStore) Create(user *model.User) error {
	return s.db.Create(user).Error
}

func (s *userStore) Upsert(user *model.User) error {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(user).Error
}

func (s *userStore) GetByID(id uint) (*model.User, error) {
	var user model.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userStore) GetByUsername(username string) (*model.User, error) {
	var user model.User
	if err := s.db.First(&user, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userStore) Exists(id uint) (bool, error) {
	var count int64
	err := s.db.Model(&model.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (s *userStore) List() ([]model.User, error) {
	var users []model.User
	err := s.db.Order("id ASC").Find(&users).Error
	return users, err
}
