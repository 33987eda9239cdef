package repository

import (
	"errors"

	"rota-engine/internal/models"

	"gorm.io/gorm"
)

type DutyRepository interface {
	Create(duty *models.Duty) error
	GetByID(id uint) (*models.Duty, error)
	GetAll() ([]models.Duty, error)
}

type GormDutyRepository struct {
	db *gorm.DB
}

func NewGormDutyRepository(db *gorm.DB) (DutyRepository, error) {
	if err := db.AutoMigrate(&models.Duty{}); err != nil {
		return nil, err
	}
	return &GormDutyRepository{db: db}, nil
}

func (r *GormDutyRepository) Create(duty *models.Duty) error {
	return r.db.Create(duty).Error
}

func (r *GormDutyRepository) GetByID(id uint) (*models.Duty, error) {
	var duty models.Duty
	err := r.db.First(&duty, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &duty, nil
}

func (r *GormDutyRepository) GetAll() ([]models.Duty, error) {
	var duties []models.Duty
	err := r.db.Order("name ASC").Find(&duties).Error
	return duties, err
}
