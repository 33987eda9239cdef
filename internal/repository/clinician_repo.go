package repository

import (
	"errors"

	"rota-engine/internal/models"

	"gorm.io/gorm"
)

type ClinicianRepository interface {
	Create(clinician *models.Clinician) error
	GetByID(id uint) (*models.Clinician, error)
	GetAll() ([]models.Clinician, error)
	GetAllActive() ([]models.Clinician, error)
	GetActiveByRole(role models.Role) ([]models.Clinician, error)
}

type GormClinicianRepository struct {
	db *gorm.DB
}

func NewGormClinicianRepository(db *gorm.DB) (ClinicianRepository, error) {
	if err := db.AutoMigrate(&models.Clinician{}); err != nil {
		return nil, err
	}
	return &GormClinicianRepository{db: db}, nil
}

func (r *GormClinicianRepository) Create(clinician *models.Clinician) error {
	return r.db.Create(clinician).Error
}

func (r *GormClinicianRepository) GetByID(id uint) (*models.Clinician, error) {
	var clinician models.Clinician
	err := r.db.First(&clinician, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &clinician, nil
}

func (r *GormClinicianRepository) GetAll() ([]models.Clinician, error) {
	var clinicians []models.Clinician
	err := r.db.Order("id ASC").Find(&clinicians).Error
	return clinicians, err
}

func (r *GormClinicianRepository) GetAllActive() ([]models.Clinician, error) {
	var clinicians []models.Clinician
	err := r.db.Where("active = ?", true).Order("id ASC").Find(&clinicians).Error
	return clinicians, err
}

func (r *GormClinicianRepository) GetActiveByRole(role models.Role) ([]models.Clinician, error) {
	var clinicians []models.Clinician
	err := r.db.Where("active = ? AND role = ?", true, role).
		Order("id ASC").
		Find(&clinicians).Error
	return clinicians, err
}
