package repository

import (
	"errors"
	"time"

	"rota-engine/internal/models"
	"rota-engine/pkg/datemath"

	"gorm.io/gorm"
)

type LeaveRepository interface {
	Create(leave *models.Leave) error
	GetByID(id uint) (*models.Leave, error)
	FindInRange(from, to time.Time) ([]models.Leave, error)
	FindForClinician(clinicianID uint, from, to time.Time) ([]models.Leave, error)
	Delete(id uint) error
}

type GormLeaveRepository struct {
	db *gorm.DB
}

func NewGormLeaveRepository(db *gorm.DB) (LeaveRepository, error) {
	if err := db.AutoMigrate(&models.Leave{}); err != nil {
		return nil, err
	}
	return &GormLeaveRepository{db: db}, nil
}

func (r *GormLeaveRepository) Create(leave *models.Leave) error {
	return r.db.Create(leave).Error
}

func (r *GormLeaveRepository) GetByID(id uint) (*models.Leave, error) {
	var leave models.Leave
	err := r.db.First(&leave, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &leave, nil
}

func (r *GormLeaveRepository) FindInRange(from, to time.Time) ([]models.Leave, error) {
	var leaves []models.Leave
	err := r.db.Where("date >= ? AND date <= ?",
		datemath.DateOnly(from), datemath.DateOnly(to)).
		Order("date ASC, clinician_id ASC").
		Find(&leaves).Error
	return leaves, err
}

func (r *GormLeaveRepository) FindForClinician(clinicianID uint, from, to time.Time) ([]models.Leave, error) {
	var leaves []models.Leave
	err := r.db.Where("clinician_id = ? AND date >= ? AND date <= ?",
		clinicianID, datemath.DateOnly(from), datemath.DateOnly(to)).
		Order("date ASC").
		Find(&leaves).Error
	return leaves, err
}

func (r *GormLeaveRepository) Delete(id uint) error {
	result := r.db.Delete(&models.Leave{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
