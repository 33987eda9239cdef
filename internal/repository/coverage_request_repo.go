package repository

import (
	"errors"
	"time"

	"rota-engine/internal/models"
	"rota-engine/pkg/datemath"

	"gorm.io/gorm"
)

type CoverageRequestRepository interface {
	Create(request *models.CoverageRequest) error
	Update(request *models.CoverageRequest) error
	GetByID(id uint) (*models.CoverageRequest, error)
	// Exists is the idempotence key check: one request per
	// (date, session, duty, absent clinician, type).
	Exists(date time.Time, session models.Session, dutyID, absentID uint, ctype models.CoverageType) (bool, error)
	FindInRange(from, to time.Time) ([]models.CoverageRequest, error)
	FindPendingInRange(from, to time.Time) ([]models.CoverageRequest, error)
	FindAssignedInRange(from, to time.Time) ([]models.CoverageRequest, error)
	FindAssignedTo(clinicianID uint, from, to time.Time) ([]models.CoverageRequest, error)
	FindPendingForLeave(clinicianID uint, date time.Time, session models.Session) ([]models.CoverageRequest, error)
	Delete(id uint) error
}

type GormCoverageRequestRepository struct {
	db *gorm.DB
}

func NewGormCoverageRequestRepository(db *gorm.DB) (CoverageRequestRepository, error) {
	if err := db.AutoMigrate(&models.CoverageRequest{}); err != nil {
		return nil, err
	}
	return &GormCoverageRequestRepository{db: db}, nil
}

func (r *GormCoverageRequestRepository) Create(request *models.CoverageRequest) error {
	request.Date = datemath.DateOnly(request.Date)
	return r.db.Create(request).Error
}

func (r *GormCoverageRequestRepository) Update(request *models.CoverageRequest) error {
	return r.db.Save(request).Error
}

func (r *GormCoverageRequestRepository) GetByID(id uint) (*models.CoverageRequest, error) {
	var request models.CoverageRequest
	err := r.db.First(&request, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *GormCoverageRequestRepository) Exists(date time.Time, session models.Session, dutyID, absentID uint, ctype models.CoverageType) (bool, error) {
	var count int64
	err := r.db.Model(&models.CoverageRequest{}).
		Where("date = ? AND session = ? AND duty_id = ? AND absent_clinician_id = ? AND type = ?",
			datemath.DateOnly(date), session, dutyID, absentID, ctype).
		Count(&count).Error
	return count > 0, err
}

func (r *GormCoverageRequestRepository) FindInRange(from, to time.Time) ([]models.CoverageRequest, error) {
	var requests []models.CoverageRequest
	err := r.db.Where("date >= ? AND date <= ?",
		datemath.DateOnly(from), datemath.DateOnly(to)).
		Order("date ASC, id ASC").
		Find(&requests).Error
	return requests, err
}

func (r *GormCoverageRequestRepository) FindPendingInRange(from, to time.Time) ([]models.CoverageRequest, error) {
	var requests []models.CoverageRequest
	err := r.db.Where("status = ? AND date >= ? AND date <= ?",
		models.CoverageStatusPending, datemath.DateOnly(from), datemath.DateOnly(to)).
		Order("date ASC, id ASC").
		Find(&requests).Error
	return requests, err
}

func (r *GormCoverageRequestRepository) FindAssignedInRange(from, to time.Time) ([]models.CoverageRequest, error) {
	var requests []models.CoverageRequest
	err := r.db.Where("status = ? AND date >= ? AND date <= ?",
		models.CoverageStatusAssigned, datemath.DateOnly(from), datemath.DateOnly(to)).
		Order("date ASC, id ASC").
		Find(&requests).Error
	return requests, err
}

func (r *GormCoverageRequestRepository) FindAssignedTo(clinicianID uint, from, to time.Time) ([]models.CoverageRequest, error) {
	var requests []models.CoverageRequest
	err := r.db.Where("status = ? AND assigned_clinician_id = ? AND date >= ? AND date <= ?",
		models.CoverageStatusAssigned, clinicianID,
		datemath.DateOnly(from), datemath.DateOnly(to)).
		Order("date ASC, id ASC").
		Find(&requests).Error
	return requests, err
}

func (r *GormCoverageRequestRepository) FindPendingForLeave(clinicianID uint, date time.Time, session models.Session) ([]models.CoverageRequest, error) {
	q := r.db.Where("status = ? AND reason = ? AND absent_clinician_id = ? AND date = ?",
		models.CoverageStatusPending, models.CoverageReasonLeave,
		clinicianID, datemath.DateOnly(date))
	if session != models.SessionFull {
		q = q.Where("session = ?", session)
	}
	var requests []models.CoverageRequest
	err := q.Find(&requests).Error
	return requests, err
}

func (r *GormCoverageRequestRepository) Delete(id uint) error {
	result := r.db.Delete(&models.CoverageRequest{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
