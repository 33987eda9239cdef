package repository

import (
	"errors"

	"rota-engine/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JobPlanRepository interface {
	Upsert(cell *models.JobPlanWeek) error
	GetCell(clinicianID uint, weekNo, dayOfWeek int) (*models.JobPlanWeek, error)
	FindForClinician(clinicianID uint) ([]models.JobPlanWeek, error)
	FindSupporting(consultantID uint, weekNo, dayOfWeek int, session models.Session) ([]models.JobPlanWeek, error)
	FindAll() ([]models.JobPlanWeek, error)
}

type GormJobPlanRepository struct {
	db *gorm.DB
}

func NewGormJobPlanRepository(db *gorm.DB) (JobPlanRepository, error) {
	if err := db.AutoMigrate(&models.JobPlanWeek{}); err != nil {
		return nil, err
	}
	return &GormJobPlanRepository{db: db}, nil
}

func (r *GormJobPlanRepository) Upsert(cell *models.JobPlanWeek) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "clinician_id"}, {Name: "week_no"}, {Name: "day_of_week"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"am_duty_id", "pm_duty_id", "am_supporting_id", "pm_supporting_id", "updated_at",
		}),
	}).Create(cell).Error
}

func (r *GormJobPlanRepository) GetCell(clinicianID uint, weekNo, dayOfWeek int) (*models.JobPlanWeek, error) {
	var cell models.JobPlanWeek
	err := r.db.Where("clinician_id = ? AND week_no = ? AND day_of_week = ?",
		clinicianID, weekNo, dayOfWeek).
		First(&cell).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cell, nil
}

func (r *GormJobPlanRepository) FindForClinician(clinicianID uint) ([]models.JobPlanWeek, error) {
	var cells []models.JobPlanWeek
	err := r.db.Where("clinician_id = ?", clinicianID).
		Order("week_no ASC, day_of_week ASC").
		Find(&cells).Error
	return cells, err
}

func (r *GormJobPlanRepository) FindSupporting(consultantID uint, weekNo, dayOfWeek int, session models.Session) ([]models.JobPlanWeek, error) {
	var cells []models.JobPlanWeek
	q := r.db.Where("week_no = ? AND day_of_week = ?", weekNo, dayOfWeek)
	switch session {
	case models.SessionAM:
		q = q.Where("am_supporting_id = ?", consultantID)
	case models.SessionPM:
		q = q.Where("pm_supporting_id = ?", consultantID)
	default:
		q = q.Where("am_supporting_id = ? OR pm_supporting_id = ?", consultantID, consultantID)
	}
	err := q.Order("clinician_id ASC").Find(&cells).Error
	return cells, err
}

func (r *GormJobPlanRepository) FindAll() ([]models.JobPlanWeek, error) {
	var cells []models.JobPlanWeek
	err := r.db.Find(&cells).Error
	return cells, err
}
