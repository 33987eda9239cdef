package repository

import (
	"errors"
	"time"

	"rota-engine/internal/models"
	"rota-engine/pkg/datemath"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RotaEntryRepository interface {
	// Upsert writes the entry, replacing any existing row with the same
	// (date, clinician_id, session) key. The unique key is the core
	// persistence invariant; callers decide whether replacement is allowed.
	Upsert(entry *models.RotaEntry) error
	GetByKey(date time.Time, clinicianID uint, session models.Session) (*models.RotaEntry, error)
	FindInRange(from, to time.Time) ([]models.RotaEntry, error)
	FindForClinician(clinicianID uint, from, to time.Time) ([]models.RotaEntry, error)
	FindBySupporting(date time.Time, session models.Session, supportingID uint) ([]models.RotaEntry, error)
	DeleteByKey(date time.Time, clinicianID uint, session models.Session) error
}

type GormRotaEntryRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormRotaEntryRepository(db *gorm.DB) (RotaEntryRepository, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if err := db.AutoMigrate(&models.RotaEntry{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate rota_entries table")
		return nil, err
	}

	return &GormRotaEntryRepository{db: db, logger: logger}, nil
}

func (r *GormRotaEntryRepository) Upsert(entry *models.RotaEntry) error {
	if !entry.IsValid() {
		r.logger.WithFields(logrus.Fields{
			"date":         datemath.Format(entry.Date),
			"clinician_id": entry.ClinicianID,
			"session":      entry.Session,
		}).Warn("Invalid rota entry data")
		return errors.New("invalid rota entry data")
	}

	entry.Date = datemath.DateOnly(entry.Date)

	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "date"}, {Name: "clinician_id"}, {Name: "session"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"source", "duty_id", "is_on_call", "supporting_clinician_id", "note", "updated_at",
		}),
	}).Create(entry).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to upsert rota entry")
		return err
	}

	return nil
}

func (r *GormRotaEntryRepository) GetByKey(date time.Time, clinicianID uint, session models.Session) (*models.RotaEntry, error) {
	var entry models.RotaEntry
	err := r.db.Where("date = ? AND clinician_id = ? AND session = ?",
		datemath.DateOnly(date), clinicianID, session).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *GormRotaEntryRepository) FindInRange(from, to time.Time) ([]models.RotaEntry, error) {
	var entries []models.RotaEntry
	err := r.db.Where("date >= ? AND date <= ?",
		datemath.DateOnly(from), datemath.DateOnly(to)).
		Order("date ASC, clinician_id ASC, session ASC").
		Find(&entries).Error
	return entries, err
}

func (r *GormRotaEntryRepository) FindForClinician(clinicianID uint, from, to time.Time) ([]models.RotaEntry, error) {
	var entries []models.RotaEntry
	err := r.db.Where("clinician_id = ? AND date >= ? AND date <= ?",
		clinicianID, datemath.DateOnly(from), datemath.DateOnly(to)).
		Order("date ASC, session ASC").
		Find(&entries).Error
	return entries, err
}

func (r *GormRotaEntryRepository) FindBySupporting(date time.Time, session models.Session, supportingID uint) ([]models.RotaEntry, error) {
	var entries []models.RotaEntry
	err := r.db.Where("date = ? AND session = ? AND supporting_clinician_id = ?",
		datemath.DateOnly(date), session, supportingID).
		Order("clinician_id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *GormRotaEntryRepository) DeleteByKey(date time.Time, clinicianID uint, session models.Session) error {
	return r.db.Where("date = ? AND clinician_id = ? AND session = ?",
		datemath.DateOnly(date), clinicianID, session).
		Delete(&models.RotaEntry{}).Error
}
