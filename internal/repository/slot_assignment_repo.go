package repository

import (
	"errors"
	"time"

	"rota-engine/internal/models"
	"rota-engine/pkg/datemath"

	"gorm.io/gorm"
)

type SlotAssignmentRepository interface {
	Create(assignment *models.SlotAssignment) error
	Update(assignment *models.SlotAssignment) error
	GetByID(id uint) (*models.SlotAssignment, error)
	FindActiveAt(slotID uint, date time.Time) (*models.SlotAssignment, error)
	FindBySlot(slotID uint) ([]models.SlotAssignment, error)
	// FindOverlapping returns assignments whose effective range intersects
	// [from, to] for the given slot or clinician. A nil to means open-ended.
	// excludeID skips one row, for update checks.
	FindOverlapping(slotID, clinicianID uint, from time.Time, to *time.Time, excludeID uint) ([]models.SlotAssignment, error)
	HasLiveOrFuture(slotID uint, asOf time.Time) (bool, error)
	Delete(id uint) error
}

type GormSlotAssignmentRepository struct {
	db *gorm.DB
}

func NewGormSlotAssignmentRepository(db *gorm.DB) (SlotAssignmentRepository, error) {
	if err := db.AutoMigrate(&models.SlotAssignment{}); err != nil {
		return nil, err
	}
	return &GormSlotAssignmentRepository{db: db}, nil
}

func (r *GormSlotAssignmentRepository) Create(assignment *models.SlotAssignment) error {
	return r.db.Create(assignment).Error
}

func (r *GormSlotAssignmentRepository) Update(assignment *models.SlotAssignment) error {
	return r.db.Save(assignment).Error
}

func (r *GormSlotAssignmentRepository) GetByID(id uint) (*models.SlotAssignment, error) {
	var assignment models.SlotAssignment
	err := r.db.First(&assignment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *GormSlotAssignmentRepository) FindActiveAt(slotID uint, date time.Time) (*models.SlotAssignment, error) {
	d := datemath.DateOnly(date)
	var assignment models.SlotAssignment
	err := r.db.Where("slot_id = ? AND effective_from <= ? AND (effective_to IS NULL OR effective_to >= ?)",
		slotID, d, d).
		Order("effective_from DESC").
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *GormSlotAssignmentRepository) FindBySlot(slotID uint) ([]models.SlotAssignment, error) {
	var assignments []models.SlotAssignment
	err := r.db.Where("slot_id = ?", slotID).
		Order("effective_from ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *GormSlotAssignmentRepository) FindOverlapping(slotID, clinicianID uint, from time.Time, to *time.Time, excludeID uint) ([]models.SlotAssignment, error) {
	f := datemath.DateOnly(from)
	q := r.db.Where("(slot_id = ? OR clinician_id = ?)", slotID, clinicianID).
		Where("(effective_to IS NULL OR effective_to >= ?)", f)
	if to != nil {
		q = q.Where("effective_from <= ?", datemath.DateOnly(*to))
	}
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var assignments []models.SlotAssignment
	err := q.Order("effective_from ASC").Find(&assignments).Error
	return assignments, err
}

func (r *GormSlotAssignmentRepository) HasLiveOrFuture(slotID uint, asOf time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&models.SlotAssignment{}).
		Where("slot_id = ? AND (effective_to IS NULL OR effective_to >= ?)",
			slotID, datemath.DateOnly(asOf)).
		Count(&count).Error
	return count > 0, err
}

func (r *GormSlotAssignmentRepository) Delete(id uint) error {
	result := r.db.Delete(&models.SlotAssignment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
