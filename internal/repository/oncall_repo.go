package repository

import (
	"errors"

	"rota-engine/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OnCallConfigRepository interface {
	Upsert(config *models.OnCallConfig) error
	GetByRole(role models.Role) (*models.OnCallConfig, error)
}

type GormOnCallConfigRepository struct {
	db *gorm.DB
}

func NewGormOnCallConfigRepository(db *gorm.DB) (OnCallConfigRepository, error) {
	if err := db.AutoMigrate(&models.OnCallConfig{}); err != nil {
		return nil, err
	}
	return &GormOnCallConfigRepository{db: db}, nil
}

func (r *GormOnCallConfigRepository) Upsert(config *models.OnCallConfig) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "role"}},
		DoUpdates: clause.AssignmentColumns([]string{"start_date", "cycle_length", "updated_at"}),
	}).Create(config).Error
}

func (r *GormOnCallConfigRepository) GetByRole(role models.Role) (*models.OnCallConfig, error) {
	var config models.OnCallConfig
	err := r.db.Where("role = ?", role).First(&config).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &config, nil
}

type OnCallSlotRepository interface {
	Create(slot *models.OnCallSlot) error
	GetByID(id uint) (*models.OnCallSlot, error)
	GetActiveByRole(role models.Role) ([]models.OnCallSlot, error)
	GetActiveByRoleAndPosition(role models.Role, position int) (*models.OnCallSlot, error)
	Deactivate(id uint) error
}

type GormOnCallSlotRepository struct {
	db *gorm.DB
}

func NewGormOnCallSlotRepository(db *gorm.DB) (OnCallSlotRepository, error) {
	if err := db.AutoMigrate(&models.OnCallSlot{}); err != nil {
		return nil, err
	}
	return &GormOnCallSlotRepository{db: db}, nil
}

func (r *GormOnCallSlotRepository) Create(slot *models.OnCallSlot) error {
	return r.db.Create(slot).Error
}

func (r *GormOnCallSlotRepository) GetByID(id uint) (*models.OnCallSlot, error) {
	var slot models.OnCallSlot
	err := r.db.First(&slot, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *GormOnCallSlotRepository) GetActiveByRole(role models.Role) ([]models.OnCallSlot, error) {
	var slots []models.OnCallSlot
	err := r.db.Where("role = ? AND active = ?", role, true).
		Order("position ASC").
		Find(&slots).Error
	return slots, err
}

func (r *GormOnCallSlotRepository) GetActiveByRoleAndPosition(role models.Role, position int) (*models.OnCallSlot, error) {
	var slot models.OnCallSlot
	err := r.db.Where("role = ? AND active = ? AND position = ?", role, true, position).
		First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *GormOnCallSlotRepository) Deactivate(id uint) error {
	return r.db.Model(&models.OnCallSlot{}).
		Where("id = ?", id).
		Update("active", false).Error
}

type OnCallPatternRepository interface {
	Upsert(pattern *models.OnCallPattern) error
	FindAll() ([]models.OnCallPattern, error)
}

type GormOnCallPatternRepository struct {
	db *gorm.DB
}

func NewGormOnCallPatternRepository(db *gorm.DB) (OnCallPatternRepository, error) {
	if err := db.AutoMigrate(&models.OnCallPattern{}); err != nil {
		return nil, err
	}
	return &GormOnCallPatternRepository{db: db}, nil
}

func (r *GormOnCallPatternRepository) Upsert(pattern *models.OnCallPattern) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day_of_cycle"}},
		DoUpdates: clause.AssignmentColumns([]string{"slot_id", "updated_at"}),
	}).Create(pattern).Error
}

func (r *GormOnCallPatternRepository) FindAll() ([]models.OnCallPattern, error) {
	var patterns []models.OnCallPattern
	err := r.db.Order("day_of_cycle ASC").Find(&patterns).Error
	return patterns, err
}
