package repository

import (
	"encoding/json"

	"rota-engine/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuditRepository is a fire-and-forget sink: Record never returns an error,
// a failed write is logged and dropped so that audit trouble can not fail
// the mutation it describes.
type AuditRepository interface {
	Record(action, entity, entityRef string, before, after any)
}

type GormAuditRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormAuditRepository(db *gorm.DB) (AuditRepository, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if err := db.AutoMigrate(&models.AuditEvent{}); err != nil {
		return nil, err
	}
	return &GormAuditRepository{db: db, logger: logger}, nil
}

func (r *GormAuditRepository) Record(action, entity, entityRef string, before, after any) {
	event := &models.AuditEvent{
		EventID:   uuid.NewString(),
		Action:    action,
		Entity:    entity,
		EntityRef: entityRef,
		Before:    marshalSnapshot(before),
		After:     marshalSnapshot(after),
	}

	if err := r.db.Create(event).Error; err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"action": action,
			"entity": entity,
			"ref":    entityRef,
		}).Error("Failed to write audit event")
	}
}

func marshalSnapshot(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
