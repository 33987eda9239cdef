package models

import "time"

type CoverageType string

const (
	CoverageTypeRegistrar  CoverageType = "registrar"
	CoverageTypeConsultant CoverageType = "consultant"
)

type CoverageStatus string

const (
	CoverageStatusPending   CoverageStatus = "pending"
	CoverageStatusAssigned  CoverageStatus = "assigned"
	CoverageStatusCancelled CoverageStatus = "cancelled"
)

type CoverageReason string

const (
	CoverageReasonLeave    CoverageReason = "leave"
	CoverageReasonOnCall   CoverageReason = "oncall_conflict"
	CoverageReasonManual   CoverageReason = "manual"
)

// CoverageRequest records an unmet duty obligation. Lifecycle:
// pending -> assigned (auto-assigner or manual pick) or deleted when the
// triggering leave is withdrawn.
type CoverageRequest struct {
	ID                  uint           `gorm:"primarykey" json:"id"`
	Date                time.Time      `gorm:"type:date;not null;index" json:"date"`
	Session             Session        `gorm:"type:varchar(4);not null" json:"session"`
	Type                CoverageType   `gorm:"type:varchar(20);not null" json:"type"`
	DutyID              uint           `gorm:"not null" json:"duty_id"`
	AbsentClinicianID   uint           `gorm:"not null;index" json:"absent_clinician_id"`
	AssignedClinicianID *uint          `gorm:"index" json:"assigned_clinician_id"`
	Status              CoverageStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Reason              CoverageReason `gorm:"type:varchar(20);not null" json:"reason"`
	AssignedAt          *time.Time     `json:"assigned_at"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func (CoverageRequest) TableName() string {
	return "coverage_requests"
}

func (r *CoverageRequest) IsPending() bool {
	return r.Status == CoverageStatusPending
}
