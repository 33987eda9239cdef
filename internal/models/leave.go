package models

import "time"

const (
	LeaveTypeAnnual = "annual"
	LeaveTypeStudy  = "study"
	LeaveTypeSick   = "sick"
	LeaveTypeOther  = "other"
)

// Leave records one clinician's absence for one date. Session FULL covers
// both half-days.
type Leave struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	ClinicianID uint      `gorm:"not null;index" json:"clinician_id"`
	Date        time.Time `gorm:"type:date;not null;index" json:"date"`
	Session     Session   `gorm:"type:varchar(4);not null" json:"session"`
	Type        string    `gorm:"type:varchar(20);not null" json:"type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Leave) TableName() string {
	return "leaves"
}

func (l *Leave) IsValid() bool {
	return l.ClinicianID != 0 && !l.Date.IsZero() && l.Session.Valid() && l.Type != ""
}
