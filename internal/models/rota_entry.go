package models

import "time"

// EntrySource is the closed set of layers a rota entry can come from. The
// composer's precedence switch is written against these constants.
type EntrySource string

const (
	SourceJobPlan EntrySource = "jobplan"
	SourceOnCall  EntrySource = "oncall"
	SourceManual  EntrySource = "manual"
	SourceLeave   EntrySource = "leave"
	SourceRest    EntrySource = "rest"
)

func (s EntrySource) Valid() bool {
	switch s {
	case SourceJobPlan, SourceOnCall, SourceManual, SourceLeave, SourceRest:
		return true
	}
	return false
}

// Pinned reports whether a regeneration pass must leave a row with this
// source untouched. Only jobplan and oncall rows are regenerable.
func (s EntrySource) Pinned() bool {
	switch s {
	case SourceManual, SourceLeave, SourceRest:
		return true
	}
	return false
}

// RotaEntry is the materialized truth for one clinician, date and half-day
// session. Uniqueness of (date, clinician_id, session) is the core
// persistence invariant.
type RotaEntry struct {
	ID                    uint        `gorm:"primarykey" json:"id"`
	Date                  time.Time   `gorm:"type:date;not null;index:idx_rota_key,unique" json:"date"`
	ClinicianID           uint        `gorm:"not null;index:idx_rota_key,unique" json:"clinician_id"`
	Session               Session     `gorm:"type:varchar(4);not null;index:idx_rota_key,unique" json:"session"`
	Source                EntrySource `gorm:"type:varchar(10);not null" json:"source"`
	DutyID                *uint       `json:"duty_id"`
	IsOnCall              bool        `gorm:"not null;default:false" json:"is_oncall"`
	SupportingClinicianID *uint       `json:"supporting_clinician_id"`
	Note                  string      `json:"note"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

func (RotaEntry) TableName() string {
	return "rota_entries"
}

func (e *RotaEntry) IsValid() bool {
	return e.ClinicianID != 0 && !e.Date.IsZero() &&
		(e.Session == SessionAM || e.Session == SessionPM) &&
		e.Source.Valid()
}
