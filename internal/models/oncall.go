package models

import (
	"time"

	"rota-engine/pkg/datemath"
)

// OnCallConfig anchors a role's cyclic rotation. CycleLength counts weeks
// for consultants and days for registrars.
type OnCallConfig struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Role        Role      `gorm:"type:varchar(20);not null;uniqueIndex" json:"role"`
	StartDate   time.Time `gorm:"type:date;not null" json:"start_date"`
	CycleLength int       `gorm:"not null" json:"cycle_length"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (OnCallConfig) TableName() string {
	return "oncall_configs"
}

func (c *OnCallConfig) IsValid() bool {
	return c.Role.Valid() && c.CycleLength > 0 && !c.StartDate.IsZero()
}

// OnCallSlot is a named rotation position. Slots are soft-deleted so that
// historical slot assignments stay resolvable.
type OnCallSlot struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Role      Role      `gorm:"type:varchar(20);not null;index" json:"role"`
	Name      string    `gorm:"not null" json:"name"`
	Position  int       `gorm:"not null" json:"position"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OnCallSlot) TableName() string {
	return "oncall_slots"
}

// OnCallPattern maps a day of the registrar cycle to a slot. When no
// pattern rows exist the rotation falls back to round-robin by position.
type OnCallPattern struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	DayOfCycle int       `gorm:"not null;uniqueIndex" json:"day_of_cycle"`
	SlotID     uint      `gorm:"not null" json:"slot_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (OnCallPattern) TableName() string {
	return "oncall_patterns"
}

// SlotAssignment is a clinician's tenure in a slot. EffectiveTo nil means
// open-ended.
type SlotAssignment struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	SlotID        uint       `gorm:"not null;index" json:"slot_id"`
	ClinicianID   uint       `gorm:"not null;index" json:"clinician_id"`
	EffectiveFrom time.Time  `gorm:"type:date;not null" json:"effective_from"`
	EffectiveTo   *time.Time `gorm:"type:date" json:"effective_to"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (SlotAssignment) TableName() string {
	return "slot_assignments"
}

// ActiveAt reports whether the assignment's effective range contains date,
// treating an open end as +infinity.
func (a *SlotAssignment) ActiveAt(date time.Time) bool {
	d := datemath.DateOnly(date)
	if d.Before(datemath.DateOnly(a.EffectiveFrom)) {
		return false
	}
	if a.EffectiveTo == nil {
		return true
	}
	return !d.After(datemath.DateOnly(*a.EffectiveTo))
}
