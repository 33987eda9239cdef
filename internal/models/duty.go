package models

import "time"

// Duty is a catalog entry. RequiresCoverage is a tri-state column so that
// rows created before the flag existed keep the old behaviour (nil = true).
type Duty struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	Name             string    `gorm:"not null;uniqueIndex" json:"name"`
	Color            string    `gorm:"type:varchar(20)" json:"color"`
	RequiresCoverage *bool     `gorm:"default:true" json:"requires_coverage"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Duty) TableName() string {
	return "duties"
}

// NeedsCoverage reports whether an absence on this duty should raise a
// coverage request. Only an explicit false suppresses it.
func (d *Duty) NeedsCoverage() bool {
	return d.RequiresCoverage == nil || *d.RequiresCoverage
}
