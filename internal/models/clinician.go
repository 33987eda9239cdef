package models

import "time"

type Role string

const (
	RoleConsultant Role = "consultant"
	RoleRegistrar  Role = "registrar"
)

func (r Role) Valid() bool {
	return r == RoleConsultant || r == RoleRegistrar
}

// Clinician is owned by the administrative subsystem; the engine reads it,
// never mutates it.
type Clinician struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Role      Role      `gorm:"type:varchar(20);not null;index" json:"role"`
	Grade     string    `gorm:"type:varchar(40)" json:"grade"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Clinician) TableName() string {
	return "clinicians"
}

func (c *Clinician) IsRegistrar() bool {
	return c.Role == RoleRegistrar
}

func (c *Clinician) IsConsultant() bool {
	return c.Role == RoleConsultant
}
