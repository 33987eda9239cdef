package models

import "time"

// AuditEvent is the fire-and-forget trail of engine mutations. Before and
// After hold JSON snapshots of the affected row.
type AuditEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	EventID   string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"event_id"`
	Action    string    `gorm:"type:varchar(40);not null" json:"action"`
	Entity    string    `gorm:"type:varchar(40);not null;index" json:"entity"`
	EntityRef string    `gorm:"type:varchar(80)" json:"entity_ref"`
	Before    string    `json:"before"`
	After     string    `json:"after"`
	CreatedAt time.Time `json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
