package models

import "time"

// AuditLog represents a record of security-relevant actions
type AuditLog struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UserID      *uint     `gorm:"index" json:"user_id,omitempty"` // nil when the actor is unknown (failed login)
	Action      string    `gorm:"not null" json:"action"`         // e.g., "login", "delete_document"
	Resource    string    `gorm:"not null" json:"resource"`       // e.g., "document:12", "user:4"
	DetailsJSON string    `gorm:"type:text" json:"details_json"`  // Additional context in JSON
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
}
