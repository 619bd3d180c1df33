package models

import "time"

// Document is a stored document owned by exactly one user. UserID is set at
// creation and never reassigned. The foreign key refuses both documents
// pointing at a missing user and deleting a user who still owns documents.
// User is never loaded or written through; it only declares the constraint.
type Document struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	FilePath  string    `json:"file_path"` // local path or s3:// URL of the uploaded file
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
