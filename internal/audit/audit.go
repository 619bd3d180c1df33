package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nebari-dev/docshelf/internal/models"
	"gorm.io/gorm"
)

// Audit actions constants
const (
	ActionRegister       = "register"
	ActionLogin          = "login"
	ActionLoginFailed    = "login_failed"
	ActionCreateUser     = "create_user"
	ActionUpdateUser     = "update_user"
	ActionDeleteUser     = "delete_user"
	ActionCreateDocument = "create_document"
	ActionUpdateDocument = "update_document"
	ActionDeleteDocument = "delete_document"
)

// Logger records audit entries. A nil *Logger discards everything.
type Logger struct {
	db *gorm.DB
}

// New creates an audit logger writing to db.
func New(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// Record writes an audit entry. actorID may be nil when the actor is unknown.
// Failures are logged and never returned: auditing must not fail the request.
func (l *Logger) Record(ctx context.Context, actorID *uint, action, resource string, details interface{}) {
	if l == nil || l.db == nil {
		return
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	entry := models.AuditLog{
		UserID:      actorID,
		Action:      action,
		Resource:    resource,
		DetailsJSON: string(detailsJSON),
		Timestamp:   time.Now().UTC(),
	}
	if err := l.db.WithContext(ctx).Create(&entry).Error; err != nil {
		slog.Error("Failed to write audit log", "action", action, "resource", resource, "error", err)
	}
}

// Actor is a convenience for passing a known actor id to Record.
func Actor(id uint) *uint { return &id }
