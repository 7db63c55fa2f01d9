package store

import (
	"context"

	"github.com/cockroachdb/errors"

	"hids-dashboard-go/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username already exists")
)

// UserStore handles dashboard accounts (PostgreSQL)
type UserStore interface {
	CreateUser(ctx context.Context, username, password, role string) (models.User, error)
	GetUser(ctx context.Context, id int) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id int, username, role string) error
	UpdateUserPassword(ctx context.Context, id int, password string) error
	DeleteUser(ctx context.Context, id int) error

	UpdateUser2FA(ctx context.Context, id int, totpSecret string, enabled bool) error
	Disable2FA(ctx context.Context, id int) error
}

// AuditStore records who changed what (PostgreSQL)
type AuditStore interface {
	InsertAudit(ctx context.Context, actorID int, action, targetType, targetID, metadata string) error
	ListAudit(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// SettingsStore keeps operator-editable settings (Redis)
type SettingsStore interface {
	GetThresholds(ctx context.Context) (models.Thresholds, error)
	SaveThresholds(ctx context.Context, t models.Thresholds) error
}
