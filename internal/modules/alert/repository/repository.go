package repository

import (
	"context"
	"time"

	"github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
)

// ListFilter narrows alert queries; nil fields match everything.
type ListFilter struct {
	MonitorID *string
	Status    *domain.AlertStatus
	Severity  *domain.SeverityLevel
	Limit     int
	Offset    int
}

// Repository defines the interface for alert persistence
// This abstraction allows easy replacement of storage implementations
// (e.g., SQLite -> PostgreSQL -> MongoDB)
type Repository interface {
	SaveAlert(ctx context.Context, alert *domain.Alert) error
	GetAlert(ctx context.Context, alertID, userID string) (*domain.Alert, error)
	ListUserAlerts(ctx context.Context, userID string, filter ListFilter) ([]*domain.Alert, error)

	// ExistsRecent reports whether an alert with the same (user, monitor,
	// title) was created after the since timestamp.
	ExistsRecent(ctx context.Context, userID, monitorID, title string, since time.Time) (bool, error)

	// UpdateStatus writes a new status, owner-guarded, and reports whether a
	// row was modified.
	UpdateStatus(ctx context.Context, alertID, userID string, status domain.AlertStatus, feedback string) (bool, error)

	MarkNotificationSent(ctx context.Context, alertID string, sentAt time.Time) (bool, error)
	ListUnsent(ctx context.Context, limit int) ([]*domain.Alert, error)

	CountByStatus(ctx context.Context, userID string, status domain.AlertStatus) (int, error)
	CountBySeverity(ctx context.Context, userID string, severity domain.SeverityLevel) (int, error)
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
	CountAll(ctx context.Context, userID string) (int, error)

	// DeleteOlderThan purges a user's alerts created before the cutoff and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, userID string, cutoff time.Time) (int64, error)

	// DeleteAllOlderThan is the cross-user variant used by the retention sweep.
	DeleteAllOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
