package repository

import (
	"context"
	"time"

	"github.com/threatwatch-io/threatwatch/internal/modules/monitor/domain"
)

// Repository defines the interface for monitor persistence
// This abstraction allows easy replacement of storage implementations
// (e.g., SQLite -> PostgreSQL -> MongoDB)
type Repository interface {
	SaveMonitor(ctx context.Context, monitor *domain.Monitor) error
	GetMonitor(ctx context.Context, monitorID string) (*domain.Monitor, error)
	GetOwnedMonitor(ctx context.Context, monitorID, userID string) (*domain.Monitor, error)
	ListUserMonitors(ctx context.Context, userID string, activeOnly bool) ([]*domain.Monitor, error)
	UpdateMonitor(ctx context.Context, monitor *domain.Monitor) error
	DeleteMonitor(ctx context.Context, monitorID, userID string) error
	CountUserMonitors(ctx context.Context, userID string) (int, error)

	// GetDueMonitors returns active monitors whose next scan time has passed.
	GetDueMonitors(ctx context.Context, now time.Time) ([]*domain.Monitor, error)

	// RecordScan advances the schedule after a terminal scan attempt and
	// bumps the scan/alert counters.
	RecordScan(ctx context.Context, monitorID string, lastScan, nextScan time.Time, alertsGenerated int) error
}
