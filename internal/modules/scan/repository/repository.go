package repository

import (
	"context"
	"time"

	"github.com/threatwatch-io/threatwatch/internal/modules/scan/domain"
)

// Summary aggregates scan outcomes over a window, for operational reporting.
type Summary struct {
	TotalScans      int     `json:"total_scans"`
	SuccessfulScans int     `json:"successful_scans"`
	TotalCost       string  `json:"total_cost"`
	AvgDurationSecs float64 `json:"avg_duration_secs"`
}

// Repository persists the append-only scan audit trail.
type Repository interface {
	SaveRecord(ctx context.Context, record *domain.ScanRecord) error
	ListForMonitor(ctx context.Context, monitorID string, limit int) ([]*domain.ScanRecord, error)
	Summarize(ctx context.Context, since time.Time) (*Summary, error)
}
