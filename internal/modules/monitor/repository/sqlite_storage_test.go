package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	alertdomain "github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
	"github.com/threatwatch-io/threatwatch/internal/modules/monitor/domain"
	sharederrors "github.com/threatwatch-io/threatwatch/internal/shared/errors"
	"github.com/threatwatch-io/threatwatch/internal/storage"
)

func testRepo(t *testing.T) Repository {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStorage(db)
}

func sampleMonitor(userID string) *domain.Monitor {
	now := time.Now().UTC().Truncate(time.Second)
	next := now.Add(24 * time.Hour)
	return &domain.Monitor{
		ID:                uuid.NewString(),
		UserID:            userID,
		Term:              "ransomware",
		Keywords:          []string{"hospital", "healthcare"},
		ExcludeKeywords:   []string{"game"},
		Frequency:         domain.MonitorFrequencyDaily,
		SeverityThreshold: alertdomain.SeverityLevelMedium,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
		NextScanAt:        &next,
		NotificationSettings: domain.NotificationSettings{
			ImmediateAlerts: true,
			DailySummary:    true,
		},
	}
}

func TestSaveAndGetMonitor(t *testing.T) {
	t.Parallel()
	repo := testRepo(t)
	ctx := context.Background()

	monitor := sampleMonitor("user-1")
	if err := repo.SaveMonitor(ctx, monitor); err != nil {
		t.Fatalf("SaveMonitor() error = %v", err)
	}

	got, err := repo.GetMonitor(ctx, monitor.ID)
	if err != nil {
		t.Fatalf("GetMonitor() error = %v", err)
	}
	if got.Term != "ransomware" {
		t.Errorf("term = %q", got.Term)
	}
	if len(got.Keywords) != 2 || got.Keywords[0] != "hospital" {
		t.Errorf("keywords = %v", got.Keywords)
	}
	if !got.NotificationSettings.ImmediateAlerts {
		t.Error("notification settings not round-tripped")
	}
}

func TestGetOwnedMonitorRejectsOtherUser(t *testing.T) {
	t.Parallel()
	repo := testRepo(t)
	ctx := context.Background()

	monitor := sampleMonitor("user-1")
	if err := repo.SaveMonitor(ctx, monitor); err != nil {
		t.Fatalf("SaveMonitor() error = %v", err)
	}

	if _, err := repo.GetOwnedMonitor(ctx, monitor.ID, "user-2"); !errors.Is(err, sharederrors.ErrMonitorNotFound) {
		t.Errorf("error = %v, want ErrMonitorNotFound", err)
	}
}

func TestDeleteMonitorOwnerGuard(t *testing.T) {
	t.Parallel()
	repo := testRepo(t)
	ctx := context.Background()

	monitor := sampleMonitor("user-1")
	if err := repo.SaveMonitor(ctx, monitor); err != nil {
		t.Fatalf("SaveMonitor() error = %v", err)
	}

	if err := repo.DeleteMonitor(ctx, monitor.ID, "user-2"); !errors.Is(err, sharederrors.ErrMonitorNotFound) {
		t.Errorf("cross-user delete error = %v, want ErrMonitorNotFound", err)
	}
	if err := repo.DeleteMonitor(ctx, monitor.ID, "user-1"); err != nil {
		t.Fatalf("owner delete error = %v", err)
	}
	if _, err := repo.GetMonitor(ctx, monitor.ID); !errors.Is(err, sharederrors.ErrMonitorNotFound) {
		t.Errorf("get after delete error = %v, want ErrMonitorNotFound", err)
	}
}

func TestGetDueMonitors(t *testing.T) {
	t.Parallel()
	repo := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	due := sampleMonitor("user-1")
	past := now.Add(-time.Hour)
	due.NextScanAt = &past

	future := sampleMonitor("user-1")
	later := now.Add(time.Hour)
	future.NextScanAt = &later

	inactive := sampleMonitor("user-1")
	inactive.NextScanAt = &past
	inactive.Active = false

	unscheduled := sampleMonitor("user-1")
	unscheduled.NextScanAt = nil

	for _, m := range []*domain.Monitor{due, future, inactive, unscheduled} {
		if err := repo.SaveMonitor(ctx, m); err != nil {
			t.Fatalf("SaveMonitor() error = %v", err)
		}
	}

	got, err := repo.GetDueMonitors(ctx, now)
	if err != nil {
		t.Fatalf("GetDueMonitors() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != due.ID {
		t.Errorf("due monitors = %d, want only the overdue active one", len(got))
	}
}

func TestRecordScanAdvancesCounters(t *testing.T) {
	t.Parallel()
	repo := testRepo(t)
	ctx := context.Background()

	monitor := sampleMonitor("user-1")
	if err := repo.SaveMonitor(ctx, monitor); err != nil {
		t.Fatalf("SaveMonitor() error = %v", err)
	}

	scannedAt := time.Now().UTC().Truncate(time.Second)
	nextScan := scannedAt.Add(24 * time.Hour)
	if err := repo.RecordScan(ctx, monitor.ID, scannedAt, nextScan, 1); err != nil {
		t.Fatalf("RecordScan() error = %v", err)
	}
	if err := repo.RecordScan(ctx, monitor.ID, scannedAt, nextScan, 0); err != nil {
		t.Fatalf("RecordScan() error = %v", err)
	}

	got, err := repo.GetMonitor(ctx, monitor.ID)
	if err != nil {
		t.Fatalf("GetMonitor() error = %v", err)
	}
	if got.ScanCount != 2 {
		t.Errorf("scan count = %d, want 2", got.ScanCount)
	}
	if got.AlertCount != 1 {
		t.Errorf("alert count = %d, want 1", got.AlertCount)
	}
	if got.LastScanAt == nil || !got.LastScanAt.Equal(scannedAt) {
		t.Errorf("last scan = %v, want %v", got.LastScanAt, scannedAt)
	}
}

func TestListUserMonitorsActiveOnly(t *testing.T) {
	t.Parallel()
	repo := testRepo(t)
	ctx := context.Background()

	active := sampleMonitor("user-1")
	inactive := sampleMonitor("user-1")
	inactive.Active = false
	other := sampleMonitor("user-2")
	for _, m := range []*domain.Monitor{active, inactive, other} {
		if err := repo.SaveMonitor(ctx, m); err != nil {
			t.Fatalf("SaveMonitor() error = %v", err)
		}
	}

	all, err := repo.ListUserMonitors(ctx, "user-1", false)
	if err != nil {
		t.Fatalf("ListUserMonitors() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all monitors = %d, want 2", len(all))
	}

	onlyActive, err := repo.ListUserMonitors(ctx, "user-1", true)
	if err != nil {
		t.Fatalf("ListUserMonitors() error = %v", err)
	}
	if len(onlyActive) != 1 || onlyActive[0].ID != active.ID {
		t.Errorf("active monitors = %d, want 1", len(onlyActive))
	}

	count, err := repo.CountUserMonitors(ctx, "user-1")
	if err != nil {
		t.Fatalf("CountUserMonitors() error = %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}
