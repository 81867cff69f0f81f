package service

import (
	"context"
	"errors"
	"testing"
	"time"

	alertdomain "github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
	"github.com/threatwatch-io/threatwatch/internal/modules/monitor/domain"
	"github.com/threatwatch-io/threatwatch/internal/modules/monitor/repository"
	sharederrors "github.com/threatwatch-io/threatwatch/internal/shared/errors"
	"github.com/threatwatch-io/threatwatch/internal/storage"
)

func testService(t *testing.T, now time.Time) *Service {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	svc := New(repository.NewSQLiteStorage(db))
	svc.now = func() time.Time { return now }
	return svc
}

func TestCreateMonitorDefaults(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc := testService(t, now)

	monitor, err := svc.CreateMonitor(context.Background(), "user-1", CreateRequest{Term: "  ransomware  "})
	if err != nil {
		t.Fatalf("CreateMonitor() error = %v", err)
	}
	if monitor.Term != "ransomware" {
		t.Errorf("term = %q, want trimmed", monitor.Term)
	}
	if monitor.Frequency != domain.MonitorFrequencyDaily {
		t.Errorf("frequency = %v, want daily default", monitor.Frequency)
	}
	if monitor.SeverityThreshold != alertdomain.SeverityLevelMedium {
		t.Errorf("threshold = %v, want medium default", monitor.SeverityThreshold)
	}
	if !monitor.Active {
		t.Error("new monitors start active")
	}
	wantNext := now.Add(24 * time.Hour)
	if monitor.NextScanAt == nil || !monitor.NextScanAt.Equal(wantNext) {
		t.Errorf("next scan = %v, want %v", monitor.NextScanAt, wantNext)
	}
	if !monitor.NotificationSettings.ImmediateAlerts || !monitor.NotificationSettings.DailySummary {
		t.Errorf("notification defaults = %+v", monitor.NotificationSettings)
	}
}

func TestCreateMonitorRejectsEmptyTerm(t *testing.T) {
	t.Parallel()
	svc := testService(t, time.Now().UTC())

	if _, err := svc.CreateMonitor(context.Background(), "user-1", CreateRequest{Term: "   "}); err == nil {
		t.Error("expected error for blank term")
	}
}

func TestNextScanTimePerFrequency(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc := testService(t, now)

	cases := []struct {
		frequency domain.MonitorFrequency
		want      time.Time
	}{
		{domain.MonitorFrequencyHourly, now.Add(time.Hour)},
		{domain.MonitorFrequencyDaily, now.Add(24 * time.Hour)},
		{domain.MonitorFrequencyWeekly, now.Add(7 * 24 * time.Hour)},
		{domain.MonitorFrequency("bogus"), now.Add(24 * time.Hour)},
	}
	for _, tc := range cases {
		if got := svc.NextScanTime(tc.frequency); !got.Equal(tc.want) {
			t.Errorf("NextScanTime(%s) = %v, want %v", tc.frequency, got, tc.want)
		}
	}
}

func TestUpdateFrequencyRecomputesSchedule(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc := testService(t, now)
	ctx := context.Background()

	monitor, err := svc.CreateMonitor(ctx, "user-1", CreateRequest{Term: "ransomware"})
	if err != nil {
		t.Fatalf("CreateMonitor() error = %v", err)
	}

	hourly := domain.MonitorFrequencyHourly
	updated, err := svc.UpdateMonitor(ctx, monitor.ID, "user-1", UpdateRequest{Frequency: &hourly})
	if err != nil {
		t.Fatalf("UpdateMonitor() error = %v", err)
	}
	wantNext := now.Add(time.Hour)
	if updated.NextScanAt == nil || !updated.NextScanAt.Equal(wantNext) {
		t.Errorf("next scan = %v, want %v after frequency change", updated.NextScanAt, wantNext)
	}
}

func TestAdvanceSchedule(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc := testService(t, now)
	ctx := context.Background()

	monitor, err := svc.CreateMonitor(ctx, "user-1", CreateRequest{Term: "ransomware"})
	if err != nil {
		t.Fatalf("CreateMonitor() error = %v", err)
	}

	scannedAt := now.Add(-time.Minute)
	if err := svc.AdvanceSchedule(ctx, monitor.ID, monitor.Frequency, scannedAt, 1); err != nil {
		t.Fatalf("AdvanceSchedule() error = %v", err)
	}

	got, err := svc.GetMonitor(ctx, monitor.ID, "user-1")
	if err != nil {
		t.Fatalf("GetMonitor() error = %v", err)
	}
	if got.ScanCount != 1 || got.AlertCount != 1 {
		t.Errorf("counters = %d/%d, want 1/1", got.ScanCount, got.AlertCount)
	}
	if got.LastScanAt == nil || !got.LastScanAt.Equal(scannedAt) {
		t.Errorf("last scan = %v, want %v", got.LastScanAt, scannedAt)
	}
	wantNext := now.Add(24 * time.Hour)
	if got.NextScanAt == nil || !got.NextScanAt.Equal(wantNext) {
		t.Errorf("next scan = %v, want %v", got.NextScanAt, wantNext)
	}
}

func TestUpdateMonitorWrongOwner(t *testing.T) {
	t.Parallel()
	svc := testService(t, time.Now().UTC())
	ctx := context.Background()

	monitor, err := svc.CreateMonitor(ctx, "user-1", CreateRequest{Term: "ransomware"})
	if err != nil {
		t.Fatalf("CreateMonitor() error = %v", err)
	}

	active := false
	if _, err := svc.UpdateMonitor(ctx, monitor.ID, "user-2", UpdateRequest{Active: &active}); !errors.Is(err, sharederrors.ErrMonitorNotFound) {
		t.Errorf("error = %v, want ErrMonitorNotFound", err)
	}
}
