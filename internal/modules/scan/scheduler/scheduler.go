// Package scheduler drives recurring monitor scans. It polls for due
// monitors, fans scans out under a concurrency cap and applies retry and
// retention policy around the engine.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	alertdomain "github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
	alertservice "github.com/threatwatch-io/threatwatch/internal/modules/alert/service"
	monitordomain "github.com/threatwatch-io/threatwatch/internal/modules/monitor/domain"
	scandomain "github.com/threatwatch-io/threatwatch/internal/modules/scan/domain"
	"github.com/threatwatch-io/threatwatch/internal/modules/scan/engine"
	scanrepo "github.com/threatwatch-io/threatwatch/internal/modules/scan/repository"
	sharederrors "github.com/threatwatch-io/threatwatch/internal/shared/errors"
)

// MonitorStore is the slice of the monitor module the scheduler depends on.
type MonitorStore interface {
	GetDueMonitors(ctx context.Context) ([]*monitordomain.Monitor, error)
	GetByID(ctx context.Context, monitorID string) (*monitordomain.Monitor, error)
	AdvanceSchedule(ctx context.Context, monitorID string, frequency monitordomain.MonitorFrequency, scannedAt time.Time, alertsGenerated int) error
}

// AlertStore receives drafted alerts and enforces retention.
type AlertStore interface {
	Create(ctx context.Context, draft alertservice.Draft) (*alertdomain.Alert, error)
	MarkNotificationSent(ctx context.Context, alertID string) error
	PruneAll(ctx context.Context, retention time.Duration) (int64, error)
}

// RecordStore persists and aggregates scan attempt records.
type RecordStore interface {
	SaveRecord(ctx context.Context, record *scandomain.ScanRecord) error
	Summarize(ctx context.Context, since time.Time) (*scanrepo.Summary, error)
}

// Scanner runs one scan attempt for a monitor.
type Scanner interface {
	Scan(ctx context.Context, monitor *monitordomain.Monitor) (engine.Result, error)
}

// Notifier pushes an alert to the monitor owner's configured channel.
type Notifier interface {
	Notify(ctx context.Context, alert *alertdomain.Alert, chatID int64) error
}

// Options tunes the scheduling loop.
type Options struct {
	PollInterval  time.Duration
	MaxConcurrent int
	RetryAttempts int
	RetryDelay    time.Duration
	ScanTimeout   time.Duration
	Retention     time.Duration
}

const maintenanceInterval = 24 * time.Hour

// Scheduler owns the polling loop and the per-monitor scan lifecycle.
type Scheduler struct {
	opts     Options
	monitors MonitorStore
	alerts   AlertStore
	records  RecordStore
	scanner  Scanner
	notifier Notifier
	logger   *slog.Logger

	inFlight map[string]bool
	mu       sync.Mutex
	sem      chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New builds a scheduler. The notifier may be nil, in which case alerts are
// stored but not pushed.
func New(opts Options, monitors MonitorStore, alerts AlertStore, records RecordStore, scanner Scanner, notifier Notifier, logger *slog.Logger) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Minute
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		opts:     opts,
		monitors: monitors,
		alerts:   alerts,
		records:  records,
		scanner:  scanner,
		notifier: notifier,
		logger:   logger,
		inFlight: make(map[string]bool),
		sem:      make(chan struct{}, opts.MaxConcurrent),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the polling and maintenance loops.
func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.pollLoop()
	go s.maintenanceLoop()
}

// Stop cancels in-flight work and waits for it to drain.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) pollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	// Initial check
	s.Tick()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick finds due monitors and dispatches a scan for each one that is not
// already running. Exported for tests and manual triggering.
func (s *Scheduler) Tick() {
	due, err := s.monitors.GetDueMonitors(s.ctx)
	if err != nil {
		s.logger.Error("Failed to load due monitors", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Info("Dispatching due monitors", "count", len(due))

	for _, monitor := range due {
		if !s.claim(monitor.ID) {
			continue
		}
		s.wg.Add(1)
		go func(m *monitordomain.Monitor) {
			defer s.wg.Done()
			defer s.release(m.ID)

			select {
			case s.sem <- struct{}{}:
			case <-s.ctx.Done():
				return
			}
			defer func() { <-s.sem }()

			s.runScan(m)
		}(monitor)
	}
}

// claim marks a monitor as in flight; a second due sighting of the same
// monitor is skipped rather than queued.
func (s *Scheduler) claim(monitorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[monitorID] {
		return false
	}
	s.inFlight[monitorID] = true
	return true
}

func (s *Scheduler) release(monitorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, monitorID)
}

// runScan executes the attempt loop for one monitor and commits the outcome.
func (s *Scheduler) runScan(monitor *monitordomain.Monitor) {
	result, scanErr := s.attempt(monitor)

	for attemptN := 2; scanErr != nil && sharederrors.Retryable(scanErr) && attemptN <= s.opts.RetryAttempts; attemptN++ {
		s.logger.Warn("Scan failed, retrying",
			"monitor_id", monitor.ID,
			"attempt", attemptN,
			"error", scanErr)
		select {
		case <-time.After(s.opts.RetryDelay):
		case <-s.ctx.Done():
			return
		}
		result, scanErr = s.attempt(monitor)
	}

	// Re-fetch before committing anything. A monitor deleted or deactivated
	// while the scan ran gets all of its writes discarded.
	current, err := s.monitors.GetByID(s.ctx, monitor.ID)
	switch {
	case errors.Is(err, sharederrors.ErrMonitorNotFound):
		s.logger.Info("Discarding scan results for missing monitor", "monitor_id", monitor.ID)
		return
	case err != nil:
		s.logger.Error("Failed to re-fetch monitor, discarding scan results", "monitor_id", monitor.ID, "error", err)
		return
	case !current.Active:
		s.logger.Info("Discarding scan results for inactive monitor", "monitor_id", monitor.ID)
		return
	}

	alertsGenerated := 0
	var created *alertdomain.Alert
	if scanErr == nil && result.Draft != nil {
		alert, err := s.alerts.Create(s.ctx, *result.Draft)
		switch {
		case errors.Is(err, sharederrors.ErrDuplicateAlert):
			// Suppressed duplicate, schedule still advances.
		case err != nil:
			s.logger.Error("Failed to create alert", "monitor_id", monitor.ID, "error", err)
		default:
			alertsGenerated = 1
			created = alert
		}
	}
	if scanErr != nil {
		s.logger.Error("Scan failed after retries", "monitor_id", monitor.ID, "error", scanErr)
	}

	result.Record.AlertsGenerated = alertsGenerated
	if err := s.records.SaveRecord(s.ctx, &result.Record); err != nil {
		s.logger.Error("Failed to save scan record", "monitor_id", monitor.ID, "error", err)
	}
	if created != nil {
		s.deliver(current, created)
	}

	if err := s.monitors.AdvanceSchedule(s.ctx, monitor.ID, current.Frequency, result.Record.ScanTimestamp, alertsGenerated); err != nil {
		s.logger.Error("Failed to advance schedule", "monitor_id", monitor.ID, "error", err)
	}
}

func (s *Scheduler) attempt(monitor *monitordomain.Monitor) (engine.Result, error) {
	ctx := s.ctx
	if s.opts.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ScanTimeout)
		defer cancel()
	}
	return s.scanner.Scan(ctx, monitor)
}

// deliver pushes an immediate notification for high and critical alerts when
// the monitor opted in and a chat is configured.
func (s *Scheduler) deliver(monitor *monitordomain.Monitor, alert *alertdomain.Alert) {
	if s.notifier == nil || !monitor.NotificationSettings.ImmediateAlerts {
		return
	}
	if !alert.Severity.Meets(alertdomain.SeverityLevelHigh) {
		return
	}
	chatID := monitor.NotificationSettings.TelegramChatID
	if chatID == 0 {
		return
	}
	if err := s.notifier.Notify(s.ctx, alert, chatID); err != nil {
		s.logger.Error("Failed to deliver alert notification", "alert_id", alert.ID, "error", err)
		return
	}
	if err := s.alerts.MarkNotificationSent(s.ctx, alert.ID); err != nil {
		s.logger.Error("Failed to mark notification sent", "alert_id", alert.ID, "error", err)
	}
}

func (s *Scheduler) maintenanceLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runMaintenance()
		}
	}
}

// runMaintenance prunes expired alerts and logs a daily scan summary.
func (s *Scheduler) runMaintenance() {
	if deleted, err := s.alerts.PruneAll(s.ctx, s.opts.Retention); err != nil {
		s.logger.Error("Retention sweep failed", "error", err)
	} else if deleted > 0 {
		s.logger.Info("Retention sweep completed", "deleted", deleted)
	}

	summary, err := s.records.Summarize(s.ctx, time.Now().Add(-maintenanceInterval))
	if err != nil {
		s.logger.Error("Failed to summarize scans", "error", err)
		return
	}
	s.logger.Info("Daily scan summary",
		"total_scans", summary.TotalScans,
		"successful_scans", summary.SuccessfulScans,
		"total_cost", summary.TotalCost,
		"avg_duration_secs", summary.AvgDurationSecs)
}
