package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/feeds"
	"github.com/samber/oops"

	alertdomain "github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
	alertRepo "github.com/threatwatch-io/threatwatch/internal/modules/alert/repository"
	monitorRepo "github.com/threatwatch-io/threatwatch/internal/modules/monitor/repository"
)

const feedItemLimit = 50

// Service handles RSS feed generation for monitor alerts
type Service struct {
	monitorRepo monitorRepo.Repository
	alertRepo   alertRepo.Repository
}

// New creates a new feed service
func New(monitorRepo monitorRepo.Repository, alertRepo alertRepo.Repository) *Service {
	return &Service{
		monitorRepo: monitorRepo,
		alertRepo:   alertRepo,
	}
}

// GenerateFeed generates an RSS feed of a monitor's recent alerts.
func (s *Service) GenerateFeed(ctx context.Context, monitorID, userID, baseURL string) (*feeds.Feed, error) {
	monitor, err := s.monitorRepo.GetOwnedMonitor(ctx, monitorID, userID)
	if err != nil {
		return nil, oops.With("monitor_id", monitorID, "context", "monitor not found").Wrap(err)
	}

	alerts, err := s.alertRepo.ListUserAlerts(ctx, userID, alertRepo.ListFilter{
		MonitorID: &monitorID,
		Limit:     feedItemLimit,
	})
	if err != nil {
		return nil, oops.With("monitor_id", monitorID, "context", "failed to list alerts").Wrap(err)
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s - Threat Alerts", monitor.Term),
		Link:        &feeds.Link{Href: fmt.Sprintf("%s/rss/%s", baseURL, monitor.ID)},
		Description: fmt.Sprintf("Threat alerts for monitored topic: %s", monitor.Term),
		Created:     monitor.CreatedAt,
		Updated:     monitor.UpdatedAt,
	}

	var items []*feeds.Item
	for _, alert := range alerts {
		items = append(items, s.alertToFeedItem(alert, baseURL))
	}

	feed.Items = items
	return feed, nil
}

func (s *Service) alertToFeedItem(alert *alertdomain.Alert, baseURL string) *feeds.Item {
	var content strings.Builder
	fmt.Fprintf(&content, "<p><strong>Severity:</strong> %s (confidence %.0f%%)</p>",
		html.EscapeString(alert.Severity.String()), alert.ConfidenceScore*100)
	fmt.Fprintf(&content, "<p>%s</p>", html.EscapeString(alert.Summary))

	if len(alert.Sources) > 0 {
		content.WriteString("<p><strong>Sources:</strong></p><ul>")
		for _, src := range alert.Sources {
			fmt.Fprintf(&content, `<li><a href="%s">%s</a> (%s)</li>`,
				html.EscapeString(src.URL), html.EscapeString(src.Title), html.EscapeString(src.Domain))
		}
		content.WriteString("</ul>")
	}

	return &feeds.Item{
		Title:       fmt.Sprintf("[%s] %s", strings.ToUpper(alert.Severity.String()), alert.Title),
		Link:        &feeds.Link{Href: fmt.Sprintf("%s/api/alerts/%s", baseURL, alert.ID)},
		Description: truncate(alert.Summary, 300),
		Content:     content.String(),
		Created:     alert.CreatedAt,
		Id:          alert.ID,
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Back up to a rune boundary so multibyte text is never split.
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
