// Package engine runs a single monitor scan end to end: query construction,
// article search, relevance filtering, threat analysis and alert drafting.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/threatwatch-io/threatwatch/internal/cost"
	"github.com/threatwatch-io/threatwatch/internal/infrastructure/analyzer"
	"github.com/threatwatch-io/threatwatch/internal/infrastructure/search"
	alertdomain "github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
	alertservice "github.com/threatwatch-io/threatwatch/internal/modules/alert/service"
	monitordomain "github.com/threatwatch-io/threatwatch/internal/modules/monitor/domain"
	scandomain "github.com/threatwatch-io/threatwatch/internal/modules/scan/domain"
)

const (
	searchWindowHours = 24
	maxSearchResults  = 10
	maxQueryKeywords  = 3
	maxQueryExcluded  = 3
	minSnippetLength  = 50
	maxAlertSources   = 10
)

// Result is the outcome of one scan attempt. Draft is nil when the scan
// produced no alert, either because nothing relevant was found or because the
// assessed severity fell below the monitor's threshold.
type Result struct {
	Draft  *alertservice.Draft
	Record scandomain.ScanRecord
}

// Engine executes scans against injected search and analysis clients.
type Engine struct {
	search   search.Client
	analyzer analyzer.Client
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a scan engine.
func New(searchClient search.Client, analyzerClient analyzer.Client, logger *slog.Logger) *Engine {
	return &Engine{
		search:   searchClient,
		analyzer: analyzerClient,
		logger:   logger,
		now:      time.Now,
	}
}

// Scan runs one attempt for the given monitor. The returned record is always
// populated, including on failure, so every attempt leaves an audit trail with
// its accumulated costs. A non-nil error means the attempt failed and may be
// retried per the caller's policy.
func (e *Engine) Scan(ctx context.Context, monitor *monitordomain.Monitor) (Result, error) {
	started := e.now()
	query := BuildQuery(monitor)

	record := scandomain.ScanRecord{
		ID:            uuid.NewString(),
		MonitorID:     monitor.ID,
		ScanTimestamp: started,
		Metadata: scandomain.ScanMetadata{
			Query:     query,
			Timeframe: fmt.Sprintf("%dh", searchWindowHours),
		},
	}
	finish := func(success bool) {
		record.ScanDuration = e.now().Sub(started)
		record.Success = success
	}

	articles, err := e.search.Search(ctx, query, searchWindowHours, maxSearchResults)
	if err != nil {
		record.Errors = append(record.Errors, fmt.Sprintf("search: %v", err))
		finish(false)
		return Result{Record: record}, err
	}
	record.APICosts.SearchQueries = 1
	record.APICosts.TotalCost = cost.PriceSearch(1)
	record.ArticlesProcessed = len(articles)

	relevant := FilterArticles(articles, monitor.ExcludeKeywords)

	e.logger.Debug("Search completed",
		"monitor_id", monitor.ID,
		"query", query,
		"total", len(articles),
		"relevant", len(relevant))

	// No relevant articles is a successful quiet scan, not a failure. The
	// analyzer is never consulted for an empty batch.
	if len(relevant) == 0 {
		finish(true)
		return Result{Record: record}, nil
	}

	assessment, usage, err := e.analyzer.Assess(ctx, monitor.Term, relevant)
	if err != nil {
		record.Errors = append(record.Errors, fmt.Sprintf("analysis: %v", err))
		finish(false)
		return Result{Record: record}, err
	}
	record.APICosts.InputTokens = usage.InputTokens
	record.APICosts.OutputTokens = usage.OutputTokens
	record.APICosts.TotalTokens = usage.InputTokens + usage.OutputTokens
	record.APICosts.TotalCost = record.APICosts.TotalCost.
		Add(cost.PriceAnalysis(e.analyzer.Model(), usage.InputTokens, usage.OutputTokens))

	if !assessment.Severity.Meets(monitor.SeverityThreshold) {
		e.logger.Info("Assessment below threshold",
			"monitor_id", monitor.ID,
			"severity", assessment.Severity,
			"threshold", monitor.SeverityThreshold)
		finish(true)
		return Result{Record: record}, nil
	}

	draft := buildDraft(monitor, assessment, relevant)
	finish(true)
	return Result{Draft: draft, Record: record}, nil
}

// BuildQuery assembles the search query from the monitor's term, at most
// three keywords as an OR group and at most three exclusions.
func BuildQuery(monitor *monitordomain.Monitor) string {
	var b strings.Builder
	b.WriteString(monitor.Term)

	if keywords := nonEmpty(monitor.Keywords, maxQueryKeywords); len(keywords) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(keywords, " OR "))
		b.WriteString(")")
	}
	for _, kw := range nonEmpty(monitor.ExcludeKeywords, maxQueryExcluded) {
		b.WriteString(" -")
		b.WriteString(kw)
	}
	return b.String()
}

func nonEmpty(values []string, max int) []string {
	trimmed := lo.FilterMap(values, func(v string, _ int) (string, bool) {
		v = strings.TrimSpace(v)
		return v, v != ""
	})
	if len(trimmed) > max {
		trimmed = trimmed[:max]
	}
	return trimmed
}

// FilterArticles drops duplicate URLs, thin snippets and articles whose title
// or snippet contains an excluded keyword (case-insensitive).
func FilterArticles(articles []scandomain.Article, excludeKeywords []string) []scandomain.Article {
	seen := make(map[string]struct{}, len(articles))
	excluded := lo.Map(excludeKeywords, func(kw string, _ int) string {
		return strings.ToLower(strings.TrimSpace(kw))
	})

	var out []scandomain.Article
	for _, a := range articles {
		if _, dup := seen[a.URL]; dup {
			continue
		}
		seen[a.URL] = struct{}{}

		if len(a.Snippet) < minSnippetLength {
			continue
		}

		haystack := strings.ToLower(a.Title + " " + a.Snippet)
		hit := lo.SomeBy(excluded, func(kw string) bool {
			return kw != "" && strings.Contains(haystack, kw)
		})
		if hit {
			continue
		}
		out = append(out, a)
	}
	return out
}

func buildDraft(monitor *monitordomain.Monitor, assessment analyzer.Assessment, articles []scandomain.Article) *alertservice.Draft {
	sources := lo.Map(articles, func(a scandomain.Article, _ int) alertdomain.AlertSource {
		return alertdomain.AlertSource{
			Title:     a.Title,
			URL:       a.URL,
			Domain:    a.Domain,
			Published: a.PublishedAt,
			Snippet:   a.Snippet,
		}
	})
	if len(sources) > maxAlertSources {
		sources = sources[:maxAlertSources]
	}

	summary := assessment.Summary
	if len(assessment.KeyThreats) > 0 {
		summary += "\n\nKey threats: " + strings.Join(assessment.KeyThreats, ", ")
	}
	if assessment.Recommendations != "" {
		summary += "\n\nRecommendations: " + assessment.Recommendations
	}

	return &alertservice.Draft{
		MonitorID:       monitor.ID,
		UserID:          monitor.UserID,
		Title:           assessment.Title,
		Summary:         summary,
		Severity:        assessment.Severity,
		ConfidenceScore: assessment.Confidence,
		Sources:         sources,
		ThreatIndicators: alertdomain.ThreatIndicators{
			AttackVectors:     assessment.AttackVectors,
			AffectedSectors:   assessment.AffectedSectors,
			GeographicalScope: assessment.GeographicalScope,
			ThreatActors:      assessment.ThreatActors,
		},
	}
}
