package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/threatwatch-io/threatwatch/internal/infrastructure/analyzer"
	alertdomain "github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
	monitordomain "github.com/threatwatch-io/threatwatch/internal/modules/monitor/domain"
	scandomain "github.com/threatwatch-io/threatwatch/internal/modules/scan/domain"
)

type fakeSearch struct {
	articles []scandomain.Article
	err      error
	queries  []string
}

func (f *fakeSearch) Search(_ context.Context, query string, _, _ int) ([]scandomain.Article, error) {
	f.queries = append(f.queries, query)
	return f.articles, f.err
}

type fakeAnalyzer struct {
	assessment analyzer.Assessment
	usage      analyzer.Usage
	err        error
	calls      int
	gotCount   int
}

func (f *fakeAnalyzer) Assess(_ context.Context, _ string, articles []scandomain.Article) (analyzer.Assessment, analyzer.Usage, error) {
	f.calls++
	f.gotCount = len(articles)
	return f.assessment, f.usage, f.err
}

func (f *fakeAnalyzer) Model() string { return "gpt-4o" }

func testMonitor() *monitordomain.Monitor {
	return &monitordomain.Monitor{
		ID:                "mon-1",
		UserID:            "user-1",
		Term:              "ransomware",
		Keywords:          []string{"hospital", "healthcare", "clinic", "extra"},
		ExcludeKeywords:   []string{"game", "movie"},
		Frequency:         monitordomain.MonitorFrequencyDaily,
		SeverityThreshold: alertdomain.SeverityLevelMedium,
		Active:            true,
	}
}

func goodArticle(url string) scandomain.Article {
	return scandomain.Article{
		Title:   "Ransomware actors breach regional hospital systems",
		URL:     url,
		Domain:  "example.com",
		Snippet: strings.Repeat("Detailed report about the ransomware incident. ", 3),
	}
}

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	got := BuildQuery(testMonitor())
	want := "ransomware (hospital OR healthcare OR clinic) -game -movie"
	if got != want {
		t.Errorf("BuildQuery() = %q, want %q", got, want)
	}
}

func TestBuildQueryBareTerm(t *testing.T) {
	t.Parallel()

	m := testMonitor()
	m.Keywords = nil
	m.ExcludeKeywords = []string{"  "}
	if got := BuildQuery(m); got != "ransomware" {
		t.Errorf("BuildQuery() = %q, want bare term", got)
	}
}

func TestFilterArticles(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", minSnippetLength)
	articles := []scandomain.Article{
		{Title: "keep", URL: "https://a.example/1", Snippet: long},
		{Title: "dup", URL: "https://a.example/1", Snippet: long},
		{Title: "thin", URL: "https://a.example/2", Snippet: "too short"},
		{Title: "New GAME announced", URL: "https://a.example/3", Snippet: long},
		{Title: "ok", URL: "https://a.example/4", Snippet: long + " about a movie release"},
	}

	got := FilterArticles(articles, []string{"game", "movie"})
	if len(got) != 1 || got[0].Title != "keep" {
		t.Fatalf("FilterArticles() = %+v, want only the first article", got)
	}
}

func TestScanProducesAlertDraft(t *testing.T) {
	t.Parallel()

	searchClient := &fakeSearch{articles: []scandomain.Article{
		goodArticle("https://a.example/1"),
		goodArticle("https://a.example/2"),
		{Title: "thin", URL: "https://a.example/3", Snippet: "too short"},
	}}
	analyzerClient := &fakeAnalyzer{
		assessment: analyzer.Assessment{
			Severity:      alertdomain.SeverityLevelHigh,
			Confidence:    0.9,
			Title:         "Hospital ransomware wave",
			Summary:       "Coordinated attacks on healthcare.",
			KeyThreats:    []string{"ransomware"},
			AttackVectors: []string{"phishing"},
		},
		usage: analyzer.Usage{InputTokens: 1000, OutputTokens: 200},
	}

	e := New(searchClient, analyzerClient, slog.New(slog.DiscardHandler))
	res, err := e.Scan(context.Background(), testMonitor())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if res.Draft == nil {
		t.Fatal("expected an alert draft")
	}
	if res.Draft.Title != "Hospital ransomware wave" {
		t.Errorf("draft title = %q", res.Draft.Title)
	}
	if len(res.Draft.Sources) != 2 {
		t.Errorf("draft sources = %d, want 2", len(res.Draft.Sources))
	}
	if !res.Record.Success {
		t.Error("record should be marked successful")
	}
	if res.Record.ArticlesProcessed != 3 {
		t.Errorf("articles processed = %d, want the pre-filter count 3", res.Record.ArticlesProcessed)
	}
	// $5.00/1000 searches + $2.50/1M input + $10.00/1M output
	wantCost := decimal.RequireFromString("0.0095")
	if !res.Record.APICosts.TotalCost.Equal(wantCost) {
		t.Errorf("total cost = %s, want %s", res.Record.APICosts.TotalCost, wantCost)
	}
}

func TestScanNoRelevantArticlesSkipsAnalysis(t *testing.T) {
	t.Parallel()

	searchClient := &fakeSearch{articles: []scandomain.Article{{Title: "thin", URL: "https://a.example/1", Snippet: "short"}}}
	analyzerClient := &fakeAnalyzer{}

	e := New(searchClient, analyzerClient, slog.New(slog.DiscardHandler))
	res, err := e.Scan(context.Background(), testMonitor())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if res.Draft != nil {
		t.Error("quiet scan must not draft an alert")
	}
	if analyzerClient.calls != 0 {
		t.Error("analyzer must not be called for an empty batch")
	}
	if !res.Record.Success {
		t.Error("quiet scan is a success")
	}
	if res.Record.ArticlesProcessed != 1 {
		t.Errorf("articles processed = %d, want 1 even when nothing is relevant", res.Record.ArticlesProcessed)
	}
	if res.Record.APICosts.SearchQueries != 1 {
		t.Errorf("search queries = %d, want 1", res.Record.APICosts.SearchQueries)
	}
}

func TestScanBelowThresholdProducesNoDraft(t *testing.T) {
	t.Parallel()

	searchClient := &fakeSearch{articles: []scandomain.Article{goodArticle("https://a.example/1")}}
	analyzerClient := &fakeAnalyzer{
		assessment: analyzer.Assessment{Severity: alertdomain.SeverityLevelLow, Confidence: 0.4, Title: "t", Summary: "s"},
		usage:      analyzer.Usage{InputTokens: 500, OutputTokens: 100},
	}

	e := New(searchClient, analyzerClient, slog.New(slog.DiscardHandler))
	res, err := e.Scan(context.Background(), testMonitor())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if res.Draft != nil {
		t.Error("below-threshold assessment must not draft an alert")
	}
	if !res.Record.Success {
		t.Error("below-threshold scan is still successful")
	}
	if res.Record.APICosts.TotalTokens != 600 {
		t.Errorf("total tokens = %d, want 600", res.Record.APICosts.TotalTokens)
	}
}

func TestScanSearchFailure(t *testing.T) {
	t.Parallel()

	searchClient := &fakeSearch{err: errors.New("connection refused")}
	e := New(searchClient, &fakeAnalyzer{}, slog.New(slog.DiscardHandler))

	res, err := e.Scan(context.Background(), testMonitor())
	if err == nil {
		t.Fatal("expected error when search fails")
	}
	if res.Record.Success {
		t.Error("failed scan must not be marked successful")
	}
	if len(res.Record.Errors) != 1 {
		t.Errorf("record errors = %v, want one entry", res.Record.Errors)
	}
	if !res.Record.APICosts.TotalCost.IsZero() {
		t.Errorf("failed search must not accrue cost, got %s", res.Record.APICosts.TotalCost)
	}
}

func TestScanCapsSourcesAtTen(t *testing.T) {
	t.Parallel()

	var articles []scandomain.Article
	for i := 0; i < 12; i++ {
		articles = append(articles, goodArticle("https://a.example/"+strings.Repeat("x", i+1)))
	}
	searchClient := &fakeSearch{articles: articles}
	analyzerClient := &fakeAnalyzer{
		assessment: analyzer.Assessment{Severity: alertdomain.SeverityLevelCritical, Confidence: 1, Title: "t", Summary: "s"},
	}

	e := New(searchClient, analyzerClient, slog.New(slog.DiscardHandler))
	res, err := e.Scan(context.Background(), testMonitor())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if res.Draft == nil {
		t.Fatal("expected a draft")
	}
	if len(res.Draft.Sources) != maxAlertSources {
		t.Errorf("sources = %d, want %d", len(res.Draft.Sources), maxAlertSources)
	}
	if analyzerClient.gotCount != 12 {
		t.Errorf("analyzer received %d articles, want all 12 before its own cap", analyzerClient.gotCount)
	}
}
