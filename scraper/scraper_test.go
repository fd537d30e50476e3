package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scryfall-haste/config"
	"github.com/aluiziolira/go-scryfall-haste/models"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testBaseURL = "http://api.test"

func newTestScraper(t *testing.T, bySet map[string]httpmock.Responder) (*Scraper, *httpmock.MockTransport) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = testBaseURL

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/cards/search", func(req *http.Request) (*http.Response, error) {
		q := req.URL.Query().Get("q")
		set := q[strings.LastIndex(q, "set:")+len("set:"):]
		if responder, ok := bySet[set]; ok {
			return responder(req)
		}
		return httpmock.NewStringResponse(http.StatusNotFound, `{"object":"error","code":"not_found"}`), nil
	})
	s.WithTransport(transport)
	return s, transport
}

func searchResponder(total int, typeLines ...string) httpmock.Responder {
	data := make([]map[string]string, 0, len(typeLines))
	for i, tl := range typeLines {
		data = append(data, map[string]string{"name": fmt.Sprintf("Card %d", i), "type_line": tl})
	}
	body, _ := json.Marshal(map[string]any{
		"object":      "list",
		"total_cards": total,
		"has_more":    false,
		"data":        data,
	})
	resp := httpmock.NewBytesResponse(http.StatusOK, body)
	resp.Header.Set("Content-Type", "application/json")
	return httpmock.ResponderFromResponse(resp)
}

func TestCollectCountsCreatures(t *testing.T) {
	s, _ := newTestScraper(t, map[string]httpmock.Responder{
		"TSP": searchResponder(3, "Creature — Sliver", "Instant", "Legendary Creature — Human Warrior"),
		"MOM": searchResponder(2, "Creature — Phyrexian", "Battle — Siege"),
	})

	stats, summary, err := s.Collect(context.Background(), []models.QueryKey{"TSP", "MOM"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if got, want := stats["TSP"], (models.StatRow{Key: "TSP", CreatureCount: 2, TotalCount: 3}); got != want {
		t.Fatalf("TSP row = %+v, want %+v", got, want)
	}
	if got, want := stats["MOM"], (models.StatRow{Key: "MOM", CreatureCount: 1, TotalCount: 2}); got != want {
		t.Fatalf("MOM row = %+v, want %+v", got, want)
	}
	if summary.QueryCount != 2 || summary.ErrorCount != 0 {
		t.Fatalf("summary = %+v, want 2 queries and no errors", summary)
	}
	if got := testutil.ToFloat64(s.Metrics.CreaturesTotal); got != 3 {
		t.Fatalf("creatures metric = %v, want 3", got)
	}
	if got := testutil.ToFloat64(s.Metrics.QueriesTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("ok queries metric = %v, want 2", got)
	}
}

func TestCollectDegradesFailedQueryToZero(t *testing.T) {
	s, _ := newTestScraper(t, map[string]httpmock.Responder{
		"TSP": searchResponder(1, "Creature — Goblin"),
		"XYZ": httpmock.NewStringResponder(http.StatusInternalServerError, "boom"),
		"PLC": searchResponder(2, "Creature — Elemental", "Creature — Beast"),
	})

	stats, summary, err := s.Collect(context.Background(), []models.QueryKey{"TSP", "XYZ", "PLC"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if got, want := stats["XYZ"], (models.StatRow{Key: "XYZ"}); got != want {
		t.Fatalf("XYZ row = %+v, want %+v", got, want)
	}
	if got := stats["PLC"].CreatureCount; got != 2 {
		t.Fatalf("PLC creatures = %d, want 2; run should continue past a failure", got)
	}
	if len(stats) != 3 {
		t.Fatalf("rows = %d, want 3", len(stats))
	}
	if len(summary.FailedKeys) != 1 || summary.FailedKeys[0] != "XYZ" {
		t.Fatalf("failed keys = %v, want [XYZ]", summary.FailedKeys)
	}
	if summary.ErrorsByType["server"] != 1 {
		t.Fatalf("errors by type = %v, want one server error", summary.ErrorsByType)
	}
	if got := testutil.ToFloat64(s.Metrics.LastRunFailures); got != 1 {
		t.Fatalf("failed keys gauge = %v, want 1", got)
	}
}

func TestCollectErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		expected  string
	}{
		{name: "rate limited", responder: httpmock.NewStringResponder(http.StatusTooManyRequests, ""), expected: "rate_limited"},
		{name: "forbidden", responder: httpmock.NewStringResponder(http.StatusForbidden, ""), expected: "forbidden"},
		{name: "no matches", responder: httpmock.NewStringResponder(http.StatusNotFound, `{"object":"error"}`), expected: "not_found"},
		{name: "malformed body", responder: httpmock.NewStringResponder(http.StatusOK, "<html>"), expected: "malformed"},
		{name: "missing total", responder: httpmock.NewStringResponder(http.StatusOK, `{"object":"list","data":[]}`), expected: "malformed"},
		{
			name:      "connection refused",
			responder: httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}),
			expected:  "connection",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestScraper(t, map[string]httpmock.Responder{"ABC": tt.responder})

			stats, summary, err := s.Collect(context.Background(), []models.QueryKey{"ABC"})
			if err != nil {
				t.Fatalf("collect: %v", err)
			}
			if got := summary.ErrorsByType[tt.expected]; got != 1 {
				t.Fatalf("errors by type = %v, want one %q", summary.ErrorsByType, tt.expected)
			}
			if got, want := stats["ABC"], (models.StatRow{Key: "ABC"}); got != want {
				t.Fatalf("row = %+v, want %+v", got, want)
			}
		})
	}
}

func TestCollectWaitsBetweenQueries(t *testing.T) {
	s, _ := newTestScraper(t, map[string]httpmock.Responder{
		"AAA": searchResponder(0),
		"BBB": httpmock.NewStringResponder(http.StatusInternalServerError, ""),
		"CCC": searchResponder(0),
	})

	start := time.Now()
	if _, _, err := s.Collect(context.Background(), []models.QueryKey{"AAA", "BBB", "CCC"}); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if elapsed, floor := time.Since(start), 3*config.MinQueryDelay; elapsed < floor {
		t.Fatalf("three queries took %v, want at least %v", elapsed, floor)
	}
}

func TestCollectSkipsDuplicateKeys(t *testing.T) {
	s, transport := newTestScraper(t, map[string]httpmock.Responder{
		"TSP": searchResponder(1, "Creature — Sliver"),
	})

	stats, summary, err := s.Collect(context.Background(), []models.QueryKey{"TSP", "TSP"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got := transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("requests = %d, want 1", got)
	}
	if len(stats) != 1 || summary.QueryCount != 1 {
		t.Fatalf("rows = %d queries = %d, want 1/1", len(stats), summary.QueryCount)
	}
}

func TestCollectStopsOnCancelledContext(t *testing.T) {
	s, transport := newTestScraper(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Collect(ctx, []models.QueryKey{"TSP"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := transport.GetTotalCallCount(); got != 0 {
		t.Fatalf("requests = %d, want 0", got)
	}
}

func TestSearchURL(t *testing.T) {
	cfg := config.DefaultConfig()
	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	if got, want := s.SearchURL("TSP"), "https://api.scryfall.com/cards/search?q=o%3Ahaste+set%3ATSP&unique=cards"; got != want {
		t.Fatalf("SearchURL = %q, want %q", got, want)
	}

	cfg.Keyword = "first strike"
	if got, want := s.SearchURL("MOM"), "https://api.scryfall.com/cards/search?q=o%3A%22first+strike%22+set%3AMOM&unique=cards"; got != want {
		t.Fatalf("SearchURL = %q, want %q", got, want)
	}
}

func TestNewScraperRejectsShortDelay(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Delay = 10 * time.Millisecond
	if _, err := NewScraper(cfg); err == nil {
		t.Fatalf("expected error for delay below floor")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: errors.New("Not Found"), statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server", err: nil, statusCode: http.StatusBadGateway, expected: "server"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if qe := classifyError("TSP", tt.err, tt.statusCode); qe != nil {
				err = qe
			}
			if got := errorTypeLabel(err); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}
