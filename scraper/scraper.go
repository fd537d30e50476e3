package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scryfall-haste/config"
	"github.com/aluiziolira/go-scryfall-haste/models"
	"github.com/aluiziolira/go-scryfall-haste/parser"
	"github.com/gocolly/colly/v2"
)

const outcomeCtxKey = "outcome"

// Scraper polls the card search API once per query key.
type Scraper struct {
	cfg       *config.Config
	base      *url.URL
	collector *colly.Collector
	Metrics   *Metrics

	handlersOnce sync.Once
}

type searchResponse struct {
	Object     string `json:"object"`
	TotalCards *int   `json:"total_cards"`
	HasMore    bool   `json:"has_more"`
	Data       []struct {
		Name     string `json:"name"`
		TypeLine string `json:"type_line"`
	} `json:"data"`
}

type queryOutcome struct {
	key     models.QueryKey
	start   time.Time
	row     models.StatRow
	err     *QueryError
	handled bool
}

// NewScraper builds a scraper configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	if cfg.Delay < config.MinQueryDelay {
		return nil, fmt.Errorf("query delay %s is below the %s floor", cfg.Delay, config.MinQueryDelay)
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	// One request at a time; the delay is slept after every request, failed or not.
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Scraper{
		cfg:       cfg,
		base:      parsed,
		collector: collector,
		Metrics:   NewMetrics(),
	}, nil
}

// WithTransport replaces the HTTP transport used for queries.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

// Collect queries every key in order and returns one row per distinct key.
// Failed queries produce zero rows and are reported in the summary; only
// context cancellation stops the run early.
func (s *Scraper) Collect(ctx context.Context, keys []models.QueryKey) (models.StatSet, *models.CollectSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.configureHandlers()

	stats := make(models.StatSet, len(keys))
	summary := &models.CollectSummary{
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			summary.EndTime = time.Now()
			return nil, summary, fmt.Errorf("collect stats: %w", err)
		}
		if _, done := stats[key]; done {
			slog.Debug("duplicate query key skipped", slog.String("key", string(key)))
			continue
		}

		row, qerr := s.query(key)
		stats[key] = row
		summary.QueryCount++

		if qerr != nil {
			summary.ErrorCount++
			summary.FailedKeys = append(summary.FailedKeys, key)
			label := errorTypeLabel(qerr)
			summary.ErrorsByType[label]++
			s.Metrics.IncError(label)
			s.Metrics.IncQuery("failed")
			slog.Warn("query failed, recording zero counts",
				slog.String("key", string(key)),
				slog.String("category", label),
				slog.Int("status", qerr.Status),
				slog.Any("error", qerr.Err),
			)
		} else {
			s.Metrics.IncQuery("ok")
			s.Metrics.AddCounts(row.CreatureCount, row.TotalCount)
		}

		if (i+1)%25 == 0 {
			slog.Debug("collect progress",
				slog.Int("queried", i+1),
				slog.Int("keys", len(keys)),
				slog.Int("errors", summary.ErrorCount),
			)
		}
	}

	summary.EndTime = time.Now()
	s.Metrics.SetFailedKeys(summary.ErrorCount)
	return stats, summary, nil
}

// SearchURL returns the search request for key.
func (s *Scraper) SearchURL(key models.QueryKey) string {
	u := *s.base
	u.Path = path.Join("/", u.Path, "cards", "search")

	keyword := s.cfg.Keyword
	if strings.ContainsAny(keyword, " \t") {
		keyword = `"` + keyword + `"`
	}
	q := url.Values{}
	q.Set("q", fmt.Sprintf("o:%s set:%s", keyword, key))
	q.Set("unique", s.cfg.Unique)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Scraper) query(key models.QueryKey) (models.StatRow, *QueryError) {
	outcome := &queryOutcome{key: key, row: models.StatRow{Key: key}}

	ctx := colly.NewContext()
	ctx.Put(outcomeCtxKey, outcome)
	header := http.Header{}
	header.Set("Accept", "application/json")

	err := s.collector.Request(http.MethodGet, s.SearchURL(key), nil, ctx, header)
	if outcome.err == nil && err != nil {
		outcome.err = classifyError(key, err, 0)
	}
	if outcome.err == nil && !outcome.handled {
		outcome.err = &QueryError{Key: key, Kind: KindOther, Err: fmt.Errorf("no response handled")}
	}
	if outcome.err != nil {
		return models.StatRow{Key: key}, outcome.err
	}
	return outcome.row, nil
}

func (s *Scraper) configureHandlers() {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			if o := outcomeFrom(r.Ctx); o != nil {
				o.start = time.Now()
			}
			slog.Debug("search query", slog.String("url", r.URL.String()))
		})

		s.collector.OnResponse(func(r *colly.Response) {
			o := outcomeFrom(r.Ctx)
			if o == nil {
				return
			}
			o.handled = true
			s.observe(o)

			row, err := decodeSearch(o.key, r.Body)
			if err != nil {
				o.err = &QueryError{Key: o.key, Kind: KindMalformed, Status: r.StatusCode, Err: err}
				return
			}
			o.row = row
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			statusCode := 0
			var o *queryOutcome
			if r != nil {
				statusCode = r.StatusCode
				o = outcomeFrom(r.Ctx)
			}
			if o == nil {
				slog.Error("request error without query context", slog.Any("error", err))
				return
			}
			o.handled = true
			s.observe(o)
			o.err = classifyError(o.key, err, statusCode)
		})
	})
}

func (s *Scraper) observe(o *queryOutcome) {
	if !o.start.IsZero() {
		s.Metrics.ObserveDuration(time.Since(o.start))
	}
}

func outcomeFrom(ctx *colly.Context) *queryOutcome {
	if ctx == nil {
		return nil
	}
	o, _ := ctx.GetAny(outcomeCtxKey).(*queryOutcome)
	return o
}

func decodeSearch(key models.QueryKey, body []byte) (models.StatRow, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.StatRow{}, fmt.Errorf("decode search response: %w", err)
	}
	if resp.Object == "error" {
		return models.StatRow{}, fmt.Errorf("search returned an error object")
	}
	if resp.TotalCards == nil {
		return models.StatRow{}, fmt.Errorf("search response missing total_cards")
	}
	if *resp.TotalCards < 0 {
		return models.StatRow{}, fmt.Errorf("search response has negative total_cards")
	}

	creatures := 0
	for _, card := range resp.Data {
		if parser.IsCreature(card.TypeLine) {
			creatures++
		}
	}
	if resp.HasMore {
		slog.Debug("creature count covers the first result page only",
			slog.String("key", string(key)),
			slog.Int("total_cards", *resp.TotalCards),
			slog.Int("page_cards", len(resp.Data)),
		)
	}

	return models.StatRow{
		Key:           key,
		CreatureCount: creatures,
		TotalCount:    *resp.TotalCards,
	}, nil
}
