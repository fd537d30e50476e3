// Package pipeline runs the catalog, collection, merge and output stages in order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scryfall-haste/models"
)

// ErrEmptyCatalog is returned when the catalog yields no releases.
var ErrEmptyCatalog = errors.New("pipeline: catalog is empty")

// OutputWriter defines the interface for table output.
type OutputWriter interface {
	Write(rows models.FinalTable) error
	Close() error
	Validate() error
}

// CatalogLoader produces the ordered catalog and the keys to query.
type CatalogLoader interface {
	Load() (models.Catalog, []models.QueryKey, error)
}

// StatsCollector queries counts for each key.
type StatsCollector interface {
	Collect(ctx context.Context, keys []models.QueryKey) (models.StatSet, *models.CollectSummary, error)
}

// Merger joins counts into the catalog.
type Merger interface {
	Reconcile(catalog models.Catalog, stats models.StatSet) (models.FinalTable, error)
}

// Renderer turns the final table into an image.
type Renderer interface {
	Render(table models.FinalTable) error
}

// Pipeline runs each stage once, feeding each result to the next stage.
type Pipeline struct {
	loader    CatalogLoader
	collector StatsCollector
	merger    Merger

	renderer  Renderer
	imageFile string
	writer    OutputWriter
	tableFile string
}

// Option configures optional stages.
type Option func(*Pipeline)

// WithRenderer renders the table to filename.
func WithRenderer(r Renderer, filename string) Option {
	return func(p *Pipeline) {
		p.renderer = r
		p.imageFile = filename
	}
}

// WithWriter exports the table through w. The caller closes w.
func WithWriter(w OutputWriter, filename string) Option {
	return func(p *Pipeline) {
		p.writer = w
		p.tableFile = filename
	}
}

// NewPipeline wires the three required stages.
func NewPipeline(loader CatalogLoader, collector StatsCollector, merger Merger, opts ...Option) *Pipeline {
	p := &Pipeline{
		loader:    loader,
		collector: collector,
		merger:    merger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the stages sequentially. Any stage error ends the run.
func (p *Pipeline) Run(ctx context.Context) (*models.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	result := &models.RunResult{StartTime: time.Now()}

	catalog, keys, err := p.loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if len(catalog) == 0 {
		return nil, ErrEmptyCatalog
	}
	result.Releases = len(catalog)
	result.QueryKeys = len(keys)
	slog.Info("catalog loaded",
		slog.Int("releases", len(catalog)),
		slog.Int("query_keys", len(keys)),
	)

	stats, summary, err := p.collector.Collect(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	result.Collect = summary
	slog.Info("counts collected",
		slog.Int("queries", summary.QueryCount),
		slog.Int("errors", summary.ErrorCount),
		slog.Duration("took", summary.EndTime.Sub(summary.StartTime)),
	)

	table, err := p.merger.Reconcile(catalog, stats)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	result.Rows = len(table)

	if p.writer != nil {
		if err := p.writer.Write(table); err != nil {
			return nil, fmt.Errorf("write table: %w", err)
		}
		if err := p.writer.Validate(); err != nil {
			return nil, fmt.Errorf("validate table output: %w", err)
		}
		result.TableFile = p.tableFile
	}

	if p.renderer != nil {
		if err := p.renderer.Render(table); err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		result.ImageFile = p.imageFile
	}

	result.EndTime = time.Now()
	return result, nil
}
