// Package catalog reads the set catalog and derives the search keys for it.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/aluiziolira/go-scryfall-haste/config"
	"github.com/aluiziolira/go-scryfall-haste/models"
	"github.com/aluiziolira/go-scryfall-haste/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Catalog column headers.
const (
	ColumnSet         = "Set"
	ColumnCode        = "Set code"
	ColumnReleaseDate = "Release date"
	ColumnTotalCards  = "Total Cards"
)

var requiredColumns = []string{ColumnSet, ColumnCode, ColumnReleaseDate, ColumnTotalCards}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("catalog: missing required column")

// DateError reports a release date that could not be parsed.
type DateError struct {
	Line int
	Code string
	Raw  string
	Err  error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("catalog line %d (%s): bad release date %q: %v", e.Line, e.Code, e.Raw, e.Err)
}

func (e *DateError) Unwrap() error {
	return e.Err
}

// RowError reports any other malformed catalog row.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("catalog line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// CollisionError reports two codes that truncate to the same query key.
type CollisionError struct {
	Key    models.QueryKey
	First  string
	Second string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("catalog: codes %q and %q both map to query key %q", e.First, e.Second, e.Key)
}

// Loader builds the catalog and its query keys.
type Loader struct {
	Path          string
	Families      []models.Family
	Injections    []models.Injection
	DedupeMaxSize int
}

// NewLoader builds a loader from the pipeline configuration and rules.
func NewLoader(cfg *config.Config, rules *config.Rules) *Loader {
	return &Loader{
		Path:          cfg.CatalogFile,
		Families:      rules.Families,
		Injections:    rules.Injections,
		DedupeMaxSize: cfg.DedupeMaxSize,
	}
}

// Load reads the catalog file at l.Path.
func (l *Loader) Load() (models.Catalog, []models.QueryKey, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return l.Read(f)
}

// Read builds the catalog from CSV data.
func (l *Loader) Read(r io.Reader) (models.Catalog, []models.QueryKey, error) {
	releases, err := readReleases(r)
	if err != nil {
		return nil, nil, err
	}
	sortByDate(releases)

	releases, err = l.inject(releases)
	if err != nil {
		return nil, nil, err
	}

	keys, err := l.deriveKeys(releases)
	if err != nil {
		return nil, nil, err
	}
	return models.Catalog(releases), keys, nil
}

func readReleases(r io.Reader) ([]models.Release, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty catalog", ErrMissingColumn)
		}
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}
	// Fields beyond the known columns vary per row in hand-edited exports.
	reader.FieldsPerRecord = -1

	var releases []models.Release
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			return nil, &RowError{Line: line, Err: err}
		}
		line, _ := reader.FieldPos(0)
		release, err := parseRecord(record, index, line)
		if err != nil {
			return nil, err
		}
		releases = append(releases, release)
	}
	return releases, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		index[strings.ToLower(name)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[strings.ToLower(col)]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
	}
	return index, nil
}

func parseRecord(record []string, index map[string]int, line int) (models.Release, error) {
	field := func(col string) string {
		i := index[strings.ToLower(col)]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	code := parser.NormalizeCode(field(ColumnCode))
	date, err := parser.ParseReleaseDate(field(ColumnReleaseDate))
	if err != nil {
		return models.Release{}, &DateError{Line: line, Code: code, Raw: field(ColumnReleaseDate), Err: err}
	}
	total, err := parser.ParseTotalCards(field(ColumnTotalCards))
	if err != nil {
		return models.Release{}, &RowError{Line: line, Err: fmt.Errorf("%s: %w", code, err)}
	}

	release := models.Release{
		Name:        field(ColumnSet),
		Code:        code,
		ReleaseDate: date,
		TotalCards:  total,
	}
	if err := parser.ValidateRelease(&release); err != nil {
		return models.Release{}, &RowError{Line: line, Err: err}
	}
	return release, nil
}

func sortByDate(releases []models.Release) {
	sort.SliceStable(releases, func(i, j int) bool {
		return releases[i].ReleaseDate.Before(releases[j].ReleaseDate)
	})
}

func (l *Loader) inject(releases []models.Release) ([]models.Release, error) {
	if len(l.Injections) == 0 {
		return releases, nil
	}

	present := make(map[string]struct{}, len(releases))
	for _, r := range releases {
		present[r.Code] = struct{}{}
	}

	out := make([]models.Release, len(releases), len(releases)+len(l.Injections))
	copy(out, releases)
	for _, inj := range l.Injections {
		if _, ok := present[inj.Code]; ok {
			slog.Warn("injected release already in catalog, keeping catalog row",
				slog.String("code", inj.Code),
			)
			continue
		}
		date, err := config.ParseReleased(inj.Released)
		if err != nil {
			return nil, fmt.Errorf("inject %s: %w", inj.Code, err)
		}
		out = append(out, models.Release{
			Name:        inj.Name,
			Code:        inj.Code,
			ReleaseDate: date,
			Injected:    true,
		})
		present[inj.Code] = struct{}{}
	}
	sortByDate(out)
	return out, nil
}

func (l *Loader) deriveKeys(releases []models.Release) ([]models.QueryKey, error) {
	need := len(releases)
	for _, fam := range l.Families {
		need += len(fam.Members())
	}
	size := l.DedupeMaxSize
	if size < need {
		size = need
	}
	seen, err := lru.New[models.QueryKey, string](size)
	if err != nil {
		return nil, fmt.Errorf("create key set: %w", err)
	}

	keys := make([]models.QueryKey, 0, len(releases)+1)
	for i := range releases {
		key := parser.QueryKey(releases[i].Code)
		if prev, ok := seen.Get(key); ok {
			return nil, &CollisionError{Key: key, First: prev, Second: releases[i].Code}
		}
		seen.Add(key, releases[i].Code)
		releases[i].Key = key
		keys = append(keys, key)
	}

	for _, fam := range l.Families {
		for _, key := range fam.Satellites {
			if seen.Contains(key) {
				continue
			}
			seen.Add(key, fam.Name)
			keys = append(keys, key)
		}
	}
	for _, fam := range l.Families {
		for _, key := range fam.Bonus {
			if prev, ok := seen.Get(key); ok {
				return nil, &CollisionError{Key: key, First: prev, Second: fam.Name + " bonus"}
			}
			seen.Add(key, fam.Name)
			keys = append(keys, key)
		}
	}
	return keys, nil
}
