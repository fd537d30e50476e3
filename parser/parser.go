// Package parser normalizes raw catalog fields and search results.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scryfall-haste/models"
	"github.com/araddon/dateparse"
)

// QueryKeyLength is the length of the set codes the search index recognizes.
const QueryKeyLength = 3

// ValidateRelease ensures a catalog row carries the required fields.
func ValidateRelease(r *models.Release) error {
	if r == nil {
		return fmt.Errorf("release is nil")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("release missing name")
	}
	if len(strings.TrimSpace(r.Code)) < QueryKeyLength {
		return fmt.Errorf("release %s: code %q shorter than %d characters", r.Name, r.Code, QueryKeyLength)
	}
	if r.TotalCards < 0 {
		return fmt.Errorf("release %s: negative total cards", r.Name)
	}
	return nil
}

// NormalizeCode trims surrounding whitespace from a set code.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

// QueryKey truncates a catalog code to the form used by the search index.
// Codes shorter than QueryKeyLength are returned unchanged.
func QueryKey(code string) models.QueryKey {
	code = NormalizeCode(code)
	if len(code) > QueryKeyLength {
		code = code[:QueryKeyLength]
	}
	return models.QueryKey(code)
}

// ParseReleaseDate parses a catalog date in any common layout and
// returns midnight UTC of that calendar day.
func ParseReleaseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty release date")
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse release date %q: %w", raw, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ParseTotalCards parses the card count column; blank means unknown (0).
func ParseTotalCards(raw string) (int, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return 0, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int(f)) && f >= 0 {
		return int(f), nil
	}
	return 0, fmt.Errorf("invalid total cards %q", raw)
}

// IsCreature reports whether a card type line names a creature.
func IsCreature(typeLine string) bool {
	return strings.Contains(strings.ToLower(typeLine), "creature")
}
