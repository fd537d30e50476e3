// Package reconcile merges per-key search counts into the release catalog.
//
// Merging happens in four steps. Family members are summed into the family's
// primary key, bonus keys are dropped, every catalog release is joined with the
// row for its query key, and the creature percentage is derived from the
// (possibly corrected) card total. Inputs are never modified.
package reconcile

import (
	"fmt"

	"github.com/aluiziolira/go-scryfall-haste/config"
	"github.com/aluiziolira/go-scryfall-haste/models"
)

// JoinError reports a catalog release with no counts for its query key.
type JoinError struct {
	Code string
	Key  models.QueryKey
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("reconcile: release %s has no counts for query key %q", e.Code, e.Key)
}

// ZeroTotalError reports a release whose card total cannot be divided by.
type ZeroTotalError struct {
	Code       string
	TotalCards int
}

func (e *ZeroTotalError) Error() string {
	return fmt.Sprintf("reconcile: release %s has total cards %d; add a correction", e.Code, e.TotalCards)
}

// Reconciler holds the release-level rules applied while merging.
type Reconciler struct {
	Families    []models.Family
	Corrections map[string]int // catalog code -> total cards
}

// New builds a reconciler from rules.
func New(rules *config.Rules) *Reconciler {
	return &Reconciler{
		Families:    rules.Families,
		Corrections: rules.TotalCorrections(),
	}
}

// Reconcile returns one row per catalog release, in catalog order.
func (r *Reconciler) Reconcile(catalog models.Catalog, stats models.StatSet) (models.FinalTable, error) {
	merged := r.Aggregate(stats)

	table := make(models.FinalTable, 0, len(catalog))
	for _, release := range catalog {
		row, ok := merged[release.Key]
		if !ok {
			return nil, &JoinError{Code: release.Code, Key: release.Key}
		}

		if total, ok := r.Corrections[release.Code]; ok {
			release.TotalCards = total
		}
		if release.TotalCards <= 0 {
			return nil, &ZeroTotalError{Code: release.Code, TotalCards: release.TotalCards}
		}

		table = append(table, models.FinalRow{
			Release:         release,
			CreatureCount:   row.CreatureCount,
			TotalCount:      row.TotalCount,
			CreaturePercent: Percent(row.CreatureCount, release.TotalCards),
		})
	}
	return table, nil
}

// Aggregate returns a copy of stats with each family summed into its primary
// key and every bonus key removed.
func (r *Reconciler) Aggregate(stats models.StatSet) models.StatSet {
	merged := stats.Clone()

	for _, fam := range r.Families {
		if _, ok := stats[fam.Primary]; !ok {
			continue
		}
		sum := models.StatRow{Key: fam.Primary}
		for _, key := range fam.Members() {
			row, ok := stats[key]
			if !ok {
				continue
			}
			sum.CreatureCount += row.CreatureCount
			sum.TotalCount += row.TotalCount
		}
		merged[fam.Primary] = sum
	}

	for _, fam := range r.Families {
		for _, key := range fam.Bonus {
			delete(merged, key)
		}
	}
	return merged
}

// Percent returns 100 * part / total.
func Percent(part, total int) float64 {
	return float64(part) / float64(total) * 100
}
