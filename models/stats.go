package models

import "time"

// StatRow holds the counts returned for one query key.
type StatRow struct {
	Key           QueryKey `json:"key"`
	CreatureCount int      `json:"creature_count"`
	TotalCount    int      `json:"total_count"`
}

// StatSet maps each query key to its counts.
type StatSet map[QueryKey]StatRow

// Clone returns a shallow copy.
func (s StatSet) Clone() StatSet {
	out := make(StatSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// FinalRow is a catalog release joined with its counts.
type FinalRow struct {
	Release
	CreatureCount   int     `csv:"creature_count" json:"creature_count"`
	TotalCount      int     `csv:"total_count" json:"total_count"`
	CreaturePercent float64 `csv:"creature_percent" json:"creature_percent"`
}

// FinalTable is ordered like the catalog it was built from.
type FinalTable []FinalRow

// CollectSummary holds the bookkeeping of one collection run.
type CollectSummary struct {
	StartTime    time.Time
	EndTime      time.Time
	QueryCount   int
	ErrorCount   int
	FailedKeys   []QueryKey
	ErrorsByType map[string]int
}

// RunResult holds the overall result of a pipeline run.
type RunResult struct {
	Collect   *CollectSummary
	Releases  int
	QueryKeys int
	Rows      int
	ImageFile string
	TableFile string
	StartTime time.Time
	EndTime   time.Time
}
