// Package models defines data structures shared by the pipeline stages.
package models

import "time"

// QueryKey is the identifier passed to the card search index for one set.
type QueryKey string

// Release is one catalog entry.
type Release struct {
	Name        string    `csv:"set" json:"set"`
	Code        string    `csv:"set_code" json:"set_code"`
	Key         QueryKey  `csv:"query_key" json:"query_key"`
	ReleaseDate time.Time `csv:"release_date" json:"release_date"`
	TotalCards  int       `csv:"total_cards" json:"total_cards"`
	Injected    bool      `csv:"-" json:"injected,omitempty"`
}

// Catalog is ordered by release date, ties keeping insertion order.
type Catalog []Release

// Codes returns the catalog codes in order.
func (c Catalog) Codes() []string {
	out := make([]string, len(c))
	for i, r := range c {
		out[i] = r.Code
	}
	return out
}

// Injection describes a release missing from the source catalog.
type Injection struct {
	Name       string `yaml:"name"`
	Code       string `yaml:"code"`
	Released   string `yaml:"released"` // 2006-01 or 2006-01-02
	TotalCards int    `yaml:"total_cards"`
}

// Family groups the query keys the search index uses for one logical release.
type Family struct {
	Name       string     `yaml:"name"`
	Prefix     string     `yaml:"prefix"`
	Primary    QueryKey   `yaml:"primary"`
	Satellites []QueryKey `yaml:"satellites"`
	Bonus      []QueryKey `yaml:"bonus"`
}

// Members returns primary, satellites and bonus keys in that order.
func (f Family) Members() []QueryKey {
	out := make([]QueryKey, 0, 1+len(f.Satellites)+len(f.Bonus))
	out = append(out, f.Primary)
	out = append(out, f.Satellites...)
	out = append(out, f.Bonus...)
	return out
}

// IsBonus reports whether key is one of the family's bonus keys.
func (f Family) IsBonus(key QueryKey) bool {
	for _, b := range f.Bonus {
		if b == key {
			return true
		}
	}
	return false
}
