package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aluiziolira/go-scryfall-haste/models"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules lists the catalog irregularities the pipeline knows how to repair.
type Rules struct {
	Families    []models.Family    `yaml:"families"`
	Injections  []models.Injection `yaml:"injections"`
	Corrections map[string]int     `yaml:"corrections"`
}

// DefaultRules returns the embedded rules.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads rules from path, or the embedded rules when path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// ParseRules decodes and validates a YAML rules document.
func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

// Validate checks that families and injections are internally consistent.
func (r *Rules) Validate() error {
	owners := make(map[models.QueryKey]string)
	for _, fam := range r.Families {
		if fam.Prefix == "" {
			return fmt.Errorf("family %q: prefix cannot be empty", fam.Name)
		}
		if fam.Primary == "" {
			return fmt.Errorf("family %q: primary key cannot be empty", fam.Name)
		}
		if len(fam.Bonus) == 0 && len(fam.Satellites) == 0 {
			return fmt.Errorf("family %q: needs at least one satellite or bonus key", fam.Name)
		}
		for _, key := range fam.Members() {
			if !strings.HasPrefix(string(key), fam.Prefix) {
				return fmt.Errorf("family %q: key %q does not start with prefix %q", fam.Name, key, fam.Prefix)
			}
			if other, ok := owners[key]; ok {
				return fmt.Errorf("family %q: key %q already listed by family %q", fam.Name, key, other)
			}
			owners[key] = fam.Name
		}
	}

	for _, inj := range r.Injections {
		if strings.TrimSpace(inj.Name) == "" || strings.TrimSpace(inj.Code) == "" {
			return fmt.Errorf("injection needs a name and a code")
		}
		if _, err := ParseReleased(inj.Released); err != nil {
			return fmt.Errorf("injection %q: %w", inj.Code, err)
		}
		if inj.TotalCards < 0 {
			return fmt.Errorf("injection %q: total cards cannot be negative", inj.Code)
		}
	}

	for code, total := range r.Corrections {
		if total <= 0 {
			return fmt.Errorf("correction %q: total cards must be positive", code)
		}
	}
	return nil
}

// TotalCorrections merges injection totals with the explicit corrections table.
// Explicit corrections win.
func (r *Rules) TotalCorrections() map[string]int {
	out := make(map[string]int, len(r.Injections)+len(r.Corrections))
	for _, inj := range r.Injections {
		if inj.TotalCards > 0 {
			out[inj.Code] = inj.TotalCards
		}
	}
	for code, total := range r.Corrections {
		out[code] = total
	}
	return out
}

// ParseReleased parses a "2006-01" or "2006-01-02" release value into a UTC date.
func ParseReleased(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("released %q must look like 2006-01 or 2006-01-02", value)
}
