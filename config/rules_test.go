package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scryfall-haste/models"
)

func TestDefaultRules(t *testing.T) {
	rules, err := DefaultRules()
	if err != nil {
		t.Fatalf("default rules: %v", err)
	}
	if len(rules.Families) != 1 {
		t.Fatalf("families = %d, want 1", len(rules.Families))
	}
	fam := rules.Families[0]
	if fam.Primary != "TSP" || len(fam.Bonus) != 1 || fam.Bonus[0] != "TSB" {
		t.Fatalf("unexpected family %+v", fam)
	}
	if got := rules.TotalCorrections()["MOM"]; got != 296 {
		t.Fatalf("MOM correction = %d, want 296", got)
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	doc := `
families:
  - name: Test Family
    prefix: AB
    primary: ABC
    satellites: [ABD, ABE]
    bonus: [ABX]
injections:
  - name: Missing Set
    code: MIS
    released: 2020-02-14
corrections:
  ABC: 300
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	members := rules.Families[0].Members()
	want := []models.QueryKey{"ABC", "ABD", "ABE", "ABX"}
	if len(members) != len(want) {
		t.Fatalf("members = %v, want %v", members, want)
	}
	for i := range want {
		if members[i] != want[i] {
			t.Fatalf("members = %v, want %v", members, want)
		}
	}
	corrections := rules.TotalCorrections()
	if corrections["ABC"] != 300 {
		t.Fatalf("ABC correction = %d, want 300", corrections["ABC"])
	}
	if _, ok := corrections["MIS"]; ok {
		t.Fatalf("injection without total should not produce a correction")
	}
}

func TestRulesValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "member outside prefix",
			doc:     "families:\n  - {name: F, prefix: TS, primary: TSP, bonus: [XSB]}\n",
			wantErr: "does not start with prefix",
		},
		{
			name:    "family without extra keys",
			doc:     "families:\n  - {name: F, prefix: TS, primary: TSP}\n",
			wantErr: "at least one",
		},
		{
			name:    "key claimed twice",
			doc:     "families:\n  - {name: F, prefix: TS, primary: TSP, bonus: [TSB]}\n  - {name: G, prefix: TS, primary: TSR, bonus: [TSB]}\n",
			wantErr: "already listed",
		},
		{
			name:    "bad release month",
			doc:     "injections:\n  - {name: M, code: MOM, released: April 2023}\n",
			wantErr: "released",
		},
		{
			name:    "zero correction",
			doc:     "corrections: {MOM: 0}\n",
			wantErr: "correction",
		},
		{
			name:    "unknown field",
			doc:     "families: []\nextras: 1\n",
			wantErr: "decode rules",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRules([]byte(tt.doc)); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseReleased(t *testing.T) {
	got, err := ParseReleased("2023-04")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if want := time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("released = %s, want %s", got, want)
	}
	if _, err := ParseReleased("4-2023"); err == nil {
		t.Fatalf("expected error for unsupported layout")
	}
}
