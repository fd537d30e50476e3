package render

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/go-scryfall-haste/models"
	"github.com/google/go-cmp/cmp"
)

func TestTickLabels(t *testing.T) {
	got := TickLabels([]string{"TSP", "PLC", "FUT"})
	want := []string{"       TSP", "PLC       ", "       FUT"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("TickLabels mismatch (-want +got):\n%s", diff)
	}
	if got := TickLabels(nil); len(got) != 0 {
		t.Fatalf("TickLabels(nil) = %v", got)
	}
}

func TestTicks(t *testing.T) {
	tests := []struct {
		name  string
		peak  float64
		floor int
		step  int
		want  []float64
	}{
		{name: "floor covers data", peak: 12, floor: 18, step: 3, want: []float64{0, 3, 6, 9, 12, 15, 18}},
		{name: "data above floor", peak: 19, floor: 18, step: 3, want: []float64{0, 3, 6, 9, 12, 15, 18, 21}},
		{name: "fractional percent", peak: 9.3, floor: 8, step: 2, want: []float64{0, 2, 4, 6, 8, 10}},
		{name: "zero data", peak: 0, floor: 8, step: 2, want: []float64{0, 2, 4, 6, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Ticks(tt.peak, tt.floor, tt.step)); diff != "" {
				t.Fatalf("Ticks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "haste.png")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed stale file: %v", err)
	}

	table := models.FinalTable{
		{Release: models.Release{Code: "TSP", ReleaseDate: time.Date(2006, 10, 6, 0, 0, 0, 0, time.UTC), TotalCards: 301}, CreatureCount: 8, CreaturePercent: 2.66},
		{Release: models.Release{Code: "PLC", ReleaseDate: time.Date(2007, 2, 2, 0, 0, 0, 0, time.UTC), TotalCards: 165}, CreatureCount: 0},
		{Release: models.Release{Code: "MOM", ReleaseDate: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), TotalCards: 296}, CreatureCount: 12, CreaturePercent: 4.05},
	}

	r := New(path, "haste")
	r.Width, r.Height = r.Width/4, r.Height/4
	if err := r.Render(table); err != nil {
		t.Fatalf("render: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read png: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("output is not a png (first bytes %q)", data[:min(8, len(data))])
	}
}

func TestRenderEmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.png")
	err := New(path, "haste").Render(nil)
	if !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("expected ErrEmptyTable, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("no file should be written for an empty table")
	}
}
