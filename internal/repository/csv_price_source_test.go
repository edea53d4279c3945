package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestCSVLoadMixedDateFormats(t *testing.T) {
	// "Apr 22, 2020" appears both quoted (one field) and unquoted (split
	// across two fields by the embedded comma).
	path := writeCSV(t, "Date,Price\n20-May-87,18.63\nApr 22, 2020,9.12\n\"Apr 23, 2020\",9.31\n2022-03-08,127.98\n")

	src := NewCSVPriceSource(path, nil)
	points, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(points))
	}
	want := time.Date(1987, 5, 20, 0, 0, 0, 0, time.UTC)
	if !points[0].Date.Equal(want) {
		t.Fatalf("expected first date %v, got %v", want, points[0].Date)
	}
	if points[1].Price != 9.12 || points[2].Price != 9.31 {
		t.Fatalf("comma-date prices wrong: %v, %v", points[1].Price, points[2].Price)
	}
	if points[3].Price != 127.98 {
		t.Fatalf("unexpected last price %v", points[3].Price)
	}
}

func TestCSVLoadSortsAscending(t *testing.T) {
	path := writeCSV(t, "Date,Price\n2022-03-08,120\n2020-01-02,60\n2021-06-15,70\n")

	src := NewCSVPriceSource(path, nil)
	points, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for i := 1; i < len(points); i++ {
		if !points[i-1].Date.Before(points[i].Date) {
			t.Fatalf("points not sorted at %d", i)
		}
	}
}

func TestCSVLoadDedupeKeepsLast(t *testing.T) {
	path := writeCSV(t, "Date,Price\n2020-01-02,60\n2020-01-02,61\n")

	src := NewCSVPriceSource(path, nil)
	points, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Price != 61 {
		t.Fatalf("expected last duplicate to win, got %v", points[0].Price)
	}
}

func TestCSVLoadDropsBadRows(t *testing.T) {
	path := writeCSV(t, "Date,Price\nnot-a-date,50\n2020-01-02,-3\n2020-01-03,0\n2020-01-06,64\n")

	src := NewCSVPriceSource(path, nil)
	points, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 usable point, got %d", len(points))
	}
}

func TestCSVLoadEmptyFileErrors(t *testing.T) {
	path := writeCSV(t, "Date,Price\n")

	src := NewCSVPriceSource(path, nil)
	if _, err := src.Load(context.Background()); err == nil {
		t.Fatalf("expected error for empty file")
	}
}
