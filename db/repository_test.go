package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"rawdevelop/logging"
	"rawdevelop/params"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// testRun returns a ready run that started ago before now.
func testRun(id, path string, ago time.Duration) RunRecord {
	return RunRecord{
		RequestID:  id,
		Generation: 1,
		Path:       path,
		Outcome:    logging.OutcomeReady,
		Width:      2,
		Height:     2,
		StartedAt:  time.Now().Add(-ago).UTC().Truncate(time.Millisecond),
		DurationMS: 40,
	}
}

var ignoreGenerated = cmpopts.IgnoreFields(RunRecord{}, "ID", "CreatedAt")

func TestInsertRun_RoundTrip(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	ps := params.Defaults()
	ps.ExposureStops = 1.5
	in := testRun("req-1", "a.nef", time.Minute)
	in.Source = SourceCLI
	in.Params = &ps

	failed := testRun("req-2", "b.nef", 0)
	failed.Outcome = logging.OutcomeFailed
	failed.Stage = "unpack"
	failed.Error = "unpack: data corrupted"
	failed.Width, failed.Height = 0, 0

	for _, r := range []RunRecord{in, failed} {
		id, err := d.InsertRun(ctx, r)
		if err != nil {
			t.Fatalf("InsertRun() error: %v", err)
		}
		if id <= 0 {
			t.Errorf("InsertRun() id = %d", id)
		}
	}

	got, err := d.ListRuns(ctx, RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	failed.Source = SourceServer
	want := []RunRecord{failed, in}
	if diff := cmp.Diff(want, got, ignoreGenerated); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt was not populated")
	}
}

func TestListRuns_Filters(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	runs := []RunRecord{
		testRun("1", "a.nef", 3*time.Hour),
		testRun("2", "b.nef", 2*time.Hour),
		testRun("3", "a.nef", time.Hour),
	}
	runs[1].Outcome = logging.OutcomeCancelled
	runs[2].Source = SourceCLI
	if err := d.InsertRuns(ctx, runs); err != nil {
		t.Fatalf("InsertRuns() error: %v", err)
	}

	tests := []struct {
		name   string
		filter RunFilter
		want   []string
	}{
		{"all newest first", RunFilter{}, []string{"3", "2", "1"}},
		{"by path", RunFilter{Path: "a.nef"}, []string{"3", "1"}},
		{"by outcome", RunFilter{Outcome: logging.OutcomeCancelled}, []string{"2"}},
		{"by source", RunFilter{Source: SourceCLI}, []string{"3"}},
		{"since", RunFilter{Since: time.Now().Add(-150 * time.Minute)}, []string{"3", "2"}},
		{"limit", RunFilter{Limit: 1}, []string{"3"}},
		{"no match", RunFilter{Path: "c.nef"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.ListRuns(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListRuns() error: %v", err)
			}
			var ids []string
			for _, r := range got {
				ids = append(ids, r.RequestID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("request ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCountAndSummary(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	runs := []RunRecord{
		testRun("1", "a.nef", 0),
		testRun("2", "a.nef", 0),
		testRun("3", "a.nef", 0),
	}
	runs[1].DurationMS = 60
	runs[2].Outcome = logging.OutcomeFailed
	runs[2].DurationMS = 5
	if err := d.InsertRuns(ctx, runs); err != nil {
		t.Fatal(err)
	}

	n, err := d.CountRuns(ctx)
	if err != nil || n != 3 {
		t.Errorf("CountRuns() = %d, %v; want 3", n, err)
	}

	got, err := d.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}
	want := []OutcomeSummary{
		{Outcome: logging.OutcomeFailed, Count: 1, AvgDurationMS: 5},
		{Outcome: logging.OutcomeReady, Count: 2, AvgDurationMS: 50},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultListLimit},
		{-3, DefaultListLimit},
		{5, 5},
		{MaxListLimit + 1, MaxListLimit},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	for _, s := range []string{
		formatTime(want),
		want.Format(time.RFC3339Nano),
		"2024-05-01 12:30:00",
	} {
		if got := parseTime(s); !got.Equal(want) {
			t.Errorf("parseTime(%q) = %v, want %v", s, got, want)
		}
	}
	if !parseTime("yesterday").IsZero() {
		t.Error("parseTime of garbage is not zero")
	}
}

func TestDatabase_Closed(t *testing.T) {
	d := newTestDB(t)
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	ctx := context.Background()
	if _, err := d.InsertRun(ctx, testRun("x", "a.nef", 0)); !errors.Is(err, ErrClosed) {
		t.Errorf("InsertRun() after Close = %v, want ErrClosed", err)
	}
	if _, err := d.ListRuns(ctx, RunFilter{}); !errors.Is(err, ErrClosed) {
		t.Errorf("ListRuns() after Close = %v, want ErrClosed", err)
	}
	if err := d.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping() after Close = %v, want ErrClosed", err)
	}
}
