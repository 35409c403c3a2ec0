package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"rawdevelop/core"
	"rawdevelop/db"
	"rawdevelop/logging"
)

// runHistory lists renders stored in the history database.
func runHistory(a *app, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", db.DefaultListLimit, "maximum number of runs to list")
	path := fs.String("path", "", "only runs of this file")
	outcome := fs.String("outcome", "", "only runs with this outcome: ready, failed or cancelled")
	source := fs.String("source", "", "only runs from this source: server or cli")
	since := fs.Duration("since", 0, "only runs started within this long, e.g. 24h")
	asJSON := fs.Bool("json", false, "print runs as JSON")
	if code, done := parseFlags(fs, args); done {
		return code
	}
	if *limit < 1 {
		return usageError(fs, stderr, "-limit must be positive")
	}
	if a.cfg.DBPath == "" {
		printConfigError(stderr, core.ErrHistoryDisabled())
		return core.ExitCodeConfig
	}

	d, err := db.Open(a.cfg.DBPath)
	if err != nil {
		color.New(color.FgRed).Fprintf(stderr, "open render history: %v\n", err)
		return core.ExitCodeError
	}
	defer d.Close()

	f := db.RunFilter{Path: *path, Outcome: *outcome, Source: *source, Limit: *limit}
	if *since > 0 {
		f.Since = time.Now().Add(-*since)
	}
	ctx := context.Background()
	runs, err := d.ListRuns(ctx, f)
	if err != nil {
		color.New(color.FgRed).Fprintf(stderr, "%v\n", err)
		return core.ExitCodeError
	}

	if *asJSON {
		if runs == nil {
			runs = []db.RunRecord{}
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(runs); err != nil {
			fmt.Fprintln(stderr, err)
			return core.ExitCodeError
		}
		return core.ExitCodeSuccess
	}

	printRuns(stdout, runs)
	summary, err := d.Summary(ctx)
	if err != nil {
		color.New(color.FgRed).Fprintf(stderr, "%v\n", err)
		return core.ExitCodeError
	}
	printSummary(stdout, summary)
	return core.ExitCodeSuccess
}

func printRuns(w io.Writer, runs []db.RunRecord) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, "%-20s %-6s %-9s %-10s %8s  %s\n",
		"Started", "Source", "Outcome", "Size", "Took", "Path")
	for _, r := range runs {
		size := "-"
		if r.Width > 0 {
			size = fmt.Sprintf("%dx%d", r.Width, r.Height)
		}
		fmt.Fprintf(w, "%-20s %-6s ", r.StartedAt.Local().Format(time.DateTime), r.Source)
		outcomeColor(r.Outcome).Fprintf(w, "%-9s", r.Outcome)
		fmt.Fprintf(w, " %-10s %8s  %s\n", size, time.Duration(r.DurationMS)*time.Millisecond, r.Path)
		if r.Error != "" {
			color.New(color.FgHiBlack).Fprintf(w, "  %s\n", r.Error)
		}
	}
	color.New(color.FgHiBlack).Fprintf(w, "%d runs\n", len(runs))
}

func printSummary(w io.Writer, summary []db.OutcomeSummary) {
	if len(summary) == 0 {
		return
	}
	fmt.Fprintln(w)
	color.New(color.FgCyan, color.Bold).Fprintln(w, "All stored runs")
	for _, s := range summary {
		avg := time.Duration(s.AvgDurationMS * float64(time.Millisecond)).Round(time.Millisecond)
		fmt.Fprintf(w, "  %-10s %6d  avg %v\n", s.Outcome, s.Count, avg)
	}
}

func outcomeColor(outcome string) *color.Color {
	switch outcome {
	case logging.OutcomeReady:
		return color.New(color.FgGreen)
	case logging.OutcomeFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}
