package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rawdevelop/core"
	"rawdevelop/logging"
	"rawdevelop/params"
	"rawdevelop/pipeline"
)

// runRender is the one-shot RAW to JPEG/PNG conversion.
func runRender(a *app, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "input RAW file (required)")
	out := fs.String("out", "", "output file, .jpg/.jpeg or .png (required)")
	quality := fs.Float64("q", a.cfg.ExportQuality, "JPEG quality in [0,1]")
	preset := fs.String("preset", a.cfg.PresetPath, "YAML preset layered over the defaults")
	var pf paramFlags
	pf.register(fs)

	if code, done := parseFlags(fs, args); done {
		return code
	}
	if *in == "" || *out == "" {
		return usageError(fs, stderr, "both -in and -out are required")
	}
	if *quality < 0 || *quality > 1 {
		return usageError(fs, stderr, fmt.Sprintf("-q %g must be between 0 and 1", *quality))
	}

	base := params.Defaults()
	if *preset != "" {
		ps, err := params.LoadPreset(*preset)
		if err != nil {
			printConfigError(stderr, core.ErrInvalidPreset(*preset, err))
			return core.ExitCodeConfig
		}
		base = ps
	}
	ps, err := pf.apply(fs, base)
	if err != nil {
		return usageError(fs, stderr, err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timer := logging.StartRender(uuid.NewString(), 0, *in)
	bm, err := a.pipeline.Render(ctx, *in, ps)
	if err != nil {
		if pipeline.IsCancelled(err) {
			a.recordRun(timer.Finish(logging.OutcomeCancelled, "", 0, 0), ps, err)
			fmt.Fprintln(stderr, "render cancelled")
			return core.ExitCodeSIGINT
		}
		a.recordRun(timer.Finish(logging.OutcomeFailed, stageOf(err), 0, 0), ps, err)
		reportFailure(stderr, "render failed", err)
		return core.ExitCodeRenderFailed
	}
	if err := pipeline.SaveAsEncoded(bm, *out, *quality); err != nil {
		a.recordRun(timer.Finish(logging.OutcomeFailed, stageExport, bm.Width, bm.Height), ps, err)
		reportFailure(stderr, "export failed", err)
		return core.ExitCodeRenderFailed
	}
	m := timer.Finish(logging.OutcomeReady, "", bm.Width, bm.Height)
	a.recordRun(m, ps, nil)

	var size int64
	if fi, err := os.Stat(*out); err == nil {
		size = fi.Size()
	}
	a.logger.Info("render written", logging.RenderFields(m), zap.String("out", *out))
	color.New(color.FgGreen).Fprint(stdout, "Wrote ")
	fmt.Fprintf(stdout, "%s (%dx%d, %s, %s) in %v\n",
		*out, bm.Width, bm.Height, core.FormatMegapixels(bm.Width, bm.Height),
		core.FormatBytes(size), m.Duration.Round(time.Millisecond))
	return core.ExitCodeSuccess
}

// stageExport labels a run that rendered but could not be written.
const stageExport = "export"

func stageOf(err error) string {
	var se *pipeline.StageError
	if errors.As(err, &se) {
		return string(se.Stage)
	}
	return ""
}

// parseFlags parses args into fs. done reports that the command should
// return code immediately: after -h, or on a malformed flag.
func parseFlags(fs *flag.FlagSet, args []string) (code int, done bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return core.ExitCodeSuccess, true
		}
		return core.ExitCodeUsage, true
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "unexpected arguments: %v\n", fs.Args())
		return core.ExitCodeUsage, true
	}
	return 0, false
}

func usageError(fs *flag.FlagSet, stderr io.Writer, msg string) int {
	color.New(color.FgRed).Fprintln(stderr, msg)
	fs.Usage()
	return core.ExitCodeUsage
}

func reportFailure(w io.Writer, what string, err error) {
	color.New(color.FgRed, color.Bold).Fprintf(w, "%s: ", what)
	fmt.Fprintln(w, err)
	var se *pipeline.StageError
	if errors.As(err, &se) {
		color.New(color.FgHiBlack).Fprintf(w, "(stage %s, decoder code %d)\n", se.Stage, int32(se.Code))
	}
}
