package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"rawdevelop/core"
	"rawdevelop/pipeline"
)

// runInfo prints a file's metadata without decoding pixels.
func runInfo(a *app, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "input RAW file (required)")
	asJSON := fs.Bool("json", false, "print metadata as JSON")
	if code, done := parseFlags(fs, args); done {
		return code
	}
	if *in == "" {
		return usageError(fs, stderr, "-in is required")
	}

	md, err := a.pipeline.ReadMetadata(context.Background(), *in)
	if err != nil {
		reportFailure(stderr, "metadata read failed", err)
		return core.ExitCodeRenderFailed
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(md); err != nil {
			fmt.Fprintln(stderr, err)
			return core.ExitCodeError
		}
		return core.ExitCodeSuccess
	}
	printMetadata(stdout, *in, md)
	return core.ExitCodeSuccess
}

func printMetadata(w io.Writer, path string, md *pipeline.Metadata) {
	header := color.New(color.FgCyan, color.Bold)
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %-14s %s\n", label, value)
		}
	}

	header.Fprintln(w, path)
	fmt.Fprintln(w)

	c := md.Camera
	header.Fprintln(w, "Camera")
	row("Make", c.Make)
	row("Model", c.Model)
	row("Software", c.Software)
	if c.ISO > 0 {
		row("ISO", fmt.Sprintf("%g", c.ISO))
	}
	row("Shutter", formatShutter(c.Shutter))
	if c.Aperture > 0 {
		row("Aperture", fmt.Sprintf("f/%.1f", c.Aperture))
	}
	if c.FocalLength > 0 {
		row("Focal length", fmt.Sprintf("%g mm", c.FocalLength))
	}
	if !c.Timestamp.IsZero() {
		row("Taken", c.Timestamp.Format(time.RFC3339))
	}
	fmt.Fprintln(w)

	im := md.Image
	header.Fprintln(w, "Image")
	row("Size", fmt.Sprintf("%dx%d (%s)", im.Width, im.Height, core.FormatMegapixels(im.Width, im.Height)))
	row("Raw size", fmt.Sprintf("%dx%d", im.RawWidth, im.RawHeight))
	row("Margins", fmt.Sprintf("top %d, left %d", im.TopMargin, im.LeftMargin))
	row("Bit depth", fmt.Sprintf("%d", im.BitDepth))
	if im.Colors > 0 {
		row("Colors", fmt.Sprintf("%d", im.Colors))
	}
	fmt.Fprintln(w)

	m := md.Color.CameraMultipliers
	header.Fprintln(w, "Color")
	row("As-shot WB", fmt.Sprintf("R %.3f  G %.3f  B %.3f  G2 %.3f", m[0], m[1], m[2], m[3]))
}

// formatShutter renders exposure time the way cameras display it.
func formatShutter(sec float64) string {
	switch {
	case sec <= 0:
		return ""
	case sec < 1:
		return fmt.Sprintf("1/%.0f s", 1/sec)
	default:
		return fmt.Sprintf("%g s", sec)
	}
}

// runCameras lists the decoder's supported cameras.
func runCameras(a *app, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cameras", flag.ContinueOnError)
	fs.SetOutput(stderr)
	filter := fs.String("filter", "", "only list cameras containing this text (case-insensitive)")
	if code, done := parseFlags(fs, args); done {
		return code
	}

	color.New(color.FgCyan, color.Bold).Fprintf(stdout, "Decoder %s\n", a.decoder.Version())
	needle := strings.ToLower(*filter)
	n := 0
	for _, cam := range a.decoder.CameraList() {
		if needle != "" && !strings.Contains(strings.ToLower(cam), needle) {
			continue
		}
		fmt.Fprintln(stdout, cam)
		n++
	}
	color.New(color.FgHiBlack).Fprintf(stdout, "%d cameras\n", n)
	return core.ExitCodeSuccess
}
