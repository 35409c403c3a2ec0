package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"rawdevelop/core"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// command is one subcommand. Commands that need configuration receive a
// fully set up app; the rest get nil.
type command struct {
	name     string
	summary  string
	needsApp bool
	run      func(a *app, args []string, stdout, stderr io.Writer) int
}

var commands = []command{
	{"render", "convert a RAW file to JPEG or PNG", true, runRender},
	{"info", "print camera, image and color metadata", true, runInfo},
	{"cameras", "list cameras supported by the decoder", true, runCameras},
	{"history", "list renders stored in the history database", true, runHistory},
	{"serve", "run the interactive render server", true, runServe},
	{"service", "install or control the render server as a system service", true, runService},
	{"version", "print version information", false, runVersion},
}

// run dispatches args to a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return core.ExitCodeUsage
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "--help" || name == "-help" {
		printUsage(stdout)
		return core.ExitCodeSuccess
	}

	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		if !cmd.needsApp {
			return cmd.run(nil, args[1:], stdout, stderr)
		}
		a, code := setup(stderr)
		if code != core.ExitCodeSuccess {
			return code
		}
		defer a.close()
		return cmd.run(a, args[1:], stdout, stderr)
	}

	color.New(color.FgRed).Fprintf(stderr, "unknown command %q\n\n", name)
	printUsage(stderr)
	return core.ExitCodeUsage
}

func printUsage(w io.Writer) {
	color.New(color.FgCyan, color.Bold).Fprintln(w, "rawdevelop: interactive RAW photo development")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: rawdevelop <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'rawdevelop <command> -h' for command flags.")
	fmt.Fprintln(w, "Configuration is read from RAWDEV_* variables and an optional .env file.")
}

func runVersion(_ *app, _ []string, stdout, _ io.Writer) int {
	fmt.Fprintf(stdout, "rawdevelop %s\n", core.VersionInfo())
	return core.ExitCodeSuccess
}
