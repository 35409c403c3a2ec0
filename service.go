package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/kardianos/service"
	"go.uber.org/zap"

	"rawdevelop/core"
	"rawdevelop/shutdown"
)

// serviceStopGrace is added to the shutdown timeout when the service
// manager asks the program to stop.
const serviceStopGrace = 5 * time.Second

// program runs the render server under a system service manager.
type program struct {
	app    *app
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start is called by the service manager and must not block.
func (p *program) Start(s service.Service) error {
	l, err := net.Listen("tcp", p.app.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", p.app.cfg.Addr(), err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	m := shutdown.NewManager(p.app.logger,
		shutdown.WithTimeout(p.app.cfg.ShutdownTimeout),
		shutdown.WithParent(ctx),
	)
	go func() {
		defer close(p.done)
		p.err = serve(m, p.app, l)
		if p.err != nil {
			p.app.logger.Error("service stopped with error", zap.Error(p.err))
		}
	}()
	p.app.logger.Info("service started", zap.String("addr", l.Addr().String()))
	return nil
}

// Stop is called by the service manager. It waits for graceful shutdown.
func (p *program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case <-p.done:
		return p.err
	case <-time.After(p.app.cfg.ShutdownTimeout + serviceStopGrace):
		return errors.New("timeout waiting for service to stop")
	}
}

// serviceConfig describes the installed service. The service manager
// starts the binary with "service run" from the directory install ran in,
// so a .env file there is picked up.
func serviceConfig() *service.Config {
	wd, _ := os.Getwd()
	return &service.Config{
		Name:             "rawdevelop",
		DisplayName:      "rawdevelop render server",
		Description:      "Interactive RAW photo development server",
		Arguments:        []string{"service", "run"},
		WorkingDirectory: wd,
		Option: service.KeyValue{
			"StartType": "automatic",
			"Restart":   "on-failure",
		},
	}
}

func runService(a *app, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		printServiceUsage(stderr)
		return core.ExitCodeUsage
	}
	action := args[0]
	switch {
	case action == "help" || action == "-h" || action == "--help":
		printServiceUsage(stdout)
		return core.ExitCodeSuccess
	case action != "run" && action != "status" && !slices.Contains(service.ControlAction[:], action):
		color.New(color.FgRed).Fprintf(stderr, "unknown service action %q\n\n", action)
		printServiceUsage(stderr)
		return core.ExitCodeUsage
	}

	s, err := service.New(&program{app: a}, serviceConfig())
	if err != nil {
		color.New(color.FgRed).Fprintf(stderr, "failed to create service: %v\n", err)
		return core.ExitCodeError
	}

	switch action {
	case "run":
		err = s.Run()
	case "status":
		var st service.Status
		if st, err = s.Status(); err == nil {
			fmt.Fprintf(stdout, "Service is %s\n", statusText(st))
		}
	default:
		if err = service.Control(s, action); err == nil {
			color.New(color.FgGreen).Fprintf(stdout, "Service %s: ok\n", action)
		}
	}
	if err != nil {
		color.New(color.FgRed).Fprintf(stderr, "service %s failed: %v\n", action, err)
		return core.ExitCodeError
	}
	return core.ExitCodeSuccess
}

func statusText(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "in an unknown state"
	}
}

func printServiceUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: rawdevelop service <action>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Actions:")
	fmt.Fprintln(w, "  install    install the render server as a system service")
	fmt.Fprintln(w, "  uninstall  remove the system service")
	fmt.Fprintln(w, "  start      start the installed service")
	fmt.Fprintln(w, "  stop       stop the installed service")
	fmt.Fprintln(w, "  restart    restart the installed service")
	fmt.Fprintln(w, "  status     show whether the service is running")
	fmt.Fprintln(w, "  run        run under the service manager (used by the manager itself)")
}
