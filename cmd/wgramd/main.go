package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/wgram/internal/config"
	"github.com/matheus3301/wgram/internal/daemon"
	"github.com/matheus3301/wgram/internal/session"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	backendFlag := flag.String("backend", "", "backend: loopback or whatsapp (overrides config)")
	logLevelFlag := flag.String("log-level", "", "log level (overrides config)")
	flag.Parse()

	sessionName, cfg := session.ResolveWith(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *backendFlag != "" {
		cfg.Backend = *backendFlag
	}
	if *logLevelFlag != "" {
		cfg.LogLevel = *logLevelFlag
	}
	switch cfg.Backend {
	case config.BackendLoopback, config.BackendWhatsApp:
	default:
		fmt.Fprintf(os.Stderr, "error: unknown backend %q\n", cfg.Backend)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{SessionName: sessionName, Config: cfg}),
	)

	app.Run()
}
