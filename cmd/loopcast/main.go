package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dashrelay/loopcast/cmd/loopcast/app"
	"github.com/dashrelay/loopcast/internal"
	"github.com/dashrelay/loopcast/pkg/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	cfg, err := app.LoadConfig(os.Args, cwd)
	if err != nil {
		if strings.Contains(err.Error(), "help requested") {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err.Error())
		return 1
	}

	if err := logging.InitSlog(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %s\n", err.Error())
		return 1
	}
	log := slog.Default()

	fmt.Printf("Starting loopcast version: %s\n", internal.GetVersion())
	log.Info("loopcast starting", "mpdFile", cfg.MpdFile, "destination", cfg.Destination, "muxType", cfg.MuxType)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stopSignal
		log.Info("received stop signal")
		cancel()
	}()

	err = app.Run(ctx, cfg, log)
	exitCode := app.ExitCode(err)
	if err != nil && exitCode != 0 {
		log.Error("loopcast stopped with error", "error", err)
	} else {
		log.Info("loopcast stopped")
	}
	return exitCode
}
