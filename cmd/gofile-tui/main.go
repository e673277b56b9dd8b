package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/handiism/gofile-downloader/internal/app"
	"github.com/handiism/gofile-downloader/internal/download"
	"github.com/handiism/gofile-downloader/internal/tui"
)

func main() {
	cfgFileName := flag.String("c", "", "Path to config file")
	envFileName := flag.String("env", ".env", "Path to .env file")
	logFileName := flag.String("log", "", "Write logs to this file")
	flag.Parse()

	cfg, err := app.LoadSettings(*cfgFileName, *envFileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs only go to a file.
	var logOut io.Writer = io.Discard
	if *logFileName != "" {
		f, err := os.OpenFile(*logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}

	events := make(chan download.ProgressEvent, 256)
	a, err := app.New(cfg, logOut, func(event download.ProgressEvent) {
		select {
		case events <- event:
		default:
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tui.Run(ctx, a.Manager(), events)
	a.Stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
