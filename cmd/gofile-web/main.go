package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/handiism/gofile-downloader/internal/app"
)

func main() {
	cfgFileName := flag.String("c", "", "Path to config file")
	envFileName := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	cfg, err := app.LoadSettings(*cfgFileName, *envFileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	a, err := app.New(cfg, os.Stderr, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	failed := make(chan error, 1)
	go func() {
		failed <- a.Serve()
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case <-c:
		fmt.Println("Received termination signal. Shutting down...")
	case err := <-failed:
		if err != nil {
			a.Stop()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	a.Stop()
	fmt.Println("done")
}
