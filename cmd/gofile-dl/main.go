package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/handiism/gofile-downloader/internal/app"
	"github.com/handiism/gofile-downloader/internal/config"
	"github.com/handiism/gofile-downloader/internal/download"
	"github.com/handiism/gofile-downloader/internal/task"
)

func main() {
	var (
		urlFlag         = flag.String("url", "", "GoFile link or content id to download")
		dirFlag         = flag.String("d", "", "Directory below the base directory")
		passwordFlag    = flag.String("p", "", "Content password")
		configFlag      = flag.String("c", "", "Path to config file")
		envFlag         = flag.String("env", ".env", "Path to .env file")
		baseDirFlag     = flag.String("base", "", "Base directory (overrides config)")
		throttleFlag    = flag.Int("throttle", -1, "Speed limit in KB/s, 0 for unlimited (default from config)")
		retriesFlag     = flag.Int("retries", -1, "Retries per file (default from config)")
		incrementalFlag = flag.Bool("incremental", false, "Skip files downloaded by earlier runs")
		patternFlag     = flag.String("pattern", "", "Comma-separated folder prefixes ignored when matching folders")
		verboseFlag     = flag.Bool("v", false, "Show verbose output")
	)

	flag.Parse()

	link := *urlFlag
	if link == "" && flag.NArg() > 0 {
		link = flag.Arg(0)
	}
	if link == "" {
		fmt.Println("GoFile Downloader - Download folders and files from GoFile")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  gofile-dl -url <URL> [options]")
		fmt.Println("  gofile-dl [options] <URL>")
		fmt.Println()
		fmt.Println("For interactive mode, use: gofile-tui")
		fmt.Println("For the web dashboard, use: gofile-web")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := app.LoadSettings(*configFlag, *envFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *baseDirFlag != "" {
		cfg.BaseDir = *baseDirFlag
	}

	a, err := app.New(cfg, os.Stderr, func(event download.ProgressEvent) {
		if event.Level == download.LevelVerbose && !*verboseFlag {
			return
		}

		prefix := ""
		switch event.Level {
		case download.LevelError:
			prefix = "❌ "
		case download.LevelWarning:
			prefix = "⚠️  "
		case download.LevelSuccess:
			prefix = "✅ "
		case download.LevelInfo:
			prefix = "ℹ️  "
		default:
			prefix = "   "
		}

		fmt.Println(prefix + event.Message)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	manager := a.Manager()
	req := manager.NewRequest()
	req.URL = link
	req.Password = *passwordFlag
	req.Directory = *dirFlag
	if *throttleFlag >= 0 {
		req.ThrottleKBs = *throttleFlag
	}
	if *retriesFlag >= 0 {
		req.Retries = *retriesFlag
	}
	if *incrementalFlag {
		req.Incremental = true
	}
	if *patternFlag != "" {
		req.FolderPatterns = config.SplitPatterns(*patternFlag)
	}

	fmt.Println("📥 GoFile Downloader")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	id, err := manager.Start(context.Background(), req)
	if err != nil {
		a.Stop()
		fmt.Fprintf(os.Stderr, "Error starting download: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, cancelling...")
		_ = manager.Cancel(id)
	}()

	manager.Wait()

	snap, err := manager.Task(id)
	a.Stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	os.Exit(report(snap))
}

// report prints the outcome of the task and returns the exit code.
func report(snap task.Snapshot) int {
	var done, skipped, failed int
	for _, f := range snap.Files {
		switch f.Status {
		case task.FileCompleted:
			done++
		case task.FileSkipped:
			skipped++
		case task.FileFailed:
			failed++
		}
	}

	switch snap.Status {
	case task.StatusCompleted:
		fmt.Printf("✨ Complete! Downloaded %d/%d files (%s) to %s\n",
			done, len(snap.Files), task.FormatBytes(snap.DoneBytes), snap.OutPath)
		if skipped > 0 {
			fmt.Printf("   %d files already downloaded\n", skipped)
		}
		if failed > 0 {
			fmt.Printf("   %d files failed\n", failed)
			return 2
		}
		return 0
	case task.StatusCancelled:
		fmt.Println("Download cancelled.")
		return 130
	default:
		fmt.Fprintf(os.Stderr, "Download failed: %s\n", snap.ErrorMessage)
		return 1
	}
}
