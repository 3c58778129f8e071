package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ironsheep/meme-etl/internal/config"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and --help before any setup
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("meme-etl %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printUsage()
			return
		}
	}

	// Flags without a command belong to run
	command, args := "run", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("Warning: failed to read .env: %v", err)
	}
	if config.Debug() {
		log.Printf("meme-etl v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "run":
		err = runCommand(ctx, args)
	case "analyze":
		err = analyzeCommand(args)
	case "warehouse":
		err = warehouseCommand(ctx, args)
	case "serve":
		err = serveCommand(ctx, args)
	case "pipeline":
		err = pipelineCommand(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		printUsage()
		os.Exit(2)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("meme-etl - meme image ETL: OCR, histograms and labels into a processed table")
	fmt.Println()
	fmt.Println("Usage: meme-etl [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run          Process images and labels (default)")
	fmt.Println("               -test, -sample N, -images, -labels, -out, -format parquet|csv,")
	fmt.Println("               -join-key COLUMN, -item-timeout 2m, -lang eng, -tessdata DIR")
	fmt.Println("  analyze      Summarize processed data (-data-path, -output-path)")
	fmt.Println("  warehouse    Load processed data into Postgres (-data-path, -collection, -dsn)")
	fmt.Println("  serve        Serve the warehouse query API (-addr, -dsn)")
	fmt.Println("  pipeline     run + analyze on production data, then on the test dataset")
	fmt.Println("  version      Print version information")
	fmt.Println("  help         Print this help message")
	fmt.Println()
	fmt.Println("Environment variables (also read from ./.env):")
	fmt.Println("  MEME_ETL_LOG_LEVEL=debug    Enable debug logging")
	fmt.Println("  MEME_ETL_FORMAT             Default table format")
	fmt.Println("  MEME_ETL_ITEM_TIMEOUT       Default per-image timeout")
	fmt.Println("  MEME_ETL_LANG               Default OCR language")
	fmt.Println("  MEME_ETL_ADDR               Default API listen address")
	fmt.Println("  TESSDATA_PREFIX             Tesseract language data directory")
	fmt.Println("  WAREHOUSE_DSN               Postgres connection string")
}
