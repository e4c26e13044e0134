package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dpfair/internal/config"
	"dpfair/internal/metrics"
	"dpfair/internal/trainer"
)

func main() {
	cfgPath := flag.String("params", "configs/synthetic.yaml", "Path to YAML params")
	name := flag.String("name", "", "Run name used for the metrics directory and the run folder")

	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "-name is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	folder := filepath.Join(cfg.SaveDir, fmt.Sprintf("%s_%s", *name, time.Now().Format("Jan.02_15.04.05")))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		log.Fatalf("create run folder: %v", err)
	}
	logFile, err := os.Create(filepath.Join(folder, "log.txt"))
	if err != nil {
		log.Fatalf("create log file: %v", err)
	}
	defer logFile.Close()
	logger := log.New(io.MultiWriter(os.Stderr, logFile), "", log.LstdFlags)

	sink, err := metrics.NewCSVSink(filepath.Join(cfg.RunsDir, *name))
	if err != nil {
		logger.Fatalf("open metrics sink: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := trainer.NewSession(ctx, cfg, folder, logger, sink)
	if err != nil {
		sink.Close()
		logger.Fatalf("set up run: %v", err)
	}

	runErr := trainer.Run(ctx, session)
	if err := session.Close(); err != nil {
		logger.Printf("close metrics sink: %v", err)
	}
	if runErr != nil {
		logger.Fatalf("training failed: %v", runErr)
	}
}
