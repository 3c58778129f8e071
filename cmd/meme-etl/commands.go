package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ironsheep/meme-etl/internal/analysis"
	"github.com/ironsheep/meme-etl/internal/config"
	"github.com/ironsheep/meme-etl/internal/etl"
	"github.com/ironsheep/meme-etl/internal/ocr"
	"github.com/ironsheep/meme-etl/internal/server"
	"github.com/ironsheep/meme-etl/internal/table"
	"github.com/ironsheep/meme-etl/internal/warehouse"
)

func runCommand(ctx context.Context, args []string) error {
	cfg, err := config.ParseRun(args, os.Stderr)
	if err != nil {
		return err
	}
	_, err = runETL(ctx, cfg, log.Default())
	return err
}

// runETL executes extract, transform and load for one configuration.
func runETL(ctx context.Context, cfg *config.Run, logger *log.Logger) (*etl.LoadResult, error) {
	format, err := table.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	codec, _, err := table.ResolveFormat(format, logger)
	if err != nil {
		return nil, err
	}

	engine := ocr.NewTesseractEngine(ocr.TesseractOptions{
		Language:       cfg.Language,
		TessdataPrefix: cfg.TessdataPrefix,
	})
	if config.Debug() {
		info := engine.Info()
		logger.Printf("OCR backend %s %s (lang %s, available %v)", info.Backend, info.Version, info.Language, info.Available)
	}

	logger.Printf("Extracting from %s and %s", cfg.Images, cfg.Labels)
	paths, lbls, err := etl.Extract(cfg.Images, cfg.Labels)
	if err != nil {
		return nil, err
	}
	if cfg.Sample >= 0 {
		paths, lbls = etl.Sample(paths, lbls, cfg.Sample)
		logger.Printf("Sampling first %d images", cfg.Sample)
	}
	logger.Printf("Found %d images and %d label rows", len(paths), lbls.Len())

	transformer := &etl.Transformer{
		Extractor:   etl.NewFeatureExtractor(engine),
		ItemTimeout: cfg.ItemTimeout,
		JoinKey:     cfg.JoinKey,
		Logger:      logger,
	}
	start := time.Now()
	tbl, report, err := transformer.Transform(ctx, paths, lbls)
	if err != nil {
		return nil, err
	}
	logger.Printf("Processed %d of %d images in %s (%d failed)", report.Succeeded, report.Attempted, time.Since(start).Round(time.Millisecond), report.Failed())

	res, err := etl.Load(tbl, cfg.Output, etl.LoadOptions{Codec: codec, Logger: logger})
	if err != nil {
		return nil, err
	}
	logger.Printf("ETL complete: %s, %s", res.TablePath, res.ChartPath)
	return res, nil
}

func analyzeCommand(args []string) error {
	cfg, err := config.ParseAnalyze(args, os.Stderr)
	if err != nil {
		return err
	}
	_, err = analysis.Run(cfg.DataPath, cfg.OutputPath)
	return err
}

func warehouseCommand(ctx context.Context, args []string) error {
	cfg, err := config.ParseWarehouse(args, os.Stderr)
	if err != nil {
		return err
	}
	store, err := warehouse.Open(cfg.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := warehouse.Load(ctx, store, cfg.DataPath, cfg.Collection)
	var partial *warehouse.PartialWriteError
	if errors.As(err, &partial) {
		// Committed batches stay; the load is reported, not fatal.
		log.Printf("Warning: %v", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load data to warehouse: %w", err)
	}
	log.Printf("Loaded %d records into %s (load %s)", report.Inserted, report.Collection, report.LoadID)
	return nil
}

func serveCommand(ctx context.Context, args []string) error {
	cfg, err := config.ParseServe(args, os.Stderr)
	if err != nil {
		return err
	}
	store, err := warehouse.Open(cfg.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Query API listening on %s", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Printf("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// pipelineCommand runs the ETL and analysis on the production dataset, then
// on the test dataset. Only a failed production ETL is fatal.
func pipelineCommand(ctx context.Context, args []string) error {
	cfg, err := config.ParseRun(args, os.Stderr)
	if err != nil {
		return err
	}
	start := time.Now()

	if paths, err := etl.ListImages(cfg.Images); err != nil {
		log.Printf("Couldn't count images: %v", err)
	} else {
		log.Printf("Found %d images. Estimated processing time: %s", len(paths), estimateDuration(len(paths)))
	}

	log.Printf("Running ETL pipeline...")
	if _, err := runETL(ctx, cfg, log.Default()); err != nil {
		return fmt.Errorf("ETL pipeline failed: %w", err)
	}

	log.Printf("Analyzing production data...")
	if _, err := analysis.Run(cfg.Output, config.DefaultAnalysisDir); err != nil {
		log.Printf("Production data analysis failed: %v", err)
	}

	log.Printf("Creating and analyzing test data...")
	testCfg := *cfg
	testCfg.Paths = config.TestPaths
	testCfg.Test = true
	if _, err := runETL(ctx, &testCfg, log.Default()); err != nil {
		log.Printf("Test data creation failed: %v", err)
	} else if _, err := analysis.Run(testCfg.Output, config.TestAnalysisDir); err != nil {
		log.Printf("Test data analysis failed: %v", err)
	}

	elapsed := time.Since(start)
	log.Printf("Pipeline completed in %d minutes and %d seconds", int(elapsed.Minutes()), int(elapsed.Seconds())%60)
	log.Printf("Output locations: processed data %s, analysis results %s", cfg.Output, config.DefaultAnalysisDir)
	return nil
}

// estimateDuration formats the expected processing time of n images.
func estimateDuration(n int) string {
	total := int(float64(n) * config.EstimatedSecondsPerImage)
	hours, minutes, seconds := total/3600, total%3600/60, total%60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
