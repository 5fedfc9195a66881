package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/apvscan/apvscan/internal/classify"
	"github.com/apvscan/apvscan/internal/config"
	"github.com/apvscan/apvscan/internal/logger"
	"github.com/apvscan/apvscan/internal/ocr"
	"github.com/apvscan/apvscan/internal/pipeline"
	"github.com/apvscan/apvscan/internal/raster"
	"github.com/apvscan/apvscan/internal/report"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "apvscan: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "path to YAML config file")
		weightsPath = flag.String("weights", "", "path to model weights (overrides config)")
		classesPath = flag.String("classes", "", "path to class list JSON (overrides config)")
		outDir      = flag.String("out", "", "output directory (overrides config)")
		workers     = flag.Int("workers", 0, "concurrent page workers (overrides config)")
		saveCrops   = flag.Bool("save-crops", false, "write detected sign crops as PNG files")
		showVersion = flag.Bool("version", false, "print version information")
	)
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("apvscan %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return nil
	}

	if flag.NArg() != 1 {
		usage()
		return fmt.Errorf("expected exactly one PDF argument, got %d", flag.NArg())
	}
	pdfPath := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *weightsPath != "" {
		cfg.Model.WeightsPath = *weightsPath
	}
	if *classesPath != "" {
		cfg.Model.ClassesPath = *classesPath
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}
	if *saveCrops {
		cfg.Output.SaveCrops = true
	}
	if cfg.Model.WeightsPath == "" || cfg.Model.ClassesPath == "" {
		return fmt.Errorf("model weights and classes are required (use -weights/-classes or the config file)")
	}

	log, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return scan(ctx, cfg, pdfPath, log)
}

func scan(ctx context.Context, cfg config.Config, pdfPath string, log *zap.Logger) error {
	artifact, err := classify.LoadArtifact(cfg.Model.WeightsPath, cfg.Model.ClassesPath)
	if err != nil {
		return err
	}
	log.Info("model loaded",
		zap.String("weights", cfg.Model.WeightsPath),
		zap.Int("classes", artifact.NumClasses()))

	doc, err := raster.Open(pdfPath, float64(cfg.Raster.DPI))
	if err != nil {
		return err
	}
	defer doc.Close()
	log.Info("document opened",
		zap.String("path", doc.Path()),
		zap.Int("pages", doc.PageCount()),
		zap.Int("dpi", cfg.Raster.DPI))

	opts := pipeline.Options{
		MaxTextChars: cfg.TextFilter.MaxChars,
		Dedup:        cfg.DedupParams(),
		Detector:     cfg.DetectorParams(),
		Workers:      cfg.Pipeline.Workers,
	}
	if !cfg.TextFilter.Disabled {
		opts.Counter = ocr.NewCounter()
	}

	p := pipeline.New(opts, classify.NewClassifier(artifact), log)
	results, err := p.Run(ctx, doc)
	if err != nil {
		return err
	}
	log.Info("scan complete", zap.Int("signs", len(results)))

	reportPath := filepath.Join(cfg.Output.Dir, cfg.Output.ReportName)
	if err := report.WriteCSV(reportPath, results); err != nil {
		return err
	}
	if cfg.Output.SaveCrops {
		if err := report.SaveCrops(cfg.Output.Dir, results); err != nil {
			return err
		}
	}

	fmt.Printf("%d signs written to %s\n", len(results), reportPath)
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "apvscan - traffic sign detection for construction plan PDFs")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage: apvscan [options] <plan.pdf>")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Options:")
	flag.PrintDefaults()
}
