package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/clipforge/clipforge/internal/api"
	"github.com/clipforge/clipforge/internal/captions"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/db"
	"github.com/clipforge/clipforge/internal/editor"
	"github.com/clipforge/clipforge/internal/frames"
	"github.com/clipforge/clipforge/internal/jobs"
	"github.com/clipforge/clipforge/internal/logging"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/stock"
	"github.com/clipforge/clipforge/internal/timeline"
	"github.com/clipforge/clipforge/internal/transcript"
)

const reaperInterval = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.UploadDir(), cfg.ExportDir(), cfg.TempDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipforge server",
		"version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	runner, err := media.NewRunner(media.Timeouts{
		Probe:  cfg.ProbeTimeout(),
		Splice: cfg.SpliceTimeout(),
		Export: cfg.ExportTimeout(),
	}, logging.WithComponent(logger, "media"))
	if err != nil {
		return fmt.Errorf("failed to initialize media runner: %w", err)
	}

	store, err := timeline.NewStore(cfg.UploadDir(), logging.WithComponent(logger, "store"))
	if err != nil {
		return fmt.Errorf("failed to initialize project store: %w", err)
	}

	previewsDir := filepath.Join(cfg.DataDir(), "previews")
	cache, err := frames.NewCache(runner, previewsDir, logging.WithComponent(logger, "frames"))
	if err != nil {
		return fmt.Errorf("failed to initialize preview cache: %w", err)
	}

	var transcriber transcript.Transcriber
	var improver *captions.Improver
	var analyzer *stock.Analyzer
	if key := cfg.OpenAIKey(); key != "" {
		transcriber = transcript.NewWhisperTranscriber(key, cfg.TranscribeTimeout(), logging.WithComponent(logger, "whisper"))
		improver = captions.NewImprover(key, logging.WithComponent(logger, "captions"))
		analyzer = stock.NewAnalyzer(key, logging.WithComponent(logger, "analyzer"))
	} else {
		logger.Warn("OPENAI_API_KEY not set, transcription and caption features disabled")
	}

	var stockClient *stock.Client
	if key := cfg.PexelsKey(); key != "" {
		stockClient = stock.NewClient(key, logging.WithComponent(logger, "stock"))
	} else {
		logger.Warn("PEXELS_API_KEY not set, stock footage features disabled")
	}

	worker := jobs.NewWorker(cfg.WorkerPython(), cfg.WorkerScript(), logging.WithComponent(logger, "worker"))
	jobManager := jobs.NewManager(jobs.NewRepository(database.Conn()), worker,
		cfg.TempDir(), jobs.DefaultTTL, logging.WithComponent(logger, "jobs"))

	resync := transcript.NewResynchronizer(transcriber, logging.WithComponent(logger, "transcript"))

	service := editor.NewService(editor.Options{
		Store:          store,
		Runner:         runner,
		Cache:          cache,
		Resync:         resync,
		Transcriber:    transcriber,
		Jobs:           jobManager,
		Stock:          stockClient,
		Analyzer:       analyzer,
		Improver:       improver,
		ExportDir:      cfg.ExportDir(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logging.WithComponent(logger, "editor"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go jobManager.RunReaper(ctx, reaperInterval)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Service:        service,
		UploadsDir:     cfg.UploadDir(),
		PreviewsDir:    previewsDir,
		ExportsDir:     cfg.ExportDir(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logging.WithComponent(logger, "api"),
		StartTime:      startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
