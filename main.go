package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"invoice-scan/pkg/config"
	"invoice-scan/pkg/handlers"
	"invoice-scan/pkg/logging"
	"invoice-scan/pkg/metrics"
	"invoice-scan/pkg/repository"
	"invoice-scan/pkg/retention"
	"invoice-scan/pkg/services/command"
	"invoice-scan/pkg/services/docqa"
	"invoice-scan/pkg/services/invoice"
	"invoice-scan/pkg/services/ocr"
	"invoice-scan/pkg/services/pdfconv"
	"invoice-scan/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional file ledger for retention
	var ledger storage.Ledger
	if cfg.Database.URL != "" {
		db, err := repository.Open(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		l, err := repository.NewGormLedger(db)
		if err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		ledger = l
	}

	store, err := storage.NewStore(cfg.Upload.Folder, ledger, logger)
	if err != nil {
		logger.Fatal("Failed to prepare upload folder", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	runner := command.NewExec(logger)
	converter := pdfconv.NewConverter(cfg.PDF.Pdftoppm, runner, logger)
	extractor := ocr.NewExtractor(newOCREngine(cfg.OCR, runner), cfg.OCR.Enhance, logger)

	var opts []docqa.Option
	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, answer cache disabled", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		} else {
			opts = append(opts, docqa.WithCache(docqa.NewRedisCache(rdb, cfg.Cache.TTL)))
		}
	}
	model := docqa.Load(ctx, cfg.DocQA, logger, opts...)
	defer model.Close()

	svc := invoice.NewService(store, converter, model, extractor, m, cfg.PDF.DPI, logger)
	h := handlers.NewUploadHandler(store, svc, m, logger)

	gin.SetMode(cfg.Server.GinMode)
	r := handlers.NewRouter(h, handlers.RouterConfig{
		Logger:         logger,
		Gatherer:       reg,
		ModelAvailable: model.Available,
	})

	sweeper := retention.NewSweeper(store, cfg.Retention.TTL, cfg.Retention.Interval, m, logger)
	go sweeper.Run(ctx)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Invoice scanner starting", zap.String("port", cfg.Server.Port), zap.Bool("model_loaded", model.Available()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}

func newOCREngine(cfg config.OCRConfig, runner command.Runner) ocr.Engine {
	switch strings.ToLower(cfg.Engine) {
	case "azure":
		return ocr.NewAzure(cfg.AzureEndpoint, cfg.AzureKey)
	default:
		return ocr.NewTesseract(cfg.Tesseract, cfg.TesseractLang, cfg.TessdataDir, cfg.PSM, runner)
	}
}
