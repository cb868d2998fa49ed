package ocr

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"invoice-scan/pkg/logging"
)

// Engine recognizes text in an image file.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Extractor is the fallback text extractor. It never returns an error:
// failures are logged and produce an empty string.
type Extractor struct {
	engine  Engine
	enhance bool
	logger  *zap.Logger
}

func NewExtractor(engine Engine, enhance bool, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{engine: engine, enhance: enhance, logger: logger}
}

// PerformOCR returns the raw text recognized in imagePath, or "".
func (e *Extractor) PerformOCR(ctx context.Context, imagePath string) string {
	log := logging.FromContext(ctx, e.logger)
	start := time.Now()

	src, err := imaging.Open(imagePath)
	if err != nil {
		log.Error("ocr: cannot open image", zap.String("path", imagePath), zap.Error(err))
		return ""
	}

	target := imagePath
	if e.enhance {
		enhanced, cleanup, err := enhanceForOCR(src)
		if err != nil {
			log.Warn("ocr: enhancement skipped", zap.String("path", imagePath), zap.Error(err))
		} else {
			defer cleanup()
			target = enhanced
		}
	}

	text, err := e.engine.Recognize(ctx, target)
	if err != nil {
		log.Error("ocr: recognition failed",
			zap.String("engine", e.engine.Name()),
			zap.String("path", imagePath),
			zap.Error(err),
		)
		return ""
	}

	log.Info("ocr: recognized",
		zap.String("engine", e.engine.Name()),
		zap.Int("chars", len(text)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return text
}

// enhanceForOCR writes a high-contrast grayscale copy of src to a temp file.
func enhanceForOCR(src image.Image) (string, func(), error) {
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)
	img = imaging.AdjustGamma(img, 1.2)

	f, err := os.CreateTemp("", "invoice-ocr-*.png")
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to save processed image: %v", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}
