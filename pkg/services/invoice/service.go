// Package invoice runs an uploaded file through conversion, document QA and
// the OCR fallback.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"invoice-scan/pkg/common"
	"invoice-scan/pkg/logging"
	"invoice-scan/pkg/metrics"
	"invoice-scan/pkg/models"
	"invoice-scan/pkg/services/docqa"
	"invoice-scan/pkg/services/pdfconv"
	"invoice-scan/pkg/services/postprocess"
	"invoice-scan/pkg/storage"
)

// Messages shown to the user.
const (
	MsgConversionFailed = "Failed to convert PDF to image."
	MsgModelNotLoaded   = "Deep Learning model not loaded. Please check dependencies."
	msgExtractionFailed = "Deep Learning extraction failed: "
)

type Converter interface {
	Convert(ctx context.Context, path string, opts pdfconv.Options) ([]image.Image, error)
}

type Extractor interface {
	Extract(ctx context.Context, imagePath string, questions []string) (models.Answers, error)
}

type TextExtractor interface {
	PerformOCR(ctx context.Context, imagePath string) string
}

// Result is what the upload page displays.
type Result struct {
	Extraction models.Extraction `json:"extracted_data"`
	ImageName  string            `json:"uploaded_image_name"`
}

type Service struct {
	store     *storage.Store
	converter Converter
	model     Extractor
	ocr       TextExtractor
	metrics   *metrics.Metrics
	dpi       int
	logger    *zap.Logger
}

func NewService(store *storage.Store, converter Converter, model Extractor, ocr TextExtractor, m *metrics.Metrics, dpi int, logger *zap.Logger) *Service {
	if m == nil {
		m = metrics.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		converter: converter,
		model:     model,
		ocr:       ocr,
		metrics:   m,
		dpi:       dpi,
		logger:    logger,
	}
}

// Process handles a file already saved in the store under name. A PDF is
// rendered to a .jpg of its first page and then removed; if rendering fails
// the PDF is kept and a CONVERSION_FAILED error is returned.
func (s *Service) Process(ctx context.Context, name string) (*Result, error) {
	log := logging.FromContext(ctx, s.logger).With(zap.String("file", name))

	imageName := name
	if storage.IsPDF(name) {
		derived, err := s.renderFirstPage(ctx, name)
		if err != nil {
			return nil, err
		}
		imageName = derived
	}

	ext := s.extract(ctx, log, s.store.Path(imageName))

	if storage.IsPDF(name) {
		if err := s.store.Remove(ctx, name); err != nil {
			log.Warn("failed to remove original pdf", zap.Error(err))
		}
	}

	return &Result{Extraction: ext, ImageName: imageName}, nil
}

func (s *Service) renderFirstPage(ctx context.Context, name string) (string, error) {
	start := time.Now()
	pages, err := s.converter.Convert(ctx, s.store.Path(name), pdfconv.Options{DPI: s.dpi, FirstPage: 1, LastPage: 1})
	s.metrics.ObserveStage(metrics.StageConvert, start)
	if err == nil && len(pages) == 0 {
		err = pdfconv.ErrNoPages
	}
	if err != nil {
		return "", common.NewAppError(common.CodeConversionFailed, MsgConversionFailed,
			fmt.Errorf("%w: %v", common.ErrConversion, err))
	}

	derived := storage.DerivedImageName(name)
	if _, err := s.store.SaveImage(ctx, pages[0], derived); err != nil {
		return "", common.NewAppError(common.CodeStorage, "Failed to save converted page.",
			fmt.Errorf("%w: %v", common.ErrStorage, err))
	}
	return derived, nil
}

func (s *Service) extract(ctx context.Context, log *zap.Logger, imagePath string) models.Extraction {
	start := time.Now()
	answers, err := s.model.Extract(ctx, imagePath, models.InvoiceQuestions)
	s.metrics.ObserveStage(metrics.StageDocQA, start)

	if err == nil {
		s.metrics.Extraction(metrics.ResultModel)
		rec := postprocess.InvoiceFromAnswers(answers)
		return models.Extraction{Record: &rec}
	}

	msg := msgExtractionFailed + err.Error()
	if errors.Is(err, docqa.ErrModelUnavailable) {
		msg = MsgModelNotLoaded
	}
	log.Warn("document QA failed, falling back to OCR", zap.Error(err))

	start = time.Now()
	text := s.ocr.PerformOCR(ctx, imagePath)
	s.metrics.ObserveStage(metrics.StageOCR, start)
	s.metrics.Extraction(metrics.ResultFallback)

	return models.Extraction{Fallback: &models.Fallback{Error: msg, FullTextOCR: text}}
}
