// Package docqa answers natural-language questions about a document image
// using a pretrained document question answering model.
//
// The model is loaded once at startup with Load. A load failure leaves the
// Model permanently disabled: every Extract call returns ErrModelUnavailable
// and callers are expected to fall back to plain OCR.
package docqa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"invoice-scan/pkg/config"
	"invoice-scan/pkg/logging"
	"invoice-scan/pkg/models"
)

// ErrModelUnavailable is returned by Extract when the model failed to load.
var ErrModelUnavailable = errors.New("document QA model not loaded")

// Candidate is one ranked answer returned by a backend.
type Candidate struct {
	Answer string
	Score  float64
}

// Page is an image prepared for inference: 3-channel JPEG bytes.
type Page struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// Backend is a loaded model.
type Backend interface {
	// Name identifies the model, e.g. for cache keys.
	Name() string
	Open(ctx context.Context, page Page) (Session, error)
	Close() error
}

// Session answers questions about one page.
type Session interface {
	Ask(ctx context.Context, question string) ([]Candidate, error)
}

// Model is either ready (backend set) or disabled (loadErr set).
type Model struct {
	backend Backend
	loadErr error
	cache   Cache
	logger  *zap.Logger
}

type loadOptions struct {
	httpClient *http.Client
	cache      Cache
}

// Option customizes Load.
type Option func(*loadOptions)

// WithHTTPClient overrides the client used by HTTP backends.
func WithHTTPClient(c *http.Client) Option {
	return func(o *loadOptions) { o.httpClient = c }
}

// WithCache enables the answer cache.
func WithCache(c Cache) Option {
	return func(o *loadOptions) { o.cache = c }
}

// Load initializes the configured backend once. It never fails: a backend
// that cannot be initialized yields a disabled Model.
func Load(ctx context.Context, cfg config.DocQAConfig, logger *zap.Logger, opts ...Option) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	start := time.Now()
	backend, err := newBackend(ctx, cfg, o.httpClient, logger)
	if err != nil {
		logger.Error("docqa: model load failed, extraction disabled",
			zap.String("backend", cfg.Backend),
			zap.String("model", cfg.Model),
			zap.Error(err),
		)
		return Disabled(err, logger)
	}

	logger.Info("docqa: model loaded",
		zap.String("backend", cfg.Backend),
		zap.String("model", backend.Name()),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	m := New(backend, logger)
	m.cache = o.cache
	return m
}

func newBackend(ctx context.Context, cfg config.DocQAConfig, client *http.Client, logger *zap.Logger) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case "huggingface", "":
		return newHuggingFace(ctx, cfg, client)
	case "documentai":
		return newDocumentAI(ctx, cfg, logger)
	case "none":
		return nil, errors.New("document QA disabled by configuration")
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// New wraps an already loaded backend.
func New(backend Backend, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Model{backend: backend, logger: logger}
}

// Disabled returns a Model that always reports ErrModelUnavailable.
func Disabled(cause error, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cause == nil {
		cause = errors.New("no backend")
	}
	return &Model{loadErr: cause, logger: logger}
}

// Available reports whether the model loaded.
func (m *Model) Available() bool { return m.loadErr == nil && m.backend != nil }

// LoadErr is the reason the model is disabled, if it is.
func (m *Model) LoadErr() error { return m.loadErr }

func (m *Model) Close() error {
	if m.backend == nil {
		return nil
	}
	return m.backend.Close()
}

// Extract asks every question about the image at imagePath and returns the
// top answer for each, or models.NotAvailable when the model has none.
// Questions are asked one at a time; if any of them fails the answers
// collected so far are dropped and only the error is returned.
func (m *Model) Extract(ctx context.Context, imagePath string, questions []string) (models.Answers, error) {
	if !m.Available() {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, m.loadErr)
	}
	log := logging.FromContext(ctx, m.logger)
	start := time.Now()

	page, err := loadPage(imagePath)
	if err != nil {
		log.Error("docqa: cannot prepare image", zap.String("path", imagePath), zap.Error(err))
		return nil, fmt.Errorf("open image: %w", err)
	}

	var key string
	if m.cache != nil {
		key = cacheKey(m.backend.Name(), page.Data, questions)
		cached, ok, err := m.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("docqa: cache read failed", zap.Error(err))
		case ok:
			log.Info("docqa: cache hit", zap.String("model", m.backend.Name()))
			return cached, nil
		}
	}

	sess, err := openSession(ctx, m.backend, page)
	if err != nil {
		log.Error("docqa: inference failed", zap.String("path", imagePath), zap.Error(err))
		return nil, err
	}

	answers := make(models.Answers, len(questions))
	for _, q := range questions {
		cands, err := ask(ctx, sess, q)
		if err != nil {
			log.Error("docqa: question failed, discarding partial answers",
				zap.String("question", q),
				zap.Int("answered", len(answers)),
				zap.Error(err),
			)
			return nil, fmt.Errorf("question %q: %w", q, err)
		}
		answers[q] = topAnswer(cands)
	}

	if m.cache != nil {
		if err := m.cache.Set(ctx, key, answers); err != nil {
			log.Warn("docqa: cache write failed", zap.Error(err))
		}
	}

	log.Info("docqa: extracted",
		zap.String("model", m.backend.Name()),
		zap.Int("questions", len(questions)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return answers, nil
}

// openSession and ask turn a backend panic into an error.
func openSession(ctx context.Context, b Backend, page Page) (sess Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			sess, err = nil, fmt.Errorf("backend panic: %v", r)
		}
	}()
	return b.Open(ctx, page)
}

func ask(ctx context.Context, sess Session, q string) (cands []Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			cands, err = nil, fmt.Errorf("backend panic: %v", r)
		}
	}()
	return sess.Ask(ctx, q)
}

// topAnswer picks the highest scoring candidate; the first wins ties.
func topAnswer(cands []Candidate) string {
	if len(cands) == 0 {
		return models.NotAvailable
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best.Answer
}
