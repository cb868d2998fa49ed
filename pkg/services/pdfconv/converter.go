package pdfconv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"invoice-scan/pkg/services/command"
)

// DefaultDPI is used when Options.DPI is not positive.
const DefaultDPI = 300

// ErrNoPages is returned when a PDF yields no page images.
var ErrNoPages = errors.New("pdf produced no pages")

// Options select the resolution and page range. Pages are 1-based; zero
// values mean the whole document.
type Options struct {
	DPI       int
	FirstPage int
	LastPage  int
}

// Converter rasterizes PDF pages with pdftoppm.
type Converter struct {
	pdftoppm string
	runner   command.Runner
	logger   *zap.Logger
}

func NewConverter(pdftoppm string, runner command.Runner, logger *zap.Logger) *Converter {
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = command.NewExec(logger)
	}
	return &Converter{pdftoppm: pdftoppm, runner: runner, logger: logger}
}

// PageCount opens the PDF with a pure Go reader and reports its page count.
func PageCount(path string) (n int, err error) {
	// the reader panics on some malformed trailers
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("read pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.NumPage(), nil
}

// Convert returns the requested pages in order. Any failure is logged and
// returned with no pages.
func (c *Converter) Convert(ctx context.Context, path string, opts Options) ([]image.Image, error) {
	pages, err := c.convert(ctx, path, opts)
	if err != nil {
		c.logger.Error("pdf conversion failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	c.logger.Info("pdf converted", zap.String("path", path), zap.Int("pages", len(pages)))
	return pages, nil
}

func (c *Converter) convert(ctx context.Context, path string, opts Options) ([]image.Image, error) {
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}

	// The Go reader rejects some valid files, so only a clean zero-page answer
	// short-circuits.
	if n, err := PageCount(path); err != nil {
		c.logger.Debug("pdf preflight failed", zap.String("path", path), zap.Error(err))
	} else if n == 0 {
		return nil, ErrNoPages
	}

	tmpDir, err := os.MkdirTemp("", "invoice-pdf-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			c.logger.Warn("failed to remove temp dir", zap.String("dir", tmpDir), zap.Error(err))
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(opts.DPI), "-jpeg"}
	if opts.FirstPage > 0 {
		args = append(args, "-f", strconv.Itoa(opts.FirstPage))
	}
	if opts.LastPage > 0 {
		args = append(args, "-l", strconv.Itoa(opts.LastPage))
	}
	args = append(args, path, prefix)

	// pdftoppm -r 300 -jpeg [-f N] [-l M] <in.pdf> <tmp/page>
	if _, errb, err := c.runner.Run(ctx, c.pdftoppm, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, command.Truncate(string(errb), 1<<10))
	}

	// pdftoppm zero-pads page numbers to a common width, so lexical order is page order.
	matches, _ := filepath.Glob(prefix + "-*.jpg")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, ErrNoPages
	}

	pages := make([]image.Image, 0, len(matches))
	for _, m := range matches {
		img, err := imaging.Open(m)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(m), err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}
