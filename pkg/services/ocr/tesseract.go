package ocr

import (
	"context"
	"fmt"
	"strconv"

	"invoice-scan/pkg/services/command"
)

// Tesseract runs the tesseract CLI. Binary is a name on PATH or an absolute path.
type Tesseract struct {
	Binary      string
	Lang        string
	TessdataDir string
	PSM         int

	runner command.Runner
}

func NewTesseract(binary, lang, tessdataDir string, psm int, runner command.Runner) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	if runner == nil {
		runner = command.NewExec(nil)
	}
	return &Tesseract{Binary: binary, Lang: lang, TessdataDir: tessdataDir, PSM: psm, runner: runner}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	// tesseract <file> stdout -l <lang> [--psm N] [--tessdata-dir D]
	args := []string{imagePath, "stdout", "-l", t.Lang}
	if t.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.PSM))
	}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}

	out, errb, err := t.runner.Run(ctx, t.Binary, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, command.Truncate(string(errb), 1<<10))
	}
	return string(out), nil
}
