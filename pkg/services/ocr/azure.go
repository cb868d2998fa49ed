package ocr

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// printedTextRecognizer is the slice of the Computer Vision client we use.
type printedTextRecognizer interface {
	RecognizePrintedTextInStream(ctx context.Context, detectOrientation bool, imageParameter io.ReadCloser, language computervision.OcrLanguages) (computervision.OcrResult, error)
}

// Azure recognizes printed text with Azure Computer Vision.
type Azure struct {
	client printedTextRecognizer
}

// NewAzure creates an engine bound to a Computer Vision endpoint.
func NewAzure(endpoint, apiKey string) *Azure {
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)
	return &Azure{client: &client}
}

func (a *Azure) Name() string { return "azure" }

func (a *Azure) Recognize(ctx context.Context, imagePath string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %v", err)
	}
	defer f.Close()

	result, err := a.client.RecognizePrintedTextInStream(ctx, true, f, computervision.OcrLanguages(computervision.En))
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %v", err)
	}
	return textFromOCRResult(result), nil
}

// textFromOCRResult joins recognized words into lines, one line per row.
func textFromOCRResult(result computervision.OcrResult) string {
	if result.Regions == nil {
		return ""
	}
	var lines []string
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}
			if len(words) > 0 {
				lines = append(lines, strings.Join(words, " "))
			}
		}
	}
	return strings.Join(lines, "\n")
}
