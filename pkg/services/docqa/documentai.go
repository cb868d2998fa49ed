package docqa

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"invoice-scan/pkg/config"
	"invoice-scan/pkg/models"
)

// questionEntityTypes maps a question to invoice parser entity types, in
// order of preference.
var questionEntityTypes = map[string][]string{
	models.QuestionInvoiceNumber: {"invoice_id"},
	models.QuestionInvoiceDate:   {"invoice_date"},
	models.QuestionTotalAmount:   {"total_amount"},
	models.QuestionLineItems:     {"line_item"},
	models.QuestionVendorName:    {"supplier_name"},
	models.QuestionBillTo:        {"receiver_address", "remit_to_address"},
	models.QuestionAmountDue:     {"amount_due", "total_amount", "net_amount"},
}

type documentProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// documentAI answers questions from the entities of a Document AI invoice
// processor. The document is processed once per page.
type documentAI struct {
	client documentProcessor
	name   string
	logger *zap.Logger
}

func newDocumentAI(ctx context.Context, cfg config.DocQAConfig, logger *zap.Logger) (*documentAI, error) {
	if cfg.DocAIProjectID == "" || cfg.DocAILocation == "" || cfg.DocAIProcessorID == "" {
		return nil, errors.New("documentai: project, location and processor are required")
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.DocAILocation)
	opts := []option.ClientOption{option.WithEndpoint(endpoint)}
	if cfg.DocAICredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.DocAICredentialsFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}

	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", cfg.DocAIProjectID, cfg.DocAILocation, cfg.DocAIProcessorID)
	return &documentAI{client: client, name: name, logger: logger}, nil
}

func (d *documentAI) Name() string { return d.name }

func (d *documentAI) Close() error { return d.client.Close() }

func (d *documentAI) Open(ctx context.Context, page Page) (Session, error) {
	req := &documentaipb.ProcessRequest{
		Name: d.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  page.Data,
				MimeType: page.MIMEType,
			},
		},
		SkipHumanReview: true,
	}

	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}

	s := &docAISession{byType: make(map[string][]Candidate)}
	for _, e := range resp.GetDocument().GetEntities() {
		s.collect(e)
	}
	if d.logger != nil {
		d.logger.Debug("documentai: processed", zap.Int("entity_types", len(s.byType)))
	}
	return s, nil
}

type docAISession struct {
	byType map[string][]Candidate
}

// collect indexes an entity and, recursively, its properties.
func (s *docAISession) collect(e *documentaipb.Document_Entity) {
	if e == nil {
		return
	}
	if e.GetType() != "" {
		text := strings.TrimSpace(e.GetMentionText())
		if text == "" {
			text = strings.TrimSpace(e.GetNormalizedValue().GetText())
		}
		if text != "" {
			s.byType[e.GetType()] = append(s.byType[e.GetType()], Candidate{Answer: text, Score: float64(e.GetConfidence())})
		}
	}
	for _, p := range e.GetProperties() {
		s.collect(p)
	}
}

func (s *docAISession) Ask(_ context.Context, question string) ([]Candidate, error) {
	for _, t := range questionEntityTypes[question] {
		cands := s.byType[t]
		if len(cands) == 0 {
			continue
		}
		out := append([]Candidate(nil), cands...)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
		return out, nil
	}
	return nil, nil
}
