package docqa

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-scan/pkg/models"
)

type fakeProcessor struct {
	resp   *documentaipb.ProcessResponse
	err    error
	reqs   []*documentaipb.ProcessRequest
	closed bool
}

func (f *fakeProcessor) ProcessDocument(_ context.Context, req *documentaipb.ProcessRequest, _ ...gax.CallOption) (*documentaipb.ProcessResponse, error) {
	f.reqs = append(f.reqs, req)
	return f.resp, f.err
}

func (f *fakeProcessor) Close() error {
	f.closed = true
	return nil
}

func entity(typ, text string, conf float32, props ...*documentaipb.Document_Entity) *documentaipb.Document_Entity {
	return &documentaipb.Document_Entity{Type: typ, MentionText: text, Confidence: conf, Properties: props}
}

func TestDocumentAIAnswersFromEntities(t *testing.T) {
	fake := &fakeProcessor{resp: &documentaipb.ProcessResponse{Document: &documentaipb.Document{
		Entities: []*documentaipb.Document_Entity{
			entity("invoice_id", "INV-2025-001", 0.99),
			entity("total_amount", "$10.00", 0.40),
			entity("total_amount", "$100.00", 0.95),
			entity("remit_to_address", "1 Main St", 0.7),
			entity("line_item", "Widget x2 $50.00", 0.8,
				entity("line_item/description", "Widget", 0.8),
			),
			{Type: "invoice_date", NormalizedValue: &documentaipb.Document_Entity_NormalizedValue{Text: "2025-01-15"}, Confidence: 0.9},
		},
	}}}
	backend := &documentAI{client: fake, name: "projects/p/locations/us/processors/x"}
	m := New(backend, nil)
	path := writeImage(t, "invoice.png", solidImage(6, 6))

	got, err := m.Extract(context.Background(), path, models.InvoiceQuestions)
	require.NoError(t, err)

	require.Len(t, fake.reqs, 1, "document is processed once for all questions")
	assert.Equal(t, "projects/p/locations/us/processors/x", fake.reqs[0].GetName())
	assert.Equal(t, "image/jpeg", fake.reqs[0].GetRawDocument().GetMimeType())
	assert.True(t, fake.reqs[0].GetSkipHumanReview())

	assert.Equal(t, "INV-2025-001", got[models.QuestionInvoiceNumber])
	assert.Equal(t, "2025-01-15", got[models.QuestionInvoiceDate])
	assert.Equal(t, "$100.00", got[models.QuestionTotalAmount])
	assert.Equal(t, "$100.00", got[models.QuestionAmountDue], "falls back to total_amount")
	assert.Equal(t, "1 Main St", got[models.QuestionBillTo])
	assert.Equal(t, "Widget x2 $50.00", got[models.QuestionLineItems])
	assert.Equal(t, models.NotAvailable, got[models.QuestionVendorName])

	require.NoError(t, m.Close())
	assert.True(t, fake.closed)
}

func TestDocumentAICollectsNestedProperties(t *testing.T) {
	s := &docAISession{byType: map[string][]Candidate{}}
	s.collect(entity("line_item", "", 0.5, entity("line_item/amount", "$5", 0.6)))
	s.collect(nil)

	assert.NotContains(t, s.byType, "line_item", "entities without text are skipped")
	assert.Equal(t, []Candidate{{Answer: "$5", Score: float64(float32(0.6))}}, s.byType["line_item/amount"])
}

func TestDocumentAIProcessFailure(t *testing.T) {
	backend := &documentAI{client: &fakeProcessor{err: errors.New("permission denied")}, name: "p"}
	m := New(backend, nil)
	path := writeImage(t, "invoice.png", solidImage(4, 4))

	got, err := m.Extract(context.Background(), path, models.InvoiceQuestions)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "permission denied")
}
