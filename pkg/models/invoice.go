package models

import (
	"encoding/json"
	"sort"
)

// Questions asked of the document QA model for every uploaded invoice.
const (
	QuestionInvoiceNumber = "What is the invoice number?"
	QuestionInvoiceDate   = "What is the invoice date?"
	QuestionTotalAmount   = "What is the total amount?"
	QuestionLineItems     = "What are the line items?"
	QuestionVendorName    = "What is the vendor name?"
	QuestionBillTo        = "What is the bill to address?"
	QuestionAmountDue     = "What is the amount due?"
)

// NotAvailable is the answer used when the model has no candidate for a question.
const NotAvailable = "N/A"

// InvoiceQuestions is the fixed, ordered question set.
var InvoiceQuestions = []string{
	QuestionInvoiceNumber,
	QuestionInvoiceDate,
	QuestionTotalAmount,
	QuestionLineItems,
	QuestionVendorName,
	QuestionBillTo,
	QuestionAmountDue,
}

// Answers maps a question to the model's top answer.
type Answers map[string]string

// QA is a single question/answer pair.
type QA struct {
	Question string
	Answer   string
}

// Get returns the answer for q, or NotAvailable.
func (a Answers) Get(q string) string {
	if v, ok := a[q]; ok {
		return v
	}
	return NotAvailable
}

// Pairs returns the answers following order, then any remaining questions sorted.
func (a Answers) Pairs(order []string) []QA {
	out := make([]QA, 0, len(a))
	seen := make(map[string]struct{}, len(order))
	for _, q := range order {
		if v, ok := a[q]; ok {
			out = append(out, QA{Question: q, Answer: v})
			seen[q] = struct{}{}
		}
	}
	var rest []string
	for q := range a {
		if _, ok := seen[q]; !ok {
			rest = append(rest, q)
		}
	}
	sort.Strings(rest)
	for _, q := range rest {
		out = append(out, QA{Question: q, Answer: a[q]})
	}
	return out
}

// LineItem is a single invoice line. Nothing populates it yet.
type LineItem struct {
	RawLine string `json:"raw_line"`
}

// InvoiceRecord is the post-processed result of a successful extraction.
type InvoiceRecord struct {
	InvoiceNumber string     `json:"invoice_number"`
	InvoiceDate   string     `json:"invoice_date"`
	LineItems     []LineItem `json:"line_items"`
	RawAnswers    Answers    `json:"raw_dl_answers"`
}

// Fallback is returned when the document QA model could not answer.
type Fallback struct {
	Error       string `json:"error"`
	FullTextOCR string `json:"full_text_ocr"`
}

// Extraction holds exactly one of Record or Fallback.
type Extraction struct {
	Record   *InvoiceRecord
	Fallback *Fallback
}

// Failed reports whether the extraction degraded to OCR text.
func (e *Extraction) Failed() bool {
	return e != nil && e.Fallback != nil
}

func (e Extraction) MarshalJSON() ([]byte, error) {
	switch {
	case e.Fallback != nil:
		return json.Marshal(e.Fallback)
	case e.Record != nil:
		return json.Marshal(e.Record)
	default:
		return []byte("null"), nil
	}
}
