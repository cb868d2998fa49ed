// Package postprocess reshapes raw model answers into an invoice record.
package postprocess

import (
	"invoice-scan/pkg/models"
)

// InvoiceFromAnswers maps the answers the record knows about and attaches
// the raw answers. Line items are not parsed and are always empty.
func InvoiceFromAnswers(answers models.Answers) models.InvoiceRecord {
	return models.InvoiceRecord{
		InvoiceNumber: answers.Get(models.QuestionInvoiceNumber),
		InvoiceDate:   answers.Get(models.QuestionInvoiceDate),
		LineItems:     []models.LineItem{},
		RawAnswers:    answers,
	}
}
