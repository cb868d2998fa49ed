package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoice-scan/pkg/common"
	"invoice-scan/pkg/logging"
	"invoice-scan/pkg/metrics"
	"invoice-scan/pkg/models"
	"invoice-scan/pkg/services/invoice"
	"invoice-scan/pkg/storage"
)

const indexTemplate = "index.html"

// Processor runs the extraction pipeline on a stored file.
type Processor interface {
	Process(ctx context.Context, name string) (*invoice.Result, error)
}

type UploadHandler struct {
	store   *storage.Store
	proc    Processor
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewUploadHandler(store *storage.Store, proc Processor, m *metrics.Metrics, logger *zap.Logger) *UploadHandler {
	if m == nil {
		m = metrics.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandler{store: store, proc: proc, metrics: m, logger: logger}
}

// Index renders the empty upload form.
func (h *UploadHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, indexTemplate, gin.H{})
}

// Upload handles the form post. Rejected uploads redirect back to the form
// without a message.
func (h *UploadHandler) Upload(c *gin.Context) {
	name, err := h.receive(c)
	if err != nil {
		if ae, ok := common.AsAppError(err); ok && errors.Is(ae, common.ErrInvalidInput) {
			c.Redirect(http.StatusFound, c.Request.URL.String())
			return
		}
		c.HTML(http.StatusInternalServerError, indexTemplate, gin.H{"error": "Failed to save upload."})
		return
	}

	res, err := h.proc.Process(c.Request.Context(), name)
	if err != nil {
		h.metrics.Upload(metrics.OutcomeFailed)
		status, msg := http.StatusInternalServerError, "Failed to process upload."
		if ae, ok := common.AsAppError(err); ok {
			msg = ae.Message
			// conversion failures are reported inline like any other page
			if errors.Is(ae, common.ErrConversion) {
				status = http.StatusOK
			}
		}
		_ = c.Error(err)
		c.HTML(status, indexTemplate, gin.H{"error": msg})
		return
	}

	h.metrics.Upload(metrics.OutcomeAccepted)
	data := gin.H{
		"extracted_data":      &res.Extraction,
		"uploaded_image_name": res.ImageName,
	}
	if rec := res.Extraction.Record; rec != nil {
		data["raw_answers"] = rec.RawAnswers.Pairs(models.InvoiceQuestions)
	}
	c.HTML(http.StatusOK, indexTemplate, data)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIExtract is the JSON variant of Upload.
func (h *UploadHandler) APIExtract(c *gin.Context) {
	name, err := h.receive(c)
	if err != nil {
		h.abortJSON(c, err)
		return
	}

	res, err := h.proc.Process(c.Request.Context(), name)
	if err != nil {
		h.metrics.Upload(metrics.OutcomeFailed)
		h.abortJSON(c, err)
		return
	}

	h.metrics.Upload(metrics.OutcomeAccepted)
	c.JSON(http.StatusOK, res)
}

func (h *UploadHandler) abortJSON(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := apiError{Code: "INTERNAL", Message: "internal error"}
	if ae, ok := common.AsAppError(err); ok {
		body = apiError{Code: ae.Code, Message: ae.Message}
		switch {
		case errors.Is(ae, common.ErrInvalidInput):
			status = http.StatusBadRequest
		case errors.Is(ae, common.ErrConversion):
			status = http.StatusUnprocessableEntity
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

// receive validates the "file" part and saves it under its sanitized name.
func (h *UploadHandler) receive(c *gin.Context) (string, error) {
	log := logging.FromContext(c.Request.Context(), h.logger)

	fh, err := c.FormFile("file")
	if err != nil {
		return "", h.reject(common.CodeMissingFile, "No file part in the request.", err)
	}
	if fh.Filename == "" {
		return "", h.reject(common.CodeEmptyFilename, "No file selected.", nil)
	}
	if !storage.Allowed(fh.Filename) {
		log.Info("upload rejected", zap.String("filename", fh.Filename), zap.String("reason", "extension"))
		return "", h.reject(common.CodeExtensionNotAllowed, "File type not allowed.", nil)
	}
	name := storage.SecureFilename(fh.Filename)
	if name == "" {
		return "", h.reject(common.CodeInvalidFilename, "Invalid filename.", nil)
	}

	if _, err := h.store.SaveUpload(c.Request.Context(), fh, name); err != nil {
		log.Error("failed to save upload", zap.String("name", name), zap.Error(err))
		h.metrics.Upload(metrics.OutcomeFailed)
		return "", common.NewAppError(common.CodeStorage, "Failed to save upload.", fmt.Errorf("%w: %v", common.ErrStorage, err))
	}
	log.Info("upload saved", zap.String("name", name), zap.Int64("size", fh.Size))
	return name, nil
}

func (h *UploadHandler) reject(code, msg string, cause error) error {
	h.metrics.Upload(metrics.OutcomeRejected)
	err := common.ErrInvalidInput
	if cause != nil {
		err = fmt.Errorf("%w: %v", common.ErrInvalidInput, cause)
	}
	return common.NewAppError(code, msg, err)
}
