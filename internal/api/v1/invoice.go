package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/service"
)

type InvoiceHandler struct {
	feedbackService service.FeedbackService
	log             *logger.Logger
}

func NewInvoiceHandler(feedbackService service.FeedbackService, log *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{feedbackService: feedbackService, log: log}
}

// GetFeedback returns the external status reports received for an invoice
func (h *InvoiceHandler) GetFeedback(c *gin.Context) {
	ctx := c.Request.Context()
	reference := c.Param("reference")

	resp, err := h.feedbackService.ListFeedback(ctx, reference)
	if err != nil {
		h.log.Error("Failed to list feedback", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
