package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invopeak/fakturaserie/internal/api/dto"
	"github.com/invopeak/fakturaserie/internal/domain/series"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/service"
	"github.com/invopeak/fakturaserie/internal/types"
)

type SeriesHandler struct {
	seriesService       service.SeriesService
	cancellationService service.CancellationService
	log                 *logger.Logger
}

func NewSeriesHandler(
	seriesService service.SeriesService,
	cancellationService service.CancellationService,
	log *logger.Logger,
) *SeriesHandler {
	return &SeriesHandler{
		seriesService:       seriesService,
		cancellationService: cancellationService,
		log:                 log,
	}
}

func (h *SeriesHandler) CreateSeries(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.CreateSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.seriesService.CreateSeries(ctx, req)
	if err != nil {
		h.log.Error("Failed to create series", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *SeriesHandler) GetSeries(c *gin.Context) {
	ctx := c.Request.Context()
	reference := c.Param("reference")

	resp, err := h.seriesService.GetSeries(ctx, reference)
	if err != nil {
		h.log.Error("Failed to get series", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SeriesHandler) ListSeries(c *gin.Context) {
	ctx := c.Request.Context()

	filter := &series.Filter{
		CaseReference: c.Query("case_reference"),
	}
	if status := c.Query("status"); status != "" {
		seriesStatus := types.SeriesStatus(status)
		if err := seriesStatus.Validate(); err != nil {
			c.Error(err)
			return
		}
		filter.SeriesStatus = []types.SeriesStatus{seriesStatus}
	}

	resp, err := h.seriesService.ListSeries(ctx, filter)
	if err != nil {
		h.log.Error("Failed to list series", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": resp, "total": len(resp)})
}

func (h *SeriesHandler) CancelSeries(c *gin.Context) {
	ctx := c.Request.Context()
	reference := c.Param("reference")

	resp, err := h.cancellationService.CancelSeries(ctx, reference)
	if err != nil {
		h.log.Error("Failed to cancel series", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
