package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/invopeak/fakturaserie/internal/api/v1"
	"github.com/invopeak/fakturaserie/internal/rest/middleware"
)

type Handlers struct {
	Series  *v1.SeriesHandler
	Invoice *v1.InvoiceHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.ErrorHandler(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	series := router.Group("/series")
	{
		series.POST("", handlers.Series.CreateSeries)
		series.GET("", handlers.Series.ListSeries)
		series.GET("/:reference", handlers.Series.GetSeries)
		series.POST("/:reference/cancel", handlers.Series.CancelSeries)
	}

	invoices := router.Group("/invoices")
	{
		invoices.GET("/:reference/feedback", handlers.Invoice.GetFeedback)
	}
}
