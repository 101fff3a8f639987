package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/invopeak/fakturaserie/internal/types"
)

// HeaderRequestID is the request ID header echoed on every response
const HeaderRequestID = "X-Request-ID"

// RequestIDMiddleware propagates or generates a request ID and attaches it
// to the request context
func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader(HeaderRequestID)
	if requestID == "" {
		requestID = types.GenerateUUID()
	}

	ctx := types.SetRequestID(c.Request.Context(), requestID)
	c.Request = c.Request.WithContext(ctx)

	c.Header(HeaderRequestID, requestID)
	c.Next()
}
