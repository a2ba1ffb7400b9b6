package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/reconcile"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/shared"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/interfaces/http/dto"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = "X-Request-ID"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	if id := c.GetHeader(RequestIDKey); id != "" {
		return id
	}
	return ""
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	requestID := getRequestID(c)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, requestID))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// HandleError converts domain and marketplace errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	requestID := getRequestID(c)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		statusCode := dto.GetHTTPStatus(code)
		c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	if code, ok := marketplaceErrorCode(err); ok {
		statusCode := dto.GetHTTPStatus(code)
		c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, err.Error(), requestID))
		return
	}

	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}

// marketplaceErrorCode maps marketplace adapter errors to API error codes.
func marketplaceErrorCode(err error) (string, bool) {
	switch {
	case errors.Is(err, reconcile.ErrMarketplaceUnavailable),
		errors.Is(err, reconcile.ErrMarketplaceRateLimited):
		return dto.ErrCodeMarketplaceUnavailable, true
	case errors.Is(err, reconcile.ErrInvalidQuantity),
		errors.Is(err, reconcile.ErrMarketplaceRejected):
		return dto.ErrCodeMarketplaceRejected, true
	case errors.Is(err, reconcile.ErrListingNotFound),
		errors.Is(err, reconcile.ErrOrderNotFound):
		return dto.ErrCodeNotFound, true
	}
	return "", false
}
