package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nebari-dev/docshelf/internal/api/middleware"
	"github.com/nebari-dev/docshelf/internal/apperr"
	"github.com/nebari-dev/docshelf/internal/auth"
)

// Version is set via ldflags at build time
var Version = "dev"

// msgInvalidBody answers every request body that fails to decode or validate.
const msgInvalidBody = "invalid request body"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError writes err with the status of its kind. Internal failures are
// logged with their cause and answered with a generic message.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		slog.Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(kind.HTTPStatus(), ErrorResponse{Error: apperr.PublicMessage(err)})
}

// bindJSON decodes and validates the JSON body into req. It answers 400 and
// returns false on failure; the validator detail is only logged.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		slog.Debug("Rejected request body", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgInvalidBody})
		return false
	}
	return true
}

// parseID reads the :id path parameter. It answers 400 and returns false when
// the parameter is not a positive integer.
func parseID(c *gin.Context, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + what + " id"})
		return 0, false
	}
	return uint(id), true
}

// actor returns the verified claims of the caller. Routes using it sit behind
// the Authenticate middleware.
func actor(c *gin.Context) (*auth.Claims, bool) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return nil, false
	}
	return claims, true
}

// HealthCheck godoc
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": Version,
	})
}
