package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nebari-dev/docshelf/internal/ingestion"
)

// maxTriggerBody bounds the payload forwarded to the ingestion service.
const maxTriggerBody = 1 << 20

type IngestionHandler struct {
	client *ingestion.Client
}

func NewIngestionHandler(client *ingestion.Client) *IngestionHandler {
	return &IngestionHandler{client: client}
}

// Trigger godoc
// @Summary Start an ingestion run
// @Description Forwards the JSON body to the ingestion service and relays its reply
// @Tags ingestion
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Router /ingestion/trigger [post]
func (h *IngestionHandler) Trigger(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxTriggerBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgInvalidBody})
		return
	}
	// An empty body is forwarded as {} by the client.
	if len(bytes.TrimSpace(payload)) > 0 && !json.Valid(payload) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "request body must be valid JSON"})
		return
	}

	resp, err := h.client.Trigger(c.Request.Context(), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(resp.StatusCode, resp.ContentType, resp.Body)
}
