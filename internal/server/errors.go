package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	body := ErrorResponse{Error: common.ErrorCode(err), Message: "internal server error"}

	var ae *common.AppError
	if errors.As(err, &ae) {
		body.Message = ae.Message
	} else if status != http.StatusInternalServerError {
		body.Message = err.Error()
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("http.error", "path", c.FullPath(), "status", status, "error", err,
			"request_id", common.RequestIDFromContext(c.Request.Context()))
	}
	c.AbortWithStatusJSON(status, body)
}

func (h *Handlers) badRequest(c *gin.Context, message string) {
	h.respondError(c, common.InvalidInput(message))
}
