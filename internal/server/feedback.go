package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/entity"
	"github.com/joseph-ayodele/document-extractor/internal/feedback"
)

func (h *Handlers) SubmitFeedback(c *gin.Context) {
	var sub feedback.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		h.badRequest(c, "request body must be a JSON feedback object")
		return
	}
	entry, err := h.deps.Feedback.Submit(c.Request.Context(), sub)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"feedback_id":   entry.ID,
		"document_type": entry.DocumentType,
		"message":       "feedback received and stored",
	})
}

func (h *Handlers) FeedbackIndex(c *gin.Context) {
	index, err := h.deps.Feedback.Index(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if index == nil {
		index = []entity.FeedbackSummary{}
	}
	c.JSON(http.StatusOK, index)
}

func (h *Handlers) GetFeedback(c *gin.Context) {
	id, err := common.ParseID("id", c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	entry, err := h.deps.Feedback.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// InitFeedbackIndex creates the similarity collection and re-indexes every entry.
func (h *Handlers) InitFeedbackIndex(c *gin.Context) {
	n, err := h.deps.Feedback.InitIndex(c.Request.Context())
	if errors.Is(err, feedback.ErrIndexDisabled) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "INDEX_DISABLED", Message: err.Error()})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexed": n, "message": "feedback index initialized"})
}
