package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/document-extractor/internal/async"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/documents"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// multipart framing on top of the file itself
const multipartSlack = 1 << 20

func (h *Handlers) UploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.deps.MaxUploadBytes+multipartSlack)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.badRequest(c, fmt.Sprintf("file exceeds the %d byte limit", h.deps.MaxUploadBytes))
			return
		}
		h.badRequest(c, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	doc, err := h.deps.Documents.Upload(c.Request.Context(), documents.Upload{
		FileName: header.Filename,
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *Handlers) ListDocuments(c *gin.Context) {
	limit, err := limitParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	docs, err := h.deps.Documents.List(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

func (h *Handlers) GetDocument(c *gin.Context) {
	id, err := common.ParseID("id", c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	detail, err := h.deps.Documents.Detail(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ProcessDocument runs the pipeline inline, or queues it with ?async=true.
func (h *Handlers) ProcessDocument(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := common.ParseID("id", c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if queued, _ := strconv.ParseBool(c.Query("async")); queued {
		if h.deps.Queue == nil {
			h.respondError(c, common.NewAppError("QUEUE_DISABLED", "background processing is not configured", common.ErrInternal))
			return
		}
		if _, err := h.deps.Documents.Detail(ctx, id); err != nil {
			h.respondError(c, err)
			return
		}
		job := async.Job{DocumentID: id, SubmittedAt: time.Now(), RequestID: common.RequestIDFromContext(ctx)}
		if err := h.deps.Queue.Enqueue(ctx, job); err != nil {
			if errors.Is(err, async.ErrQueueClosed) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "QUEUE_CLOSED", Message: err.Error()})
				return
			}
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"document_id": id, "status": "queued"})
		return
	}

	if _, err := h.deps.Processor.Process(ctx, id); err != nil {
		h.respondError(c, err)
		return
	}
	detail, err := h.deps.Documents.Detail(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handlers) ResetDocument(c *gin.Context) {
	id, err := common.ParseID("id", c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	doc, err := h.deps.Processor.Reset(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handlers) ExportDocuments(c *gin.Context) {
	limit, err := limitParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	data, err := h.deps.Export.DocumentsXLSX(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	name := fmt.Sprintf("documents-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func limitParam(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, common.InvalidInput("limit must be a non-negative integer")
	}
	return n, nil
}
