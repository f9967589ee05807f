package handler

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flagstone-assistant/internal/pkg/pdfextract"
	"flagstone-assistant/internal/transport/http/response"
)

const maxPDFSize = 10 << 20 // 10 MB

type DocumentUpdater interface {
	UpdateDocument(ctx context.Context, filename, content string) (int, error)
	Reindex(ctx context.Context) (int, error)
}

type ReindexRequester interface {
	RequestReindex(ctx context.Context, reason string) error
}

type DocsHandler struct {
	docs    DocumentUpdater
	reindex ReindexRequester
	log     *zap.Logger
}

type UpdateDocumentRequest struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

// NewDocsHandler serves corpus mutations. reindex may be nil, in which case
// reindex requests run inline.
func NewDocsHandler(docs DocumentUpdater, reindex ReindexRequester, log *zap.Logger) *DocsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &DocsHandler{docs: docs, reindex: reindex, log: log}
}

func (h *DocsHandler) Update(c *gin.Context) {
	var req UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeBadRequest, "invalid input", "invalid request payload")
		return
	}
	if strings.TrimSpace(req.Content) == "" || strings.TrimSpace(req.Filename) == "" {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeBadRequest, "invalid input", "content and filename are required")
		return
	}
	h.update(c, req.Filename, req.Content)
}

// UploadPDF extracts the text of an uploaded PDF and stores it as a markdown document.
func (h *DocsHandler) UploadPDF(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeBadRequest, "invalid input", "missing file")
		return
	}
	if file.Size > maxPDFSize {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeBadRequest, "invalid input", "file too large (max 10MB)")
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeBadRequest, "invalid input", "only PDF files are allowed")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	text, err := pdfextract.ExtractText(f)
	if err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeInvalidDocument, "invalid document", "failed to extract text from PDF: "+err.Error())
		return
	}
	if text == "" {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeInvalidDocument, "invalid document", "PDF contains no extractable text")
		return
	}

	name := strings.TrimSuffix(filepath.Base(file.Filename), filepath.Ext(file.Filename))
	if name == "" {
		name = "upload"
	}
	h.update(c, name+".md", text)
}

func (h *DocsHandler) update(c *gin.Context, filename, content string) {
	n, err := h.docs.UpdateDocument(c.Request.Context(), filename, content)
	if err != nil {
		h.log.Error("update document failed", zap.String("filename", filename), zap.Error(err))
		writeError(c, err, "update documents failed")
		return
	}
	response.OK(c, gin.H{
		"message":   "Documents updated and reindexed",
		"documents": n,
	})
}

// Reindex rebuilds the whole index, through the reindex queue when one is configured.
func (h *DocsHandler) Reindex(c *gin.Context) {
	if h.reindex != nil {
		if err := h.reindex.RequestReindex(c.Request.Context(), "api"); err != nil {
			h.log.Error("enqueue reindex failed", zap.Error(err))
			response.ErrorWithDetails(c, http.StatusServiceUnavailable, response.CodeDependencyDisabled, "reindex enqueue failed", err.Error())
			return
		}
		response.Accepted(c, gin.H{"message": "Reindex requested"})
		return
	}

	n, err := h.docs.Reindex(c.Request.Context())
	if err != nil {
		h.log.Error("reindex failed", zap.Error(err))
		writeError(c, err, "reindex failed")
		return
	}
	response.OK(c, gin.H{"message": "Documents reindexed", "documents": n})
}
