package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nebari-dev/docshelf/internal/service"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling file parts to disk.
const multipartMemory = 8 << 20

type DocumentHandler struct {
	svc            *service.DocumentService
	maxUploadBytes int64
}

// NewDocumentHandler creates a handler accepting request bodies of at most
// maxUploadMB megabytes.
func NewDocumentHandler(svc *service.DocumentService, maxUploadMB int64) *DocumentHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 32
	}
	return &DocumentHandler{svc: svc, maxUploadBytes: maxUploadMB << 20}
}

// CreateDocument godoc
// @Summary Create a document (admin or editor)
// @Tags documents
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param content formData string false "Content"
// @Param file formData file false "Attached file"
// @Success 201 {object} models.Document
// @Failure 400 {object} ErrorResponse
// @Router /documents [post]
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	if !h.parseForm(c) {
		return
	}

	upload, closeUpload, err := formUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid file upload"})
		return
	}
	defer closeUpload()

	doc, err := h.svc.Create(c.Request.Context(), caller.UserID, service.CreateDocumentInput{
		Title:   c.PostForm("title"),
		Content: c.PostForm("content"),
		File:    upload,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// ListDocuments godoc
// @Summary List all documents (admin only)
// @Tags documents
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Document
// @Router /documents [get]
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	docs, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// GetDocument godoc
// @Summary Get a document
// @Description Owners and administrators only
// @Tags documents
// @Security BearerAuth
// @Produce json
// @Param id path int true "Document ID"
// @Success 200 {object} models.Document
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /documents/{id} [get]
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "document")
	if !ok {
		return
	}

	doc, err := h.svc.Get(c.Request.Context(), id, caller.UserID, caller.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// UpdateDocument godoc
// @Summary Partially update a document
// @Description Only the fields present in the form are changed
// @Tags documents
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Document ID"
// @Param title formData string false "Title"
// @Param content formData string false "Content"
// @Param file formData file false "Replacement file"
// @Success 200 {object} models.Document
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /documents/{id} [put]
func (h *DocumentHandler) UpdateDocument(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "document")
	if !ok {
		return
	}
	if !h.parseForm(c) {
		return
	}

	upload, closeUpload, err := formUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid file upload"})
		return
	}
	defer closeUpload()

	patch := service.DocumentPatch{File: upload}
	if title, present := c.GetPostForm("title"); present {
		patch.Title = &title
	}
	if content, present := c.GetPostForm("content"); present {
		patch.Content = &content
	}

	doc, err := h.svc.Update(c.Request.Context(), id, patch, caller.UserID, caller.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DeleteDocument godoc
// @Summary Delete a document
// @Tags documents
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /documents/{id} [delete]
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "document")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id, caller.UserID, caller.Role); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseForm parses a multipart or urlencoded body within the upload limit.
func (h *DocumentHandler) parseForm(c *gin.Context) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	var err error
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		err = c.Request.ParseMultipartForm(multipartMemory)
	} else {
		err = c.Request.ParseForm()
	}
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
		return false
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid form data"})
	return false
}

// formUpload opens the optional "file" part. The returned func closes it.
func formUpload(c *gin.Context) (*service.Upload, func(), error) {
	noop := func() {}
	if c.Request.MultipartForm == nil {
		return nil, noop, nil
	}

	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}
	return &service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	}, func() { f.Close() }, nil
}
