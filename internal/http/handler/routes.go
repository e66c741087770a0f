package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/gofiber/fiber/v2"

	"docstore/internal/service"
	"docstore/internal/storage"
)

const (
	msgDocumentIDMissing = "Document Id is missing in the request URI"
	msgDocumentNotFound  = "Invalid document Id"
	msgNoDocument        = "No document found in the request body"
	msgExtensionMismatch = "Not able to modify the file as the input file is of different format"
	msgMultipleDocuments = "API doesnot support for multiple files"
	msgInvalidFilename   = "Uploaded file name must end with an extension"
)

// Pinger reports whether a dependency is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Document routes live under prefix, e.g. /storage/documents.
func RegisterRoutes(app *fiber.App, prefix string, health Pinger, docSvc service.DocumentService) {
	app.Get("/health", HealthCheck(health))
	app.Get("/healthz", LivenessProbe())

	app.Post(prefix, UploadDocument(docSvc))
	app.Get(prefix+"/:id", GetDocument(docSvc))
	app.Put(prefix+"/:id", ReplaceDocument(docSvc))
	app.Delete(prefix+"/:id", DeleteDocument(docSvc))

	missing := MissingDocumentID()
	app.Get(prefix, missing)
	app.Put(prefix, missing)
	app.Delete(prefix, missing)
}

// HealthCheck checks that the store root is still usable.
//
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(p Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			recordError(c, err)
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200 while the process is serving.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// MissingDocumentID rejects document requests that carry no ID segment.
func MissingDocumentID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return writeError(c, fiber.StatusBadRequest, "DOCUMENT_ID_MISSING", msgDocumentIDMissing)
	}
}

// UploadDocument stores the single uploaded file and answers with its new ID.
//
// @Summary Upload a document
// @Tags documents
// @Accept multipart/form-data
// @Produce plain
// @Param file formData file true "Document to store"
// @Success 201 {string} string "generated document id"
// @Failure 400 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /storage/documents [post]
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, code, msg := singleUpload(c)
		if fh == nil {
			return writeError(c, fiber.StatusBadRequest, code, msg)
		}

		f, err := fh.Open()
		if err != nil {
			recordError(c, err)
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		doc, err := docSvc.Upload(c.UserContext(), f, fh.Filename)
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, "text/plain; charset=us-ascii")
		return c.Status(fiber.StatusCreated).SendString(doc.ID)
	}
}

// GetDocument streams a stored document back as an attachment.
//
// @Summary Download a document
// @Tags documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Success 200 {file} file
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /storage/documents/{id} [get]
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dl, err := docSvc.Download(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, dl.Filename))
		// fasthttp closes the body once the response has been written.
		return c.Status(fiber.StatusOK).SendStream(dl.Body, int(dl.Size))
	}
}

// ReplaceDocument overwrites a stored document with the single uploaded file.
//
// @Summary Replace a document
// @Tags documents
// @Accept multipart/form-data
// @Param id path string true "Document ID"
// @Param file formData file true "Replacement with the same extension"
// @Success 204
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /storage/documents/{id} [put]
func ReplaceDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, code, msg := singleUpload(c)
		if fh == nil {
			return writeError(c, fiber.StatusBadRequest, code, msg)
		}

		f, err := fh.Open()
		if err != nil {
			recordError(c, err)
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		if _, err := docSvc.Replace(c.UserContext(), c.Params("id"), f, fh.Filename); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DeleteDocument removes a stored document.
//
// @Summary Delete a document
// @Tags documents
// @Param id path string true "Document ID"
// @Success 204
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /storage/documents/{id} [delete]
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := docSvc.Delete(c.UserContext(), c.Params("id")); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// singleUpload returns the only part of a multipart body. Zero parts, an
// empty file, a non-file part or more than one part are rejected with the
// error code and message to send back.
func singleUpload(c *fiber.Ctx) (*multipart.FileHeader, string, string) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, "NO_DOCUMENT", msgNoDocument
	}

	var files []*multipart.FileHeader
	for _, fhs := range form.File {
		files = append(files, fhs...)
	}
	parts := len(files)
	for _, vs := range form.Value {
		parts += len(vs)
	}

	switch {
	case parts > 1:
		return nil, "MULTIPLE_DOCUMENTS", msgMultipleDocuments
	case len(files) == 0 || files[0].Size == 0:
		return nil, "NO_DOCUMENT", msgNoDocument
	}
	return files[0], "", ""
}

// writeServiceError maps document service failures to HTTP responses.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusBadRequest, "DOCUMENT_ID_MISSING", msgDocumentIDMissing)
	case errors.Is(err, storage.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "DOCUMENT_NOT_FOUND", msgDocumentNotFound)
	case errors.Is(err, storage.ErrExtensionMismatch):
		return writeError(c, fiber.StatusBadRequest, "EXTENSION_MISMATCH", msgExtensionMismatch)
	case errors.Is(err, storage.ErrInvalidFilename):
		return writeError(c, fiber.StatusBadRequest, "INVALID_FILENAME", msgInvalidFilename)
	default:
		recordError(c, err)
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
