package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docstore/internal/model"
	"docstore/internal/storage"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrReaderNil  = errors.New("reader is nil")
)

const tracerName = "docstore/internal/service"

// Download is an open document. Body must be closed by the caller.
type Download struct {
	Body io.ReadCloser
	model.Document
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload stores the content under a newly generated ID.
	// originalFilename is used only for its extension.
	Upload(ctx context.Context, r io.Reader, originalFilename string) (*model.Document, error)

	// Download opens the stored content of a document.
	Download(ctx context.Context, id string) (*Download, error)

	// Replace overwrites a document. The new filename must carry the same extension.
	Replace(ctx context.Context, id string, r io.Reader, originalFilename string) (*model.Document, error)

	// Delete removes a document.
	Delete(ctx context.Context, id string) error
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store   storage.Storage
	metrics *Metrics
	tracer  trace.Tracer
}

// NewDocumentService constructs a new DocumentService. metrics may be nil.
func NewDocumentService(store storage.Storage, metrics *Metrics) DocumentService {
	return &documentService{
		store:   store,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, originalFilename string) (doc *model.Document, err error) {
	ctx, span := s.tracer.Start(ctx, "DocumentService.Upload",
		trace.WithAttributes(attribute.String("document.original_filename", originalFilename)))
	defer func() { s.finish(span, opUpload, err) }()

	if r == nil {
		return nil, ErrReaderNil
	}
	stored, err := s.store.Create(ctx, r, originalFilename)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	span.SetAttributes(
		attribute.String("document.id", stored.ID),
		attribute.String("document.extension", stored.Extension),
		attribute.Int64("document.size", stored.Size),
	)
	s.metrics.written(stored.Size)
	return &stored, nil
}

func (s *documentService) Download(ctx context.Context, id string) (dl *Download, err error) {
	ctx, span := s.tracer.Start(ctx, "DocumentService.Download",
		trace.WithAttributes(attribute.String("document.id", id)))
	defer func() { s.finish(span, opDownload, err) }()

	if id == "" {
		return nil, ErrIDRequired
	}
	body, doc, err := s.store.Open(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	span.SetAttributes(attribute.Int64("document.size", doc.Size))
	return &Download{Body: body, Document: doc}, nil
}

func (s *documentService) Replace(ctx context.Context, id string, r io.Reader, originalFilename string) (doc *model.Document, err error) {
	ctx, span := s.tracer.Start(ctx, "DocumentService.Replace",
		trace.WithAttributes(
			attribute.String("document.id", id),
			attribute.String("document.original_filename", originalFilename),
		))
	defer func() { s.finish(span, opReplace, err) }()

	if id == "" {
		return nil, ErrIDRequired
	}
	if r == nil {
		return nil, ErrReaderNil
	}
	stored, err := s.store.Update(ctx, id, r, originalFilename)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	s.metrics.written(stored.Size)
	return &stored, nil
}

func (s *documentService) Delete(ctx context.Context, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "DocumentService.Delete",
		trace.WithAttributes(attribute.String("document.id", id)))
	defer func() { s.finish(span, opDelete, err) }()

	if id == "" {
		return ErrIDRequired
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *documentService) finish(span trace.Span, op string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	s.metrics.observe(op, err)
}
