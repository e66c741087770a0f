package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"docstore/internal/storage"
)

const (
	opUpload   = "upload"
	opDownload = "download"
	opReplace  = "replace"
	opDelete   = "delete"
)

// Metrics counts document operations by outcome.
type Metrics struct {
	operations   *prometheus.CounterVec
	bytesWritten prometheus.Counter
}

// NewMetrics creates the document metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docstore",
				Name:      "document_operations_total",
				Help:      "Document operations by operation and result.",
			},
			[]string{"operation", "result"},
		),
		bytesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "docstore",
				Name:      "document_bytes_written_total",
				Help:      "Bytes written to the store by uploads and replacements.",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.operations, m.bytesWritten} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, resultOf(err)).Inc()
}

func (m *Metrics) written(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesWritten.Add(float64(n))
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, storage.ErrExtensionMismatch):
		return "extension_mismatch"
	case errors.Is(err, storage.ErrInvalidFilename), errors.Is(err, ErrIDRequired), errors.Is(err, ErrReaderNil):
		return "invalid"
	default:
		return "error"
	}
}
