package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"docstore/internal/model"
	"docstore/internal/storage"
	storeMocks "docstore/internal/storage/mocks"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name             string
		originalFilename string
		setupMocks       func(mStore *storeMocks.MockStorage) io.Reader
		wantErr          error
		wantErrMsg       string
	}{
		{
			name:             "happy path",
			originalFilename: "report.pdf",
			setupMocks: func(mStore *storeMocks.MockStorage) io.Reader {
				r := strings.NewReader("hello world")
				mStore.On("Create", mock.Anything, r, "report.pdf").
					Return(model.Document{ID: "gen-id", Filename: "gen-id.pdf", Extension: ".pdf", Size: 11}, nil)
				return r
			},
		},
		{
			name:             "validation error - nil reader",
			originalFilename: "report.pdf",
			setupMocks: func(mStore *storeMocks.MockStorage) io.Reader {
				return nil
			},
			wantErr: ErrReaderNil,
		},
		{
			name:             "invalid filename passes through",
			originalFilename: "README",
			setupMocks: func(mStore *storeMocks.MockStorage) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Create", mock.Anything, r, "README").
					Return(model.Document{}, storage.ErrInvalidFilename)
				return r
			},
			wantErr: storage.ErrInvalidFilename,
		},
		{
			name:             "storage error",
			originalFilename: "report.pdf",
			setupMocks: func(mStore *storeMocks.MockStorage) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Create", mock.Anything, r, mock.Anything).
					Return(model.Document{}, errors.New("disk full"))
				return r
			},
			wantErrMsg: "create document: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			svc := NewDocumentService(mStore, nil)

			r := tt.setupMocks(mStore)

			doc, err := svc.Upload(ctx, r, tt.originalFilename)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, doc)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, doc)
				assert.Equal(t, "gen-id", doc.ID)
			}

			mStore.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Download(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		setupMocks func(mStore *storeMocks.MockStorage)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				body := io.NopCloser(strings.NewReader("content"))
				mStore.On("Open", mock.Anything, "valid-id").
					Return(body, model.Document{ID: "valid-id", Filename: "valid-id.txt", Size: 7}, nil)
			},
		},
		{
			name:       "validation - empty id",
			id:         "",
			setupMocks: func(mStore *storeMocks.MockStorage) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "not found",
			id:   "missing-id",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Open", mock.Anything, "missing-id").
					Return(nil, model.Document{}, storage.ErrNotFound)
			},
			wantErr: storage.ErrNotFound,
		},
		{
			name: "io failure",
			id:   "vanished-id",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Open", mock.Anything, "vanished-id").
					Return(nil, model.Document{}, storage.ErrIO)
			},
			wantErr: storage.ErrIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			svc := NewDocumentService(mStore, nil)

			tt.setupMocks(mStore)

			dl, err := svc.Download(ctx, tt.id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, dl)
			} else {
				require.NoError(t, err)
				defer dl.Body.Close()
				b, err := io.ReadAll(dl.Body)
				require.NoError(t, err)
				assert.Equal(t, "content", string(b))
				assert.Equal(t, "valid-id.txt", dl.Filename)
				assert.Equal(t, int64(7), dl.Size)
			}
			mStore.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Replace(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		nilReader  bool
		setupMocks func(mStore *storeMocks.MockStorage)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Update", mock.Anything, "valid-id", mock.Anything, "new.pdf").
					Return(model.Document{ID: "valid-id", Filename: "valid-id.pdf", Size: 3}, nil)
			},
		},
		{
			name:       "validation - empty id",
			id:         "",
			setupMocks: func(mStore *storeMocks.MockStorage) {},
			wantErr:    ErrIDRequired,
		},
		{
			name:       "validation - nil reader",
			id:         "valid-id",
			nilReader:  true,
			setupMocks: func(mStore *storeMocks.MockStorage) {},
			wantErr:    ErrReaderNil,
		},
		{
			name: "extension mismatch",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Update", mock.Anything, "valid-id", mock.Anything, "new.pdf").
					Return(model.Document{}, storage.ErrExtensionMismatch)
			},
			wantErr: storage.ErrExtensionMismatch,
		},
		{
			name: "not found",
			id:   "missing-id",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Update", mock.Anything, "missing-id", mock.Anything, "new.pdf").
					Return(model.Document{}, storage.ErrNotFound)
			},
			wantErr: storage.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			svc := NewDocumentService(mStore, nil)

			tt.setupMocks(mStore)

			var r io.Reader = strings.NewReader("new")
			if tt.nilReader {
				r = nil
			}
			doc, err := svc.Replace(ctx, tt.id, r, "new.pdf")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, doc)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, doc)
				assert.Equal(t, tt.id, doc.ID)
			}
			mStore.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Delete(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		setupMocks func(mStore *storeMocks.MockStorage)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Delete", mock.Anything, "valid-id").Return(nil)
			},
		},
		{
			name:       "validation - empty id",
			id:         "",
			setupMocks: func(mStore *storeMocks.MockStorage) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "not found",
			id:   "missing-id",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Delete", mock.Anything, "missing-id").Return(storage.ErrNotFound)
			},
			wantErr: storage.ErrNotFound,
		},
		{
			name: "storage delete error",
			id:   "locked-id",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Delete", mock.Anything, "locked-id").Return(storage.ErrIO)
			},
			wantErr: storage.ErrIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			svc := NewDocumentService(mStore, nil)

			tt.setupMocks(mStore)

			err := svc.Delete(ctx, tt.id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			mStore.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Metrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	mStore := new(storeMocks.MockStorage)
	svc := NewDocumentService(mStore, metrics)

	mStore.On("Create", mock.Anything, mock.Anything, "a.pdf").
		Return(model.Document{ID: "id-1", Size: 5}, nil).Once()
	mStore.On("Update", mock.Anything, "id-1", mock.Anything, "a.txt").
		Return(model.Document{}, storage.ErrExtensionMismatch).Once()
	mStore.On("Delete", mock.Anything, "id-2").Return(storage.ErrNotFound).Once()

	_, err = svc.Upload(ctx, strings.NewReader("hello"), "a.pdf")
	require.NoError(t, err)
	_, err = svc.Replace(ctx, "id-1", strings.NewReader("bye"), "a.txt")
	require.Error(t, err)
	require.Error(t, svc.Delete(ctx, "id-2"))
	require.Error(t, svc.Delete(ctx, ""))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.operations.WithLabelValues(opUpload, "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.operations.WithLabelValues(opReplace, "extension_mismatch")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.operations.WithLabelValues(opDelete, "not_found")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.operations.WithLabelValues(opDelete, "invalid")))
	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.bytesWritten))
	mStore.AssertExpectations(t)

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice on one registry must fail")
}
