package mocks

import (
	"context"
	"io"

	"docstore/internal/model"
	"docstore/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

func (m *MockStorage) Create(ctx context.Context, r io.Reader, originalFilename string) (model.Document, error) {
	args := m.Called(ctx, r, originalFilename)
	if f, ok := args.Get(0).(func(context.Context, io.Reader, string) model.Document); ok {
		return f(ctx, r, originalFilename), args.Error(1)
	}
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockStorage) Open(ctx context.Context, id string) (io.ReadCloser, model.Document, error) {
	args := m.Called(ctx, id)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Get(1).(model.Document), args.Error(2)
}

func (m *MockStorage) Update(ctx context.Context, id string, r io.Reader, originalFilename string) (model.Document, error) {
	args := m.Called(ctx, id, r, originalFilename)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
