package supabase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	storage_go "github.com/supabase-community/storage-go"

	"github.com/careconnect/backend/internal/domain/providers"
	"github.com/careconnect/backend/pkg/config"
	"github.com/careconnect/backend/pkg/retry"
)

type mockStorageAPI struct {
	mock.Mock
}

func (m *mockStorageAPI) ListFiles(bucketID, queryPath string, options storage_go.FileSearchOptions) ([]storage_go.FileObject, error) {
	args := m.Called(bucketID, queryPath, options)
	files, _ := args.Get(0).([]storage_go.FileObject)
	return files, args.Error(1)
}

func (m *mockStorageAPI) DownloadFile(bucketID, filePath string, _ ...storage_go.UrlOptions) ([]byte, error) {
	args := m.Called(bucketID, filePath)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func testRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
}

func TestNewStorage_RequiresCredentials(t *testing.T) {
	_, err := NewStorage(&config.StorageConfig{URL: "https://x.supabase.co", Bucket: "b"})
	assert.Error(t, err)

	_, err = NewStorage(&config.StorageConfig{URL: "https://x.supabase.co", APIKey: "k"})
	assert.Error(t, err)

	s, err := NewStorage(&config.StorageConfig{URL: "https://x.supabase.co", APIKey: "k", Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", s.bucket)
}

func TestStorage_List(t *testing.T) {
	api := new(mockStorageAPI)
	api.On("ListFiles", "patient-documents", "p1", storage_go.FileSearchOptions{
		Limit:         100,
		SortByOptions: storage_go.SortBy{Column: "created_at", Order: "desc"},
	}).Return([]storage_go.FileObject{
		{Name: "note.pdf", CreatedAt: "2024-01-02T00:00:00Z"},
		{Name: "scan.png", CreatedAt: "2024-01-01T00:00:00Z"},
	}, nil)

	objects, err := newStorage(api, "patient-documents", testRetry()).
		List(context.Background(), "p1", providers.ListOptions{Limit: 100})
	require.NoError(t, err)

	assert.Equal(t, []providers.StorageObject{
		{Name: "note.pdf", CreatedAt: "2024-01-02T00:00:00Z"},
		{Name: "scan.png", CreatedAt: "2024-01-01T00:00:00Z"},
	}, objects)
}

func TestStorage_ListRetriesThenFails(t *testing.T) {
	api := new(mockStorageAPI)
	api.On("ListFiles", "b", "p1", mock.Anything).Return(nil, errors.New("connection reset"))

	_, err := newStorage(api, "b", testRetry()).List(context.Background(), "p1", providers.ListOptions{})
	assert.ErrorContains(t, err, "connection reset")
	api.AssertNumberOfCalls(t, "ListFiles", 3)
}

func TestStorage_Download(t *testing.T) {
	t.Run("retries transient failure", func(t *testing.T) {
		api := new(mockStorageAPI)
		api.On("DownloadFile", "b", "p1/note.pdf").Return(nil, errors.New("502 bad gateway")).Once()
		api.On("DownloadFile", "b", "p1/note.pdf").Return([]byte("%PDF-1.7"), nil).Once()

		data, err := newStorage(api, "b", testRetry()).Download(context.Background(), "p1/note.pdf")
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.7"), data)
	})

	t.Run("not found is not retried", func(t *testing.T) {
		api := new(mockStorageAPI)
		api.On("DownloadFile", "b", "p1/gone.pdf").Return(nil, errors.New("Object not found"))

		_, err := newStorage(api, "b", testRetry()).Download(context.Background(), "p1/gone.pdf")
		assert.ErrorIs(t, err, providers.ErrObjectNotFound)
		api.AssertNumberOfCalls(t, "DownloadFile", 1)
	})
}
