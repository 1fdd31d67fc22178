package supabase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	storage_go "github.com/supabase-community/storage-go"

	"github.com/careconnect/backend/internal/domain/providers"
	"github.com/careconnect/backend/pkg/config"
	"github.com/careconnect/backend/pkg/retry"
)

// storageAPI is the subset of the storage-go client this package calls.
type storageAPI interface {
	ListFiles(bucketID string, queryPath string, options storage_go.FileSearchOptions) ([]storage_go.FileObject, error)
	DownloadFile(bucketID string, filePath string, urlOptions ...storage_go.UrlOptions) ([]byte, error)
}

// Storage reads patient documents from a single Supabase Storage bucket.
type Storage struct {
	api      storageAPI
	bucket   string
	retryCfg retry.Config
}

var _ providers.ObjectStorage = (*Storage)(nil)

// NewStorage builds a bucket reader from cfg. Service-role keys are sent
// both as bearer token and apikey header, as the storage gateway expects.
func NewStorage(cfg *config.StorageConfig) (*Storage, error) {
	if cfg == nil || !cfg.Enabled() {
		return nil, errors.New("supabase url and api key are required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("supabase bucket is required")
	}

	api := storage_go.NewClient(cfg.StorageEndpoint(), cfg.APIKey, map[string]string{"apikey": cfg.APIKey})
	return newStorage(api, cfg.Bucket, retry.QuickConfig()), nil
}

func newStorage(api storageAPI, bucket string, retryCfg retry.Config) *Storage {
	return &Storage{api: api, bucket: bucket, retryCfg: retryCfg}
}

// List returns the objects directly under prefix, newest first.
func (s *Storage) List(ctx context.Context, prefix string, opts providers.ListOptions) ([]providers.StorageObject, error) {
	var files []storage_go.FileObject
	err := retry.DoWithLog(ctx, s.retryCfg, "storage list",
		func() error {
			var err error
			files, err = s.api.ListFiles(s.bucket, prefix, storage_go.FileSearchOptions{
				Limit:         opts.Limit,
				Offset:        opts.Offset,
				SortByOptions: storage_go.SortBy{Column: "created_at", Order: "desc"},
			})
			return err
		},
		s.logRetry(prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", s.bucket, prefix, err)
	}

	objects := make([]providers.StorageObject, 0, len(files))
	for _, f := range files {
		objects = append(objects, providers.StorageObject{Name: f.Name, CreatedAt: f.CreatedAt})
	}
	return objects, nil
}

// Download fetches the object at path. Missing objects return
// providers.ErrObjectNotFound without retrying.
func (s *Storage) Download(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := retry.DoWithLog(ctx, s.retryCfg, "storage download",
		func() error {
			var err error
			data, err = s.api.DownloadFile(s.bucket, path)
			if err != nil && isNotFound(err) {
				return retry.Permanent(fmt.Errorf("%w: %v", providers.ErrObjectNotFound, err))
			}
			return err
		},
		s.logRetry(path),
	)
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", s.bucket, path, err)
	}
	return data, nil
}

func (s *Storage) logRetry(path string) func(int, error, time.Duration) {
	return func(attempt int, err error, nextDelay time.Duration) {
		log.Warn().Err(err).
			Str("bucket", s.bucket).
			Str("path", path).
			Int("attempt", attempt).
			Dur("retry_in", nextDelay).
			Msg("storage request failed")
	}
}

// storage-go surfaces gateway errors as plain messages.
func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}
