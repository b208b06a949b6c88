package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type Config struct {
	Bucket          string
	CredentialsFile string
	PublicBaseURL   string
	// EmulatorHost switches the client to an unauthenticated emulator (fake-gcs-server).
	EmulatorHost string
}

// Storage keeps blobs in a Google Cloud Storage bucket.
type Storage struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
}

func New(ctx context.Context, cfg Config) (*Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	switch {
	case cfg.EmulatorHost != "":
		opts = []option.ClientOption{
			option.WithoutAuthentication(),
			option.WithEndpoint(strings.TrimRight(cfg.EmulatorHost, "/") + "/storage/v1/"),
		}
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &Storage{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(key))); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gcs writer: %w", err)
	}
	return nil
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("open gcs object %q: %w", key, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("open gcs object %q: %w", key, err)
	}
	return r, nil
}

func (s *Storage) PublicURL(key string) string {
	return publicURL(s.publicBaseURL, s.bucket, key)
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func publicURL(base, bucket, key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if base != "" {
		return fmt.Sprintf("%s/%s/%s", base, bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
}
