// Package storage stores uploaded objects and hands out time-limited URLs
// for them. Backends: S3 (and S3-compatible endpoints), Google Cloud Storage
// and the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Storage is what the media and voice features need from an object store.
type Storage interface {
	// Save stores the content of r under key.
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// SignedURL returns a URL granting read access to key until expiry elapses.
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type Config struct {
	Backend   string // s3, gcs, local
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
	BasePath  string
	BaseURL   string
	// SigningKey signs local download links. A random key is used when empty.
	SigningKey []byte
}

// ErrInvalidKey is returned for keys that are empty or escape their prefix.
var ErrInvalidKey = errors.New("invalid object key")

// New builds the backend named by cfg.Backend.
func New(ctx context.Context, cfg Config, gcsOpts ...GCSOption) (Storage, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3(cfg)
	case "gcs":
		return NewGCS(ctx, cfg, gcsOpts...)
	case "local":
		return NewLocal(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// Key joins parts into an object key and rejects anything that would climb
// out of the first segment.
func Key(parts ...string) (string, error) {
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `/\`) {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, p)
		}
	}
	return path.Join(parts...), nil
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
