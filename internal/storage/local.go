package storage

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var (
	// ErrLinkExpired is returned for a download link past its expiry.
	ErrLinkExpired = errors.New("download link expired")
	// ErrBadSignature is returned for a download link not signed by this store.
	ErrBadSignature = errors.New("download link signature mismatch")
)

// LocalStorage keeps objects on the filesystem. Download links are signed
// with an HMAC over the key and expiry and served by the API under /files.
type LocalStorage struct {
	basePath   string
	baseURL    string
	signingKey []byte
	now        func() time.Time
}

func NewLocal(cfg Config) (*LocalStorage, error) {
	if cfg.BasePath == "" {
		cfg.BasePath = "./media/uploads"
	}

	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	key := cfg.SigningKey
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
	}

	return &LocalStorage{basePath: cfg.BasePath, baseURL: cfg.BaseURL, signingKey: key, now: time.Now}, nil
}

func (s *LocalStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		_ = os.Remove(fullPath)
		return fmt.Errorf("failed to write file: %w", err)
	}

	return file.Close()
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(key))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// SignedURL returns a link valid until expiry elapses. Resolve checks it.
func (s *LocalStorage) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}

	base := s.baseURL
	if base == "" {
		base = "/files"
	}
	expires := strconv.FormatInt(s.now().Add(expiry).Unix(), 10)
	q := url.Values{}
	q.Set("expires", expires)
	q.Set("signature", s.sign(key, expires))

	return base + "/" + key + "?" + q.Encode(), nil
}

// Resolve validates the expires and signature parameters of a link issued by
// SignedURL and returns the file path for key.
func (s *LocalStorage) Resolve(key, expires, signature string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return "", ErrBadSignature
	}
	want, _ := hex.DecodeString(s.sign(key, expires))
	if !hmac.Equal(got, want) {
		return "", ErrBadSignature
	}

	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return "", ErrBadSignature
	}
	if !s.now().Before(time.Unix(exp, 0)) {
		return "", ErrLinkExpired
	}
	return s.Path(key), nil
}

func (s *LocalStorage) sign(key, expires string) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(key))
	mac.Write([]byte{0})
	mac.Write([]byte(expires))
	return hex.EncodeToString(mac.Sum(nil))
}

// Path returns where key lives on disk.
func (s *LocalStorage) Path(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}
