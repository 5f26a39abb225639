package storage_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"

	"github.com/garnizeh/prepcoach/internal/storage"
)

func TestKey(t *testing.T) {
	k, err := storage.Key("uploads", "user-1", "file.pdf")
	if err != nil || k != "uploads/user-1/file.pdf" {
		t.Fatalf("unexpected key %q, %v", k, err)
	}

	for _, bad := range [][]string{{"uploads", ".."}, {"uploads", "a/b"}, {"uploads", ""}} {
		if _, err := storage.Key(bad...); !errors.Is(err, storage.ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey for %v, got %v", bad, err)
		}
	}
}

func TestLocalStorage_SaveSignDelete(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewLocal(storage.Config{BasePath: t.TempDir(), BaseURL: "http://files.local"})
	if err != nil {
		t.Fatalf("NewLocal error: %v", err)
	}

	key := "uploads/u1/a.txt"
	if err := s.Save(ctx, key, strings.NewReader("hello"), "text/plain"); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	b, err := os.ReadFile(s.Path(key))
	if err != nil || string(b) != "hello" {
		t.Fatalf("unexpected stored content %q, %v", b, err)
	}

	u, err := s.SignedURL(ctx, key, time.Hour)
	if err != nil {
		t.Fatalf("SignedURL error: %v", err)
	}
	if !strings.HasPrefix(u, "http://files.local/uploads/u1/a.txt?expires=") {
		t.Fatalf("unexpected url %q", u)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := os.Stat(s.Path(key)); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("deleting a missing key should succeed, got %v", err)
	}

	if err := s.Save(ctx, "../escape.txt", strings.NewReader("x"), ""); !errors.Is(err, storage.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey for traversal, got %v", err)
	}
}

func TestLocalStorage_Resolve(t *testing.T) {
	s, err := storage.NewLocal(storage.Config{BasePath: t.TempDir(), SigningKey: []byte("k1")})
	if err != nil {
		t.Fatalf("NewLocal error: %v", err)
	}
	key := "uploads/u1/a.txt"

	params := func(raw string) url.Values {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if u.Path != "/files/"+key {
			t.Fatalf("unexpected path %q", u.Path)
		}
		return u.Query()
	}

	q := params(mustSign(t, s, key, time.Hour))
	p, err := s.Resolve(key, q.Get("expires"), q.Get("signature"))
	if err != nil || p != s.Path(key) {
		t.Fatalf("Resolve: %q, %v", p, err)
	}

	if _, err := s.Resolve("uploads/u1/b.txt", q.Get("expires"), q.Get("signature")); !errors.Is(err, storage.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for another key, got %v", err)
	}
	if _, err := s.Resolve(key, "9999999999", q.Get("signature")); !errors.Is(err, storage.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for an extended expiry, got %v", err)
	}
	if _, err := s.Resolve(key, q.Get("expires"), "zz"); !errors.Is(err, storage.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for malformed signature, got %v", err)
	}

	q = params(mustSign(t, s, key, -time.Second))
	if _, err := s.Resolve(key, q.Get("expires"), q.Get("signature")); !errors.Is(err, storage.ErrLinkExpired) {
		t.Fatalf("expected ErrLinkExpired, got %v", err)
	}

	other, err := storage.NewLocal(storage.Config{BasePath: t.TempDir(), SigningKey: []byte("k2")})
	if err != nil {
		t.Fatalf("NewLocal error: %v", err)
	}
	q = params(mustSign(t, other, key, time.Hour))
	if _, err := s.Resolve(key, q.Get("expires"), q.Get("signature")); !errors.Is(err, storage.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for a foreign key, got %v", err)
	}
}

func mustSign(t *testing.T, s *storage.LocalStorage, key string, expiry time.Duration) string {
	t.Helper()
	u, err := s.SignedURL(context.Background(), key, expiry)
	if err != nil {
		t.Fatalf("SignedURL error: %v", err)
	}
	return u
}

// fakeS3 records object writes and deletes made through the path-style API.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string]string
	failWrite bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		if f.failWrite {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `<Error><Code>InternalError</Code><Message>boom</Message></Error>`)
			return
		}
		b, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = string(b)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newS3(t *testing.T, fake *fakeS3) *storage.S3Storage {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := storage.NewS3(storage.Config{
		Bucket:    "media",
		Region:    "us-east-1",
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
		Endpoint:  srv.URL,
	})
	if err != nil {
		t.Fatalf("NewS3 error: %v", err)
	}
	return s
}

func TestS3Storage_SaveAndDelete(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string]string{}}
	s := newS3(t, fake)

	if err := s.Save(ctx, "uploads/u1/a.txt", strings.NewReader("payload"), "text/plain"); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if got := fake.objects["/media/uploads/u1/a.txt"]; got != "payload" {
		t.Fatalf("unexpected stored object %q (objects: %v)", got, fake.objects)
	}

	if err := s.Delete(ctx, "uploads/u1/a.txt"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if len(fake.objects) != 0 {
		t.Fatalf("expected object removed, have %v", fake.objects)
	}
}

func TestS3Storage_SaveFailureIsReturned(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, failWrite: true}
	s := newS3(t, fake)

	if err := s.Save(context.Background(), "uploads/u1/a.txt", strings.NewReader("x"), ""); err == nil {
		t.Fatalf("expected upload error")
	}
}

func TestS3Storage_SignedURL(t *testing.T) {
	s := newS3(t, &fakeS3{objects: map[string]string{}})

	raw, err := s.SignedURL(context.Background(), "uploads/u1/a.txt", time.Hour)
	if err != nil {
		t.Fatalf("SignedURL error: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Path != "/media/uploads/u1/a.txt" {
		t.Fatalf("unexpected path %q", u.Path)
	}
	if got := u.Query().Get("X-Amz-Expires"); got != "3600" {
		t.Fatalf("expected 1h expiry, got %q", got)
	}
	if u.Query().Get("X-Amz-Signature") == "" {
		t.Fatalf("expected a signature in %q", raw)
	}
}

// fakeGCS speaks enough of the JSON API for object uploads and deletes.
type fakeGCS struct {
	mu       sync.Mutex
	objects  map[string]string
	sessions map[string]string
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Query().Get("uploadType") == "multipart":
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		var meta struct {
			Name string `json:"name"`
		}
		part, err := mr.NextPart()
		if err != nil || json.NewDecoder(part).Decode(&meta) != nil {
			http.Error(w, "bad metadata", http.StatusBadRequest)
			return
		}
		part, err = mr.NextPart()
		if err != nil {
			http.Error(w, "missing media", http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(part)
		f.store(w, objectName(r, meta.Name), b)
	case r.Method == http.MethodPost && r.URL.Query().Get("uploadType") == "resumable":
		var meta struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&meta)
		id := fmt.Sprintf("s%d", len(f.sessions)+1)
		f.sessions[id] = objectName(r, meta.Name)
		w.Header().Set("Location", "http://"+r.Host+"/upload/session/"+id)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/upload/session/"):
		name, ok := f.sessions[strings.TrimPrefix(r.URL.Path, "/upload/session/")]
		if !ok {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		b, _ := io.ReadAll(r.Body)
		f.store(w, name, b)
	case r.Method == http.MethodDelete:
		_, name, _ := strings.Cut(r.URL.Path, "/b/media/o/")
		if _, ok := f.objects[name]; !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"code":404,"message":"No such object"}}`)
			return
		}
		delete(f.objects, name)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unexpected request", http.StatusMethodNotAllowed)
	}
}

func (f *fakeGCS) store(w http.ResponseWriter, name string, b []byte) {
	f.objects[name] = string(b)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"bucket": "media",
		"name":   name,
		"size":   fmt.Sprint(len(b)),
	})
}

func objectName(r *http.Request, fallback string) string {
	if n := r.URL.Query().Get("name"); n != "" {
		return n
	}
	return fallback
}

func newGCS(t *testing.T, fake *fakeGCS) *storage.GCSStorage {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := storage.NewGCS(context.Background(), storage.Config{Bucket: "media"},
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("NewGCS error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGCSStorage_SaveAndDelete(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGCS{objects: map[string]string{}, sessions: map[string]string{}}
	s := newGCS(t, fake)

	if err := s.Save(ctx, "uploads/u1/a.txt", strings.NewReader("payload"), "text/plain"); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if got := fake.objects["uploads/u1/a.txt"]; got != "payload" {
		t.Fatalf("unexpected stored object %q (objects: %v)", got, fake.objects)
	}

	if err := s.Delete(ctx, "uploads/u1/a.txt"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if len(fake.objects) != 0 {
		t.Fatalf("expected object removed, have %v", fake.objects)
	}
	if err := s.Delete(ctx, "uploads/u1/a.txt"); err != nil {
		t.Fatalf("deleting a missing object should succeed, got %v", err)
	}
}

// brokenReader yields some bytes and then fails.
type brokenReader struct {
	sent bool
}

func (b *brokenReader) Read(p []byte) (int, error) {
	if !b.sent {
		b.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("client went away")
}

func TestGCSStorage_FailedCopyCommitsNothing(t *testing.T) {
	fake := &fakeGCS{objects: map[string]string{}, sessions: map[string]string{}}
	s := newGCS(t, fake)

	err := s.Save(context.Background(), "uploads/u1/a.txt", &brokenReader{}, "text/plain")
	if err == nil || !strings.Contains(err.Error(), "client went away") {
		t.Fatalf("expected copy error, got %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.objects) != 0 {
		t.Fatalf("partial upload committed: %v", fake.objects)
	}
}
