package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/prepcoach/internal/apperr"
	"github.com/garnizeh/prepcoach/internal/metrics"
	"github.com/garnizeh/prepcoach/internal/storage"
	"github.com/garnizeh/prepcoach/pkg/models"
	"github.com/garnizeh/prepcoach/pkg/repository"
)

// multipart bookkeeping allowed on top of the file itself
const multipartOverhead = 1 << 20

type MediaConfig struct {
	MaxUploadBytes int64
	PresignExpiry  time.Duration
	StorageTimeout time.Duration
}

type MediaHandler struct {
	repo    repository.MediaRepo
	objects storage.Storage
	metrics *metrics.Metrics
	cfg     MediaConfig
	now     func() time.Time
}

func NewMediaHandler(repo repository.MediaRepo, objects storage.Storage, m *metrics.Metrics, cfg MediaConfig) *MediaHandler {
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = time.Hour
	}
	return &MediaHandler{repo: repo, objects: objects, metrics: m, cfg: cfg, now: time.Now}
}

type presignedResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *MediaHandler) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.cfg.StorageTimeout > 0 {
		return context.WithTimeout(ctx, h.cfg.StorageTimeout)
	}
	return context.WithCancel(ctx)
}

func (h *MediaHandler) observe(err error) {
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	h.metrics.ObserveUpstream("storage", outcome)
}

// splitTags accepts repeated tags fields and comma separated lists.
func splitTags(values []string) []string {
	tags := []string{}
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// Upload stores the multipart "file" under uploads/{user}/ with a generated
// name and records its metadata.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, apperr.Validation("file too large"))
			return
		}
		writeError(w, r, apperr.Validation("invalid multipart body"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperr.Validation("file is required"))
		return
	}
	defer file.Close()
	if header.Size > h.cfg.MaxUploadBytes {
		writeError(w, r, apperr.Validation("file too large"))
		return
	}

	id := uuid.New()
	filename := id.String() + filepath.Ext(header.Filename)
	key, err := storage.Key("uploads", u.ID.String(), filename)
	if err != nil {
		writeError(w, r, apperr.Validation("invalid file name"))
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	sctx, cancel := h.storageCtx(r.Context())
	err = h.objects.Save(sctx, key, file, contentType)
	cancel()
	h.observe(err)
	if err != nil {
		writeError(w, r, apperr.Upstream("store file", err))
		return
	}

	m := &models.MediaFile{
		ID:               id,
		UserID:           u.ID,
		Filename:         filename,
		OriginalFilename: header.Filename,
		Category:         strings.TrimSpace(r.FormValue("category")),
		Tags:             splitTags(r.MultipartForm.Value["tags"]),
		UploadDate:       h.now().UTC(),
		FileType:         contentType,
		FileSize:         header.Size,
	}
	if err := h.repo.CreateMedia(r.Context(), m); err != nil {
		dctx, cancel := h.storageCtx(context.WithoutCancel(r.Context()))
		if derr := h.objects.Delete(dctx, key); derr != nil {
			logger.Error("orphaned media object", slog.String("key", key), slog.Any("err", derr))
		}
		cancel()
		writeError(w, r, apperr.Internal("save media metadata", err))
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	files, err := h.repo.ListMedia(r.Context(), currentUser(r).ID, qs.Get("category"), qs.Get("tag"))
	if err != nil {
		writeError(w, r, apperr.Internal("list media", err))
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *MediaHandler) owned(r *http.Request) (*models.MediaFile, string, error) {
	id, err := uuidVar(r, "id")
	if err != nil {
		return nil, "", err
	}
	u := currentUser(r)
	m, err := h.repo.GetMedia(r.Context(), u.ID, id)
	if err != nil {
		return nil, "", apperr.Internal("load media", err)
	}
	if m == nil {
		return nil, "", apperr.NotFound("file not found")
	}
	key, err := storage.Key("uploads", u.ID.String(), m.Filename)
	if err != nil {
		return nil, "", apperr.Internal("build media key", err)
	}
	return m, key, nil
}

// Get returns a time-limited download URL for one of the caller's files.
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, key, err := h.owned(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sctx, cancel := h.storageCtx(r.Context())
	url, err := h.objects.SignedURL(sctx, key, h.cfg.PresignExpiry)
	cancel()
	h.observe(err)
	if err != nil {
		writeError(w, r, apperr.Upstream("presign file", err))
		return
	}
	writeJSON(w, http.StatusOK, presignedResponse{URL: url, ExpiresAt: h.now().UTC().Add(h.cfg.PresignExpiry)})
}

// Delete removes the stored object first; the metadata row only goes once the
// object is gone.
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	m, key, err := h.owned(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sctx, cancel := h.storageCtx(r.Context())
	err = h.objects.Delete(sctx, key)
	cancel()
	h.observe(err)
	if err != nil {
		writeError(w, r, apperr.Upstream("delete file", err))
		return
	}

	if err := h.repo.DeleteMedia(r.Context(), m.UserID, m.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, apperr.NotFound("file not found"))
			return
		}
		writeError(w, r, apperr.Internal("delete media metadata", err))
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "File deleted successfully"})
}
