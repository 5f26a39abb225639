package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/garnizeh/prepcoach/internal/apperr"
	"github.com/garnizeh/prepcoach/internal/storage"
)

// FilesHandler serves objects of the local backend through the signed links
// LocalStorage.SignedURL hands out.
type FilesHandler struct {
	local *storage.LocalStorage
}

func NewFilesHandler(local *storage.LocalStorage) *FilesHandler {
	return &FilesHandler{local: local}
}

func (h *FilesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path, err := h.local.Resolve(mux.Vars(r)["key"], q.Get("expires"), q.Get("signature"))
	switch {
	case errors.Is(err, storage.ErrLinkExpired):
		writeError(w, r, apperr.Unauthorized("download link expired"))
		return
	case err != nil:
		writeError(w, r, apperr.Unauthorized("invalid download link"))
		return
	}

	if _, err := os.Stat(path); err != nil {
		writeError(w, r, apperr.NotFound("file not found"))
		return
	}
	http.ServeFile(w, r, path)
}
