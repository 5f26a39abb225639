package api

import (
	"net/http"
	"strconv"

	"github.com/garnizeh/prepcoach/internal/apperr"
	"github.com/garnizeh/prepcoach/internal/progress"
)

type ProgressHandler struct {
	svc *progress.Service
}

func NewProgressHandler(svc *progress.Service) *ProgressHandler {
	return &ProgressHandler{svc: svc}
}

// queryLimit parses ?limit=. Absent yields 0 so the service applies its default.
func queryLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Validation("limit must be an integer")
	}
	if n == 0 {
		return 0, apperr.Validation("limit must be between 1 and 50")
	}
	return n, nil
}

func (h *ProgressHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *ProgressHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	qs, err := h.svc.Recommendations(r.Context(), currentUser(r).ID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *ProgressHandler) StudyPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.svc.StudyPlan(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *ProgressHandler) UpdateMastery(w http.ResponseWriter, r *http.Request) {
	var in progress.MasteryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.UpdateMastery(r.Context(), currentUser(r).ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
