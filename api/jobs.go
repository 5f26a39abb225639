package api

import (
	"net/http"
	"strings"

	"github.com/garnizeh/prepcoach/internal/jobservice"
)

type JobsHandler struct {
	svc *jobservice.Service
}

func NewJobsHandler(svc *jobservice.Service) *JobsHandler {
	return &JobsHandler{svc: svc}
}

func (h *JobsHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jobs, err := h.svc.Recommended(r.Context(), currentUser(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// Search takes keywords either repeated (?keywords=a&keywords=b) or comma
// separated.
func (h *JobsHandler) Search(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	var keywords []string
	for _, v := range qs["keywords"] {
		keywords = append(keywords, strings.Split(v, ",")...)
	}
	jobs, err := h.svc.Search(r.Context(), currentUser(r), jobservice.SearchInput{
		Keywords:        keywords,
		Location:        qs.Get("location"),
		ExperienceLevel: qs.Get("experience_level"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *JobsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var in jobservice.ApplyInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	app, err := h.svc.Apply(r.Context(), currentUser(r).ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (h *JobsHandler) Applications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.svc.Applications(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *JobsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in jobservice.StatusInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	app, err := h.svc.UpdateStatus(r.Context(), currentUser(r).ID, id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
