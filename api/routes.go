package api

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"

	"github.com/garnizeh/prepcoach/internal/auth"
	"github.com/garnizeh/prepcoach/internal/config"
	"github.com/garnizeh/prepcoach/internal/jobservice"
	"github.com/garnizeh/prepcoach/internal/metrics"
	"github.com/garnizeh/prepcoach/internal/progress"
	"github.com/garnizeh/prepcoach/internal/storage"
	"github.com/garnizeh/prepcoach/internal/voice"
	"github.com/garnizeh/prepcoach/pkg/repository"
)

// Deps are the services the routes are built on.
type Deps struct {
	Repo     repository.Repository
	Auth     *auth.Service
	Progress *progress.Service
	Jobs     *jobservice.Service
	Voice    *voice.Service
	Objects  storage.Storage
	Metrics  *metrics.Metrics
	// Files is set when objects live on the local disk; its signed links are
	// served under /files.
	Files *storage.LocalStorage
}

// SetupRoutes returns the full handler. Request ids, logging, recovery and
// CORS wrap the router so preflight requests never reach route matching.
func SetupRoutes(cfg *config.Config, version, buildTime string, d Deps) http.Handler {
	r := mux.NewRouter()
	r.Use(d.Metrics.Middleware)

	systemHandler := &SystemHandler{}
	usersHandler := NewUsersHandler(d.Auth)
	interviewHandler := NewInterviewHandler(d.Repo, d.Repo, d.Repo)
	progressHandler := NewProgressHandler(d.Progress)
	jobsHandler := NewJobsHandler(d.Jobs)
	voiceHandler := NewVoiceHandler(d.Voice, cfg.MaxUploadBytes)
	mediaHandler := NewMediaHandler(d.Repo, d.Objects, d.Metrics, MediaConfig{
		MaxUploadBytes: cfg.MaxUploadBytes,
		PresignExpiry:  cfg.Storage.PresignExpiry,
		StorageTimeout: cfg.Storage.Timeout,
	})

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.Handle("/metrics", d.Metrics.Handler()).Methods("GET")
	r.HandleFunc("/users/register", usersHandler.Register).Methods("POST")
	r.HandleFunc("/users/token", usersHandler.Token).Methods("POST")
	if d.Files != nil {
		r.HandleFunc("/files/{key:.+}", NewFilesHandler(d.Files).Serve).Methods("GET")
	}

	// Protected routes
	protected := r.NewRoute().Subrouter()
	protected.Use(AuthMiddleware(d.Auth))

	protected.HandleFunc("/users/me", usersHandler.Me).Methods("GET")
	protected.HandleFunc("/users/me", usersHandler.UpdateMe).Methods("PUT")
	protected.HandleFunc("/users/me/skills", usersHandler.UpdateSkills).Methods("PUT")
	protected.HandleFunc("/users/me/preferences", usersHandler.UpdatePreferences).Methods("PUT")
	protected.HandleFunc("/users/me/progress", usersHandler.Progress).Methods("GET")

	protected.HandleFunc("/interview/questions", interviewHandler.CreateQuestion).Methods("POST")
	protected.HandleFunc("/interview/questions", interviewHandler.ListQuestions).Methods("GET")
	protected.HandleFunc("/interview/questions/{id}", interviewHandler.GetQuestion).Methods("GET")
	protected.HandleFunc("/interview/questions/{id}/like", interviewHandler.LikeQuestion).Methods("POST")
	protected.HandleFunc("/interview/answers", interviewHandler.SubmitAnswer).Methods("POST")
	protected.HandleFunc("/interview/progress", interviewHandler.ListProgress).Methods("GET")

	protected.HandleFunc("/progress/statistics", progressHandler.Statistics).Methods("GET")
	protected.HandleFunc("/progress/recommendations", progressHandler.Recommendations).Methods("GET")
	protected.HandleFunc("/progress/study-plan", progressHandler.StudyPlan).Methods("GET")
	protected.HandleFunc("/progress/mastery", progressHandler.UpdateMastery).Methods("PUT")

	protected.HandleFunc("/media/upload", mediaHandler.Upload).Methods("POST")
	protected.HandleFunc("/media/files", mediaHandler.List).Methods("GET")
	protected.HandleFunc("/media/files/{id}", mediaHandler.Get).Methods("GET")
	protected.HandleFunc("/media/files/{id}", mediaHandler.Delete).Methods("DELETE")

	protected.HandleFunc("/jobs/recommendations", jobsHandler.Recommendations).Methods("GET")
	protected.HandleFunc("/jobs/search", jobsHandler.Search).Methods("GET")
	protected.HandleFunc("/jobs/applications", jobsHandler.Apply).Methods("POST")
	protected.HandleFunc("/jobs/applications", jobsHandler.Applications).Methods("GET")
	protected.HandleFunc("/jobs/applications/{id}", jobsHandler.UpdateStatus).Methods("PUT")

	protected.HandleFunc("/voice/recordings", voiceHandler.CreateRecording).Methods("POST")
	protected.HandleFunc("/voice/recordings", voiceHandler.ListRecordings).Methods("GET")
	protected.HandleFunc("/voice/analyze", voiceHandler.Analyze).Methods("POST")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Code: "not_found", Message: "route not found"}})
	})

	var h http.Handler = r
	h = CORSMiddleware(cfg.CORSOrigins)(h)
	h = RecoveryMiddleware(h)
	h = LoggingMiddleware(h)
	h = middleware.RequestID(h)
	return h
}
