package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/garnizeh/prepcoach/internal/apperr"
	"github.com/garnizeh/prepcoach/internal/validate"
	"github.com/garnizeh/prepcoach/pkg/models"
	"github.com/garnizeh/prepcoach/pkg/repository"
)

const (
	defaultQuestionLimit = 10
	maxQuestionLimit     = 50
)

type InterviewHandler struct {
	questions repository.QuestionRepo
	answers   repository.AnswerRepo
	progress  repository.ProgressRepo
	validator *validate.Validator
}

func NewInterviewHandler(q repository.QuestionRepo, a repository.AnswerRepo, p repository.ProgressRepo) *InterviewHandler {
	return &InterviewHandler{questions: q, answers: a, progress: p, validator: validate.New()}
}

type questionRequest struct {
	Category     string   `json:"category" validate:"required,max=100"`
	Difficulty   string   `json:"difficulty" validate:"required,max=50"`
	Title        string   `json:"title" validate:"required,max=300"`
	Description  string   `json:"description" validate:"required"`
	SampleAnswer string   `json:"sample_answer"`
	Keywords     []string `json:"keywords"`
	Tags         []string `json:"tags"`
	CompanyTags  []string `json:"company_tags"`
}

type answerRequest struct {
	QuestionID        string   `json:"question_id" validate:"required,uuid"`
	AnswerText        string   `json:"answer_text" validate:"required"`
	VoiceRecordingURL *string  `json:"voice_recording_url"`
	Feedback          *string  `json:"feedback"`
	ConfidenceScore   *float64 `json:"confidence_score" validate:"omitempty,gte=0,lte=1"`
}

func (h *InterviewHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	q := models.NewQuestion()
	q.Category = strings.TrimSpace(req.Category)
	q.Difficulty = strings.TrimSpace(req.Difficulty)
	q.Title = req.Title
	q.Description = req.Description
	q.SampleAnswer = req.SampleAnswer
	if req.Keywords != nil {
		q.Keywords = req.Keywords
	}
	if req.Tags != nil {
		q.Tags = req.Tags
	}
	if req.CompanyTags != nil {
		q.CompanyTags = req.CompanyTags
	}

	if err := h.questions.CreateQuestion(r.Context(), q); err != nil {
		writeError(w, r, apperr.Internal("create question", err))
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// ListQuestions filters by category, difficulty, tag and company, all of
// which must match.
func (h *InterviewHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	limit := defaultQuestionLimit
	if v := qs.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxQuestionLimit {
			writeError(w, r, apperr.Validation("limit must be between 1 and 50"))
			return
		}
		limit = n
	}

	list, err := h.questions.ListQuestions(r.Context(), repository.QuestionFilter{
		Category:   qs.Get("category"),
		Difficulty: qs.Get("difficulty"),
		Tag:        qs.Get("tag"),
		Company:    qs.Get("company"),
		Limit:      limit,
	})
	if err != nil {
		writeError(w, r, apperr.Internal("list questions", err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetQuestion counts a view and returns the question.
func (h *InterviewHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.questions.IncrementViews(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, apperr.NotFound("question not found"))
			return
		}
		writeError(w, r, apperr.Internal("count view", err))
		return
	}
	q, err := h.questions.GetQuestion(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Internal("load question", err))
		return
	}
	if q == nil {
		writeError(w, r, apperr.NotFound("question not found"))
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *InterviewHandler) LikeQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.questions.IncrementLikes(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, apperr.NotFound("question not found"))
			return
		}
		writeError(w, r, apperr.Internal("like question", err))
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Question liked successfully"})
}

// SubmitAnswer stores an answer for the caller and bumps their progress on
// the question.
func (h *InterviewHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	qid, err := parseUUID(req.QuestionID, "question_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	a := models.NewAnswer(currentUser(r).ID, qid, req.AnswerText)
	a.VoiceRecordingURL = req.VoiceRecordingURL
	a.Feedback = req.Feedback
	a.ConfidenceScore = req.ConfidenceScore

	if _, err := h.answers.SubmitAnswer(r.Context(), a); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, apperr.NotFound("question not found"))
			return
		}
		writeError(w, r, apperr.Internal("submit answer", err))
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *InterviewHandler) ListProgress(w http.ResponseWriter, r *http.Request) {
	list, err := h.progress.ListProgress(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, apperr.Internal("list progress", err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}
