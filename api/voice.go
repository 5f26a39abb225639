package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/garnizeh/prepcoach/internal/apperr"
	"github.com/garnizeh/prepcoach/internal/voice"
)

type VoiceHandler struct {
	svc            *voice.Service
	maxUploadBytes int64
}

func NewVoiceHandler(svc *voice.Service, maxUploadBytes int64) *VoiceHandler {
	return &VoiceHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

type analyzeRequest struct {
	Transcript string `json:"transcript"`
	QuestionID string `json:"question_id"`
}

// CreateRecording expects a multipart form with an "audio" WAV file and a
// "question_id" field.
func (h *VoiceHandler) CreateRecording(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, apperr.Validation("audio too large"))
			return
		}
		writeError(w, r, apperr.Validation("invalid multipart body"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	qid, err := parseUUID(r.FormValue("question_id"), "question_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, r, apperr.Validation("audio is required"))
		return
	}
	defer file.Close()
	if header.Size > h.maxUploadBytes {
		writeError(w, r, apperr.Validation("audio too large"))
		return
	}
	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, apperr.Validation("could not read audio"))
		return
	}

	res, err := h.svc.SaveRecording(r.Context(), voice.RecordingInput{
		UserID:     currentUser(r).ID,
		QuestionID: qid,
		Audio:      audio,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *VoiceHandler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	var qid *uuid.UUID
	if v := r.URL.Query().Get("question_id"); v != "" {
		id, err := parseUUID(v, "question_id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		qid = &id
	}
	recs, err := h.svc.Recordings(r.Context(), currentUser(r).ID, qid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *VoiceHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	qid, err := parseUUID(req.QuestionID, "question_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.svc.AnalyzeResponse(r.Context(), qid, req.Transcript)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
