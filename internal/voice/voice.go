// Package voice stores spoken answers, transcribes them and scores the
// transcript against the question's keywords.
package voice

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/prepcoach/internal/apperr"
	"github.com/garnizeh/prepcoach/internal/metrics"
	"github.com/garnizeh/prepcoach/internal/storage"
	"github.com/garnizeh/prepcoach/pkg/models"
	"github.com/garnizeh/prepcoach/pkg/repository"
	"github.com/garnizeh/prepcoach/pkg/speech"
)

// Store is the persistence the service reads and writes.
type Store interface {
	repository.QuestionRepo
	repository.RecordingRepo
}

type Service struct {
	store          Store
	objects        storage.Storage
	transcriber    speech.Transcriber
	metrics        *metrics.Metrics
	logger         *slog.Logger
	storageTimeout time.Duration
	now            func() time.Time
}

// New wires the service. A zero storageTimeout leaves object store calls
// bounded only by the request context.
func New(store Store, objects storage.Storage, transcriber speech.Transcriber, m *metrics.Metrics, storageTimeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if transcriber == nil {
		transcriber = speech.Disabled{}
	}
	return &Service{
		store:          store,
		objects:        objects,
		transcriber:    transcriber,
		metrics:        m,
		logger:         logger,
		storageTimeout: storageTimeout,
		now:            time.Now,
	}
}

func (s *Service) question(ctx context.Context, id uuid.UUID) (*models.InterviewQuestion, error) {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, apperr.Internal("load question", err)
	}
	if q == nil {
		return nil, apperr.NotFound("question not found")
	}
	return q, nil
}

// AnalyzeResponse scores transcript against the keywords of questionID.
func (s *Service) AnalyzeResponse(ctx context.Context, questionID uuid.UUID, transcript string) (*Analysis, error) {
	q, err := s.question(ctx, questionID)
	if err != nil {
		return nil, err
	}
	a := Analyze(transcript, q.Keywords)
	return &a, nil
}

type RecordingInput struct {
	UserID     uuid.UUID
	QuestionID uuid.UUID
	Audio      []byte
}

type RecordingResult struct {
	Recording  models.VoiceRecording `json:"recording"`
	Confidence float64               `json:"confidence"`
	Analysis   Analysis              `json:"analysis"`
}

func (s *Service) withStorageTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storageTimeout > 0 {
		return context.WithTimeout(ctx, s.storageTimeout)
	}
	return context.WithCancel(ctx)
}

// SaveRecording transcribes a WAV answer, stores the audio under
// recordings/{user}/ and persists the recording with its transcript. When the
// metadata write fails the stored object is removed again.
func (s *Service) SaveRecording(ctx context.Context, in RecordingInput) (*RecordingResult, error) {
	q, err := s.question(ctx, in.QuestionID)
	if err != nil {
		return nil, err
	}
	info, err := readWAV(in.Audio)
	if err != nil {
		return nil, apperr.Validation(ErrNotWAV.Error())
	}

	res, err := s.transcriber.Transcribe(ctx, speech.Audio{Content: in.Audio, MimeType: "audio/wav", SampleRateHertz: info.SampleRate})
	if err != nil {
		s.metrics.ObserveUpstream("speech", metrics.OutcomeError)
		if errors.Is(err, speech.ErrInvalidAudio) {
			return nil, apperr.Validation("audio could not be transcribed")
		}
		return nil, apperr.Upstream("transcribe audio", err)
	}
	s.metrics.ObserveUpstream("speech", metrics.OutcomeOK)

	rec := models.VoiceRecording{
		ID:              uuid.New(),
		UserID:          in.UserID,
		QuestionID:      in.QuestionID,
		DurationSeconds: info.Seconds,
		CreatedAt:       s.now().UTC(),
	}
	if res.Transcript != "" {
		t := res.Transcript
		rec.Transcript = &t
	}
	key, err := storage.Key("recordings", in.UserID.String(), rec.ID.String()+".wav")
	if err != nil {
		return nil, apperr.Internal("build recording key", err)
	}
	rec.FilePath = key

	sctx, cancel := s.withStorageTimeout(ctx)
	err = s.objects.Save(sctx, key, bytes.NewReader(in.Audio), "audio/wav")
	cancel()
	if err != nil {
		s.metrics.ObserveUpstream("storage", metrics.OutcomeError)
		return nil, apperr.Upstream("store recording", err)
	}
	s.metrics.ObserveUpstream("storage", metrics.OutcomeOK)

	if err := s.store.CreateRecording(ctx, &rec); err != nil {
		dctx, cancel := s.withStorageTimeout(context.WithoutCancel(ctx))
		if derr := s.objects.Delete(dctx, key); derr != nil {
			s.logger.Error("orphaned recording object", slog.String("key", key), slog.Any("err", derr))
		}
		cancel()
		return nil, apperr.Internal("save recording", err)
	}

	s.logger.Info("recording saved",
		slog.String("recording_id", rec.ID.String()),
		slog.String("question_id", in.QuestionID.String()),
		slog.Float64("duration_seconds", rec.DurationSeconds),
	)
	return &RecordingResult{
		Recording:  rec,
		Confidence: res.Confidence,
		Analysis:   Analyze(res.Transcript, q.Keywords),
	}, nil
}

// Recordings lists the user's recordings, newest first, optionally for one question.
func (s *Service) Recordings(ctx context.Context, userID uuid.UUID, questionID *uuid.UUID) ([]models.VoiceRecording, error) {
	recs, err := s.store.ListRecordings(ctx, userID, questionID)
	if err != nil {
		return nil, apperr.Internal("list recordings", err)
	}
	return recs, nil
}
