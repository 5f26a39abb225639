// Package speech turns recorded answers into text through a speech-to-text
// provider.
package speech

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidAudio is returned when the provider rejects the audio payload.
var ErrInvalidAudio = errors.New("speech: invalid audio")

// Result is the first alternative of the first recognition result.
type Result struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Audio is a single recording to transcribe. A zero SampleRateHertz falls back
// to the configured rate.
type Audio struct {
	Content         []byte
	MimeType        string
	SampleRateHertz int
}

type Transcriber interface {
	Transcribe(ctx context.Context, a Audio) (Result, error)
	Close() error
}

type Config struct {
	LanguageCode    string
	SampleRateHertz int
	CredentialsFile string
	Timeout         time.Duration
}

// Disabled is used when no provider is configured. Every transcription is empty.
type Disabled struct{}

func (Disabled) Transcribe(context.Context, Audio) (Result, error) { return Result{}, nil }

func (Disabled) Close() error { return nil }
