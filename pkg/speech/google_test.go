package speech

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGoogle_Transcribe_FirstAlternative(t *testing.T) {
	var got *speechpb.RecognizeRequest
	g := newGoogle(Config{SampleRateHertz: 16000, Timeout: time.Second}, nil, func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		got = req
		if _, ok := ctx.Deadline(); !ok {
			t.Errorf("expected a deadline on the recognize call")
		}
		return &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{
				{Transcript: "use a hash map", Confidence: 0.5},
				{Transcript: "use a hash nap", Confidence: 0.25},
			}},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "second", Confidence: 1}}},
		}}, nil
	})

	res, err := g.Transcribe(context.Background(), Audio{Content: []byte{1, 2, 3}, MimeType: "audio/wav"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Transcript != "use a hash map" || res.Confidence != 0.5 {
		t.Fatalf("unexpected result: %+v", res)
	}
	cfg := got.GetConfig()
	if cfg.GetEncoding() != speechpb.RecognitionConfig_LINEAR16 {
		t.Fatalf("encoding: got %v", cfg.GetEncoding())
	}
	if cfg.GetLanguageCode() != "en-US" || !cfg.GetEnableAutomaticPunctuation() {
		t.Fatalf("unexpected config: %v", cfg)
	}
	if cfg.GetSampleRateHertz() != 16000 {
		t.Fatalf("sample rate: got %d", cfg.GetSampleRateHertz())
	}
}

func TestGoogle_Transcribe_EmptyResults(t *testing.T) {
	g := newGoogle(Config{}, nil, func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return &speechpb.RecognizeResponse{}, nil
	})
	res, err := g.Transcribe(context.Background(), Audio{Content: []byte{1}, SampleRateHertz: 8000})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res != (Result{}) {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestGoogle_Transcribe_Errors(t *testing.T) {
	g := newGoogle(Config{}, nil, func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return nil, status.Error(codes.InvalidArgument, "bad header")
	})
	if _, err := g.Transcribe(context.Background(), Audio{Content: []byte{1}}); !errors.Is(err, ErrInvalidAudio) {
		t.Fatalf("expected ErrInvalidAudio, got %v", err)
	}

	g = newGoogle(Config{}, nil, func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return nil, status.Error(codes.Unavailable, "down")
	})
	_, err := g.Transcribe(context.Background(), Audio{Content: []byte{1}})
	if err == nil || errors.Is(err, ErrInvalidAudio) {
		t.Fatalf("expected a plain provider error, got %v", err)
	}
}

func TestGoogle_Transcribe_NoAudioSkipsProvider(t *testing.T) {
	g := newGoogle(Config{}, nil, func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		t.Fatal("provider must not be called")
		return nil, nil
	})
	if res, err := g.Transcribe(context.Background(), Audio{}); err != nil || res != (Result{}) {
		t.Fatalf("got %+v, %v", res, err)
	}
}

func TestEncodingFor(t *testing.T) {
	cases := map[string]speechpb.RecognitionConfig_AudioEncoding{
		"":           speechpb.RecognitionConfig_LINEAR16,
		"audio/wav":  speechpb.RecognitionConfig_LINEAR16,
		"audio/flac": speechpb.RecognitionConfig_FLAC,
		"audio/mpeg": speechpb.RecognitionConfig_MP3,
		"audio/ogg":  speechpb.RecognitionConfig_OGG_OPUS,
		"audio/webm": speechpb.RecognitionConfig_WEBM_OPUS,
	}
	for in, want := range cases {
		if got := encodingFor(in); got != want {
			t.Errorf("encodingFor(%q) = %v, want %v", in, got, want)
		}
	}
}
