package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gspeech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// Google transcribes short recordings with the synchronous Speech-to-Text
// Recognize call.
type Google struct {
	cfg       Config
	recognize recognizeFunc
	close     func() error
	logger    *slog.Logger
}

// NewGoogle dials the Speech-to-Text API. Credentials come from
// cfg.CredentialsFile when set, otherwise from the environment.
func NewGoogle(ctx context.Context, cfg Config, logger *slog.Logger, opts ...option.ClientOption) (*Google, error) {
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	c, err := gspeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	g := newGoogle(cfg, logger, func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return c.Recognize(ctx, req)
	})
	g.close = c.Close
	return g, nil
}

func newGoogle(cfg Config, logger *slog.Logger, fn recognizeFunc) *Google {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	return &Google{cfg: cfg, recognize: fn, close: func() error { return nil }, logger: logger}
}

func (g *Google) Transcribe(ctx context.Context, a Audio) (Result, error) {
	if len(a.Content) == 0 {
		return Result{}, nil
	}
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	rate := a.SampleRateHertz
	if rate <= 0 {
		rate = g.cfg.SampleRateHertz
	}
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encodingFor(a.MimeType),
			SampleRateHertz:            int32(rate),
			LanguageCode:               g.cfg.LanguageCode,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: a.Content},
		},
	}

	resp, err := g.recognize(ctx, req)
	if err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return Result{}, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
		}
		return Result{}, fmt.Errorf("speech recognize: %w", err)
	}
	res := firstAlternative(resp)
	g.logger.Debug("speech: transcribed", slog.Int("bytes", len(a.Content)), slog.Float64("confidence", res.Confidence))
	return res, nil
}

func (g *Google) Close() error {
	if g == nil || g.close == nil {
		return nil
	}
	return g.close()
}

func firstAlternative(resp *speechpb.RecognizeResponse) Result {
	if resp == nil || len(resp.GetResults()) == 0 {
		return Result{}
	}
	alts := resp.GetResults()[0].GetAlternatives()
	if len(alts) == 0 {
		return Result{}
	}
	return Result{Transcript: alts[0].GetTranscript(), Confidence: float64(alts[0].GetConfidence())}
}

func encodingFor(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.Contains(m, "flac"):
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(m, "mpeg"), strings.Contains(m, "mp3"):
		return speechpb.RecognitionConfig_MP3
	case strings.Contains(m, "ogg"), strings.Contains(m, "opus"):
		return speechpb.RecognitionConfig_OGG_OPUS
	case strings.Contains(m, "webm"):
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
