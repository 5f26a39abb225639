package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/garnizeh/prepcoach/pkg/jobboard"
)

const defaultJWTSecret = "supersecretkey"

type Config struct {
	Env            string        `yaml:"env"`
	Addr           string        `yaml:"addr"`
	JWTSecret      string        `yaml:"jwt_secret"`
	APITimeout     time.Duration `yaml:"timeout"`
	DatabasePath   string        `yaml:"database_path"`
	TokenDuration  time.Duration `yaml:"token_duration"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	Storage        StorageConfig `yaml:"storage"`
	Speech         SpeechConfig  `yaml:"speech"`
	JobBoards      JobBoards     `yaml:"job_boards"`
	CORSOrigins    []string      `yaml:"cors_origins"`
}

type StorageConfig struct {
	// Backend is one of "s3", "gcs" or "local".
	Backend       string        `yaml:"backend"`
	Bucket        string        `yaml:"bucket"`
	Region        string        `yaml:"region"`
	AccessKey     string        `yaml:"access_key"`
	SecretKey     string        `yaml:"secret_key"`
	Endpoint      string        `yaml:"endpoint"`
	BasePath      string        `yaml:"base_path"`
	BaseURL       string        `yaml:"base_url"`
	PresignExpiry time.Duration `yaml:"presign_expiry"`
	Timeout       time.Duration `yaml:"timeout"`
}

type SpeechConfig struct {
	// Backend is "gcp" or "disabled".
	Backend         string        `yaml:"backend"`
	LanguageCode    string        `yaml:"language_code"`
	SampleRateHertz int           `yaml:"sample_rate_hertz"`
	CredentialsFile string        `yaml:"credentials_file"`
	Timeout         time.Duration `yaml:"timeout"`
}

type JobBoards struct {
	LinkedIn ProviderConfig `yaml:"linkedin"`
	Indeed   ProviderConfig `yaml:"indeed"`
}

type ProviderConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoadConfig builds the configuration from defaults, an optional YAML file and
// the environment, in that order of precedence (environment wins).
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Env:            "development",
		Addr:           ":8080",
		JWTSecret:      defaultJWTSecret,
		APITimeout:     30 * time.Second,
		DatabasePath:   "prepcoach.db",
		TokenDuration:  30 * time.Minute,
		MaxUploadBytes: 25 << 20,
		Storage: StorageConfig{
			Backend:       "local",
			BasePath:      "./media/uploads",
			PresignExpiry: time.Hour,
			Timeout:       30 * time.Second,
		},
		Speech: SpeechConfig{
			Backend:         "gcp",
			LanguageCode:    "en-US",
			SampleRateHertz: 16000,
			Timeout:         2 * time.Minute,
		},
		JobBoards: JobBoards{
			LinkedIn: ProviderConfig(jobboard.LinkedInDefaults()),
			Indeed:   ProviderConfig(jobboard.IndeedDefaults()),
		},
		CORSOrigins: []string{"*"},
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Env = getEnv("PREP_ENV", cfg.Env)
	cfg.Addr = getEnv("PREP_ADDR", cfg.Addr)
	cfg.JWTSecret = getEnv("PREP_JWT_SECRET", cfg.JWTSecret)
	cfg.DatabasePath = getEnv("PREP_DATABASE_PATH", cfg.DatabasePath)

	cfg.Storage.Backend = getEnv("PREP_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Bucket = getEnv("PREP_STORAGE_BUCKET", getEnv("S3_BUCKET_NAME", cfg.Storage.Bucket))
	cfg.Storage.Region = getEnv("AWS_REGION", cfg.Storage.Region)
	cfg.Storage.AccessKey = getEnv("AWS_ACCESS_KEY_ID", cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = getEnv("AWS_SECRET_ACCESS_KEY", cfg.Storage.SecretKey)
	cfg.Storage.Endpoint = getEnv("PREP_STORAGE_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.BasePath = getEnv("PREP_STORAGE_PATH", cfg.Storage.BasePath)
	cfg.Storage.BaseURL = getEnv("PREP_STORAGE_BASE_URL", cfg.Storage.BaseURL)

	cfg.Speech.Backend = getEnv("PREP_SPEECH_BACKEND", cfg.Speech.Backend)
	cfg.Speech.LanguageCode = getEnv("PREP_SPEECH_LANGUAGE", cfg.Speech.LanguageCode)
	cfg.Speech.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", cfg.Speech.CredentialsFile)

	cfg.JobBoards.LinkedIn.APIKey = getEnv("LINKEDIN_API_KEY", cfg.JobBoards.LinkedIn.APIKey)
	cfg.JobBoards.LinkedIn.BaseURL = getEnv("PREP_LINKEDIN_URL", cfg.JobBoards.LinkedIn.BaseURL)
	cfg.JobBoards.Indeed.APIKey = getEnv("INDEED_API_KEY", cfg.JobBoards.Indeed.APIKey)
	cfg.JobBoards.Indeed.BaseURL = getEnv("PREP_INDEED_URL", cfg.JobBoards.Indeed.BaseURL)

	if v := os.Getenv("PREP_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"PREP_TOKEN_DURATION", &cfg.TokenDuration},
		{"PREP_API_TIMEOUT", &cfg.APITimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v := os.Getenv("PREP_UPSTREAM_TIMEOUT"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PREP_UPSTREAM_TIMEOUT: %w", err)
		}
		cfg.JobBoards.LinkedIn.Timeout = parsed
		cfg.JobBoards.Indeed.Timeout = parsed
		cfg.Storage.Timeout = parsed
	}

	return nil
}

// IsDevelopment reports whether relaxed defaults are acceptable.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development") || strings.EqualFold(c.Env, "dev")
}

// Validate checks everything the server needs before it starts serving. A
// missing required setting fails startup rather than individual requests.
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	} else if c.JWTSecret == defaultJWTSecret && !c.IsDevelopment() {
		errs = append(errs, errors.New("PREP_JWT_SECRET must be set outside development"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.TokenDuration <= 0 {
		errs = append(errs, errors.New("token duration must be positive"))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, errors.New("api timeout must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload bytes must be positive"))
	}

	switch c.Storage.Backend {
	case "s3":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET_NAME is required for s3 storage"))
		}
		if c.Storage.Region == "" && c.Storage.Endpoint == "" {
			errs = append(errs, errors.New("AWS_REGION is required for s3 storage"))
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			errs = append(errs, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required for s3 storage"))
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("PREP_STORAGE_BUCKET is required for gcs storage"))
		}
	case "local":
		if c.Storage.BasePath == "" {
			errs = append(errs, errors.New("PREP_STORAGE_PATH is required for local storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage backend %q", c.Storage.Backend))
	}
	if c.Storage.PresignExpiry <= 0 {
		errs = append(errs, errors.New("storage presign expiry must be positive"))
	}

	switch c.Speech.Backend {
	case "gcp", "disabled":
	default:
		errs = append(errs, fmt.Errorf("unsupported speech backend %q", c.Speech.Backend))
	}

	if c.JobBoards.LinkedIn.APIKey == "" {
		errs = append(errs, errors.New("LINKEDIN_API_KEY is required"))
	}
	if c.JobBoards.Indeed.APIKey == "" {
		errs = append(errs, errors.New("INDEED_API_KEY is required"))
	}
	for name, p := range map[string]ProviderConfig{"linkedin": c.JobBoards.LinkedIn, "indeed": c.JobBoards.Indeed} {
		if p.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s base url is required", name))
		}
		if p.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("%s timeout must be positive", name))
		}
	}

	return errors.Join(errs...)
}

// responseSlack covers writing the response after the last upstream call.
const responseSlack = 5 * time.Second

// WriteTimeout is the server write deadline. It outlasts the slowest request
// path: a voice recording that is stored, transcribed and then removed again
// on failure, a media upload with its compensating delete, or a job board
// fetch.
func (c *Config) WriteTimeout() time.Duration {
	longest := c.APITimeout
	upstream := []time.Duration{
		2 * c.Storage.Timeout,
		c.JobBoards.LinkedIn.Timeout,
		c.JobBoards.Indeed.Timeout,
	}
	if c.Speech.Backend == "gcp" {
		upstream = append(upstream, 2*c.Storage.Timeout+c.Speech.Timeout)
	}
	for _, d := range upstream {
		if d+responseSlack > longest {
			longest = d + responseSlack
		}
	}
	return longest
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
