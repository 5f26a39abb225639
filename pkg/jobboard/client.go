// Package jobboard fetches job postings from external job board APIs and
// normalises them into models.JobPosting.
package jobboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/prepcoach/pkg/models"
)

var (
	// ErrTransport wraps network failures and timeouts.
	ErrTransport = errors.New("jobboard: transport failure")
	// ErrBadResponse is returned when a 2xx body does not match the provider schema.
	ErrBadResponse = errors.New("jobboard: unexpected response shape")
)

// Provider is one job board.
type Provider interface {
	Name() string
	// Fetch returns postings for keywords near location. A non-2xx status
	// yields an empty list and no error.
	Fetch(ctx context.Context, keywords []string, location string) ([]models.JobPosting, error)
}

//go:embed schemas/*.json
var schemaFS embed.FS

const maxBodyBytes = 8 << 20

// package-level logger for pkg/jobboard; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/jobboard. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// client is the HTTP plumbing shared by the providers.
type client struct {
	name   string
	cfg    Config
	base   *url.URL
	http   *http.Client
	schema *jsonschema.Schema
	closed int32
}

// NewHTTPClient returns a transport tuned for short API calls. Request
// deadlines come from the per-call context, not from the client.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func newClient(name, schemaFile string, cfg Config, httpClient *http.Client) (*client, error) {
	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base url: %w", name, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}

	raw, err := schemaFS.ReadFile("schemas/" + schemaFile)
	if err != nil {
		return nil, fmt.Errorf("%s: read schema: %w", name, err)
	}
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(raw, rs); err != nil {
		return nil, fmt.Errorf("%s: compile schema: %w", name, err)
	}

	logger.Info("jobboard: client created", slog.String("provider", name), slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return &client{name: name, cfg: cfg, base: u, http: httpClient, schema: rs}, nil
}

// get calls path with params and returns the validated body. ok is false when
// the provider answered with a non-2xx status.
func (c *client) get(ctx context.Context, path string, params url.Values) (body []byte, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := c.base.ResolveReference(&url.URL{Path: path, RawQuery: params.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrTransport, c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		logger.Warn("jobboard: non-2xx response", slog.String("provider", c.name), slog.Int("status", resp.StatusCode))
		return nil, false, nil
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: read body: %v", ErrTransport, c.name, err)
	}

	verrs, err := c.schema.ValidateBytes(ctx, body)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrBadResponse, c.name, err)
	}
	if len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, ve := range verrs {
			msgs = append(msgs, ve.PropertyPath+": "+ve.Message)
		}
		return nil, false, fmt.Errorf("%w: %s: %s", ErrBadResponse, c.name, strings.Join(msgs, "; "))
	}

	logger.Debug("jobboard: fetched", slog.String("provider", c.name), slog.Int("bytes", len(body)), slog.Duration("latency", time.Since(start)))
	return body, true, nil
}

// Close releases idle connections. It is idempotent.
func (c *client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.http != nil && c.http.Transport != nil {
		if tr, ok := c.http.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
		}
	}
	return nil
}

func (c *client) Name() string { return c.name }
