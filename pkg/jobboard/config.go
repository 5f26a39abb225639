package jobboard

import "time"

// Config holds the settings of one job board provider.
type Config struct {
	// BaseURL is the provider API root, e.g. https://api.linkedin.com
	BaseURL string `yaml:"base_url" json:"base_url"`
	// APIKey is sent as a bearer token on every request
	APIKey string `yaml:"api_key" json:"api_key"`
	// Timeout bounds a single fetch, including reading the body
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

const defaultTimeout = 10 * time.Second

// LinkedInDefaults returns the public LinkedIn endpoint with the default timeout.
func LinkedInDefaults() Config {
	return Config{BaseURL: "https://api.linkedin.com", Timeout: defaultTimeout}
}

// IndeedDefaults returns the public Indeed endpoint with the default timeout.
func IndeedDefaults() Config {
	return Config{BaseURL: "https://api.indeed.com", Timeout: defaultTimeout}
}
