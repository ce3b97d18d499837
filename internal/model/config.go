package model

import (
	"fmt"
	"net/url"
	"strings"
)

// TestConfig is the load profile a host attaches to a room.
// A room's config is replaced as a whole value, never patched.
type TestConfig struct {
	URL               string            `json:"url"`
	Method            string            `json:"method"`
	Headers           map[string]string `json:"headers"`
	Body              *string           `json:"body,omitempty"`
	RequestsPerClient int               `json:"requests_per_client"`
	Concurrency       int               `json:"concurrency"`
	TimeoutMs         int               `json:"timeout_ms"`
}

// SupportedMethods lists the HTTP methods the load generator accepts.
var SupportedMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

// Clone returns a deep copy of the config.
func (c *TestConfig) Clone() *TestConfig {
	if c == nil {
		return nil
	}
	out := *c
	if c.Headers != nil {
		out.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			out.Headers[k] = v
		}
	}
	if c.Body != nil {
		body := *c.Body
		out.Body = &body
	}
	return &out
}

// Validate checks that the config can be executed by a load generator.
// The coordinator itself forwards configs without validating them.
func (c *TestConfig) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: invalid URL %q", ErrInvalidConfig, c.URL)
	}
	if !isSupportedMethod(c.Method) {
		return fmt.Errorf("%w: unsupported HTTP method %q", ErrInvalidConfig, c.Method)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be greater than 0", ErrInvalidConfig)
	}
	if c.RequestsPerClient < 0 {
		return fmt.Errorf("%w: requests per client cannot be negative", ErrInvalidConfig)
	}
	if c.TimeoutMs < 0 {
		return fmt.Errorf("%w: timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}

func isSupportedMethod(method string) bool {
	m := strings.ToUpper(method)
	for _, s := range SupportedMethods {
		if s == m {
			return true
		}
	}
	return false
}
