// Package transport delivers serialized SOAP envelopes over HTTP with
// bounded retries, per-call timeouts and a typed failure classification.
package transport

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ErrInvalidArgument is matched by every configuration error.
var ErrInvalidArgument = errors.New("invalid argument")

// ArgumentError reports a rejected configuration value.
type ArgumentError struct {
	Field   string
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("transport: invalid %s: %s", e.Field, e.Message)
}

// Is reports ErrInvalidArgument so callers can use errors.Is.
func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// BasicAuth holds HTTP basic auth credentials. A nil Password sends the
// login alone.
type BasicAuth struct {
	Login    string
	Password *string
}

// credentials returns "login" or "login:password".
func (a *BasicAuth) credentials() string {
	if a.Password == nil {
		return a.Login
	}
	return a.Login + ":" + *a.Password
}

func (a *BasicAuth) clone() *BasicAuth {
	if a == nil {
		return nil
	}
	c := &BasicAuth{Login: a.Login}
	if a.Password != nil {
		p := *a.Password
		c.Password = &p
	}
	return c
}

// NewBasicAuth returns credentials with a password.
func NewBasicAuth(login, password string) *BasicAuth {
	return &BasicAuth{Login: login, Password: &password}
}

// Config holds the transport settings. It is safe for concurrent use;
// each call works on a Snapshot taken when the call starts, so changes
// made while a call is in flight only affect later calls.
//
// The zero value is ready to use and equals NewConfig without options.
type Config struct {
	mu sync.RWMutex

	negotiationTimeout time.Duration
	readTimeout        time.Duration
	maxAttempts        int
	headers            map[string]string
	ignoreCertVerify   bool
	auth               *BasicAuth
}

// Option configures a Config at construction time.
type Option func(*Config) error

// WithNegotiationTimeout sets the connection establishment timeout. 0 disables it.
func WithNegotiationTimeout(d time.Duration) Option {
	return func(c *Config) error { return c.SetNegotiationTimeout(d) }
}

// WithReadTimeout sets the exchange timeout once connected. 0 disables it.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) error { return c.SetReadTimeout(d) }
}

// WithMaxAttempts sets the attempt budget.
func WithMaxAttempts(n int) Option {
	return func(c *Config) error { return c.SetMaxAttempts(n) }
}

// WithHeaders replaces the custom header map.
func WithHeaders(headers map[string]string) Option {
	return func(c *Config) error { return c.SetHeaders(headers) }
}

// WithHeader adds a single custom header.
func WithHeader(name, value string) Option {
	return func(c *Config) error { return c.SetHeader(name, value) }
}

// WithIgnoreCertVerify skips TLS certificate verification when true.
func WithIgnoreCertVerify(ignore bool) Option {
	return func(c *Config) error {
		c.SetIgnoreCertVerify(ignore)
		return nil
	}
}

// WithBasicAuth enables basic auth with a login and password.
func WithBasicAuth(login, password string) Option {
	return func(c *Config) error { return c.SetBasicAuth(NewBasicAuth(login, password)) }
}

// WithLogin enables basic auth with a login and no password.
func WithLogin(login string) Option {
	return func(c *Config) error { return c.SetBasicAuth(&BasicAuth{Login: login}) }
}

// NewConfig returns a Config with unbounded timeouts, a single attempt and
// certificate verification enabled, then applies opts in order.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{
		maxAttempts: 1,
		headers:     map[string]string{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetNegotiationTimeout sets the connection establishment timeout.
func (c *Config) SetNegotiationTimeout(d time.Duration) error {
	if d < 0 {
		return &ArgumentError{Field: "negotiation timeout", Message: "must be positive or 0 to disable"}
	}
	c.mu.Lock()
	c.negotiationTimeout = d
	c.mu.Unlock()
	return nil
}

// NegotiationTimeout returns the connection establishment timeout.
func (c *Config) NegotiationTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.negotiationTimeout
}

// SetReadTimeout sets the timeout for the exchange once connected.
func (c *Config) SetReadTimeout(d time.Duration) error {
	if d < 0 {
		return &ArgumentError{Field: "read timeout", Message: "must be positive or 0 to disable"}
	}
	c.mu.Lock()
	c.readTimeout = d
	c.mu.Unlock()
	return nil
}

// ReadTimeout returns the exchange timeout.
func (c *Config) ReadTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readTimeout
}

// SetMaxAttempts sets the total number of tries, the first one included.
func (c *Config) SetMaxAttempts(n int) error {
	if n < 1 {
		return &ArgumentError{Field: "max attempts", Message: "must be at least 1"}
	}
	c.mu.Lock()
	c.maxAttempts = n
	c.mu.Unlock()
	return nil
}

// MaxAttempts returns the attempt budget.
func (c *Config) MaxAttempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attempts()
}

// attempts treats the unset budget of a zero Config as a single attempt.
func (c *Config) attempts() int {
	if c.maxAttempts < 1 {
		return 1
	}
	return c.maxAttempts
}

// SetHeaders replaces the whole custom header map with a copy of headers.
// A nil map clears it.
func (c *Config) SetHeaders(headers map[string]string) error {
	if _, ok := headers[""]; ok {
		return &ArgumentError{Field: "headers", Message: "header name must not be empty"}
	}
	cp := make(map[string]string, len(headers))
	maps.Copy(cp, headers)
	c.mu.Lock()
	c.headers = cp
	c.mu.Unlock()
	return nil
}

// SetHeader adds or replaces a single custom header.
func (c *Config) SetHeader(name, value string) error {
	if name == "" {
		return &ArgumentError{Field: "header", Message: "header name must not be empty"}
	}
	c.mu.Lock()
	if c.headers == nil {
		c.headers = map[string]string{}
	}
	c.headers[name] = value
	c.mu.Unlock()
	return nil
}

// Headers returns a copy of the custom headers.
func (c *Config) Headers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make(map[string]string, len(c.headers))
	maps.Copy(cp, c.headers)
	return cp
}

// Header returns a single custom header.
func (c *Config) Header(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.headers[name]
	return v, ok
}

// SetIgnoreCertVerify skips TLS certificate verification when true.
func (c *Config) SetIgnoreCertVerify(ignore bool) {
	c.mu.Lock()
	c.ignoreCertVerify = ignore
	c.mu.Unlock()
}

// IgnoreCertVerify reports whether certificate verification is skipped.
func (c *Config) IgnoreCertVerify() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ignoreCertVerify
}

// SetBasicAuth enables basic auth, or disables it when auth is nil.
func (c *Config) SetBasicAuth(auth *BasicAuth) error {
	if auth != nil && auth.Login == "" {
		return &ArgumentError{Field: "basic auth", Message: "login must not be empty"}
	}
	c.mu.Lock()
	c.auth = auth.clone()
	c.mu.Unlock()
	return nil
}

// BasicAuth returns a copy of the credentials, or nil when auth is disabled.
func (c *Config) BasicAuth() *BasicAuth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth.clone()
}

// Snapshot returns an immutable copy of the current settings.
func (c *Config) Snapshot() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Settings{
		NegotiationTimeout: c.negotiationTimeout,
		ReadTimeout:        c.readTimeout,
		MaxAttempts:        c.attempts(),
		Headers:            maps.Clone(c.headers),
		VerifyTLS:          !c.ignoreCertVerify,
		Auth:               c.auth.clone(),
	}
}

// Settings is the per-call view of a Config. It is a value copy; changing
// the Config afterwards does not affect it.
type Settings struct {
	NegotiationTimeout time.Duration
	ReadTimeout        time.Duration
	MaxAttempts        int
	Headers            map[string]string
	VerifyTLS          bool
	Auth               *BasicAuth
}

// attempts clamps a hand-built Settings to at least one attempt.
func (s Settings) attempts() int {
	if s.MaxAttempts < 1 {
		return 1
	}
	return s.MaxAttempts
}
