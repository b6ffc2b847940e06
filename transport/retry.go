package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/cheyinl/soaptransport/internal/tracking"
	"github.com/cheyinl/soaptransport/logger"
)

var (
	// ErrTimeout is matched by an *Error of kind KindTimeout.
	ErrTimeout = errors.New("transport timeout")
	// ErrTransport is matched by an *Error of kind KindOther.
	ErrTransport = errors.New("transport failure")
)

// Transport delivers a serialized SOAP request and returns the raw response
// body. Failures are reported as *Error.
type Transport interface {
	Send(ctx context.Context, url string, body []byte, action string) ([]byte, error)
}

// Error is the final transport failure of a call, after every attempt.
type Error struct {
	Kind     ErrorKind
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrTimeout or ErrTransport depending on the kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrTransport:
		return e.Kind != KindTimeout
	}
	return false
}

// Result is the outcome kept by the retry loop and the number of attempts made.
type Result struct {
	Outcome
	Attempts int
}

// TransportError returns the outcome as an *Error, or nil on success.
func (r Result) TransportError() error {
	if !r.Failed() {
		return nil
	}
	return &Error{Kind: r.Kind, Attempts: r.Attempts, Err: r.Outcome.Err}
}

// Retrier repeats an Executor until it succeeds or the attempt budget of
// the Config is spent. Attempts follow a zero backoff, so there is no delay
// between them, and every failure is retried the same way.
type Retrier struct {
	config   *Config
	executor Executor
	log      logger.Logger
}

var _ Transport = (*Retrier)(nil)

// RetrierOption customizes a Retrier.
type RetrierOption func(*Retrier)

// WithExecutor replaces the HTTP executor, mostly for tests.
func WithExecutor(e Executor) RetrierOption {
	return func(r *Retrier) {
		r.executor = e
	}
}

// WithLogger sets the logger used for attempt diagnostics.
func WithLogger(l logger.Logger) RetrierOption {
	return func(r *Retrier) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRetrier creates a Retrier reading its settings from cfg on every call.
func NewRetrier(cfg *Config, opts ...RetrierOption) *Retrier {
	r := &Retrier{
		config:   cfg,
		executor: HTTPExecutor{},
		log:      logger.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Config returns the configuration the Retrier snapshots on each call.
func (r *Retrier) Config() *Config {
	return r.config
}

// Send implements Transport.
func (r *Retrier) Send(ctx context.Context, url string, body []byte, action string) ([]byte, error) {
	res := r.Do(ctx, Request{URL: url, Body: body, Action: action})
	if err := res.TransportError(); err != nil {
		return nil, err
	}
	return res.Body, nil
}

// Do runs the attempt loop for one request. The configuration is
// snapshotted once, so all attempts of a call share the same settings.
// A done context stops the loop before the next attempt.
func (r *Retrier) Do(ctx context.Context, req Request) Result {
	s := r.config.Snapshot()
	callID := uuid.NewString()
	log := r.log.WithFields(map[string]any{
		"call_id": callID,
		"url":     req.URL,
		"action":  req.Action,
	})

	ctx, end := tracking.StartCall(ctx, callID, req.URL, req.Action)
	start := time.Now()

	var res Result
	maxAttempts := s.attempts()

	operation := func() (Outcome, error) {
		attempt := res.Attempts + 1
		log.Debug().Int("attempt", attempt).Int("max_attempts", maxAttempts).Msg("sending soap request")

		attemptStart := time.Now()
		res.Outcome = r.executor.Execute(ctx, req, s)
		res.Attempts = attempt

		outcome := outcomeLabel(res.Outcome)
		tracking.RecordAttempt(ctx, req.Action, outcome)
		tracking.AttemptEvent(ctx, attempt, outcome)

		if !res.Failed() {
			log.Debug().
				Int("attempt", attempt).
				Int("status_code", res.StatusCode).
				Int("bytes", len(res.Body)).
				Dur("elapsed", time.Since(attemptStart)).
				Msg("soap request completed")
			return res.Outcome, nil
		}
		return res.Outcome, res.Outcome.Err
	}

	// notify only runs between attempts, never after the last one
	notify := func(err error, _ time.Duration) {
		log.Warn().
			Err(err).
			Str("kind", res.Kind.String()).
			Int("attempt", res.Attempts).
			Int("max_attempts", maxAttempts).
			Msg("soap request attempt failed")
	}

	if err := ctx.Err(); err != nil {
		res.Outcome = failure(err)
		log.Warn().Err(err).Int("attempts", 0).Msg("call abandoned, context done")
	} else if _, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && res.Attempts < maxAttempts {
			log.Warn().Err(ctxErr).Int("attempts", res.Attempts).Msg("call abandoned, context done")
		} else {
			log.Error().
				Err(res.Outcome.Err).
				Str("kind", res.Kind.String()).
				Int("attempts", res.Attempts).
				Msg("soap request attempts exhausted")
		}
	}

	outcome := outcomeLabel(res.Outcome)
	tracking.RecordCall(ctx, req.Action, outcome, time.Since(start))
	end(outcome, res.Attempts, res.Outcome.Err)

	return res
}

func outcomeLabel(o Outcome) string {
	if !o.Failed() {
		return "success"
	}
	return o.Kind.String()
}
