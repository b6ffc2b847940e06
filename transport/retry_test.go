package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheyinl/soaptransport/logger"
)

var errRefused = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

// scriptedExecutor replays one outcome per attempt, repeating the last one.
type scriptedExecutor struct {
	outcomes []Outcome
	calls    atomic.Int32
	settings []Settings
}

func (e *scriptedExecutor) Execute(_ context.Context, _ Request, s Settings) Outcome {
	n := int(e.calls.Add(1))
	e.settings = append(e.settings, s)
	if n > len(e.outcomes) {
		return e.outcomes[len(e.outcomes)-1]
	}
	return e.outcomes[n-1]
}

func newTestRetrier(t *testing.T, exec Executor, opts ...Option) *Retrier {
	t.Helper()
	cfg, err := NewConfig(opts...)
	require.NoError(t, err)
	return NewRetrier(cfg, WithExecutor(exec))
}

func timeoutOutcome() Outcome {
	return Outcome{Err: context.DeadlineExceeded, Kind: KindTimeout}
}

func refusedOutcome() Outcome {
	return Outcome{Err: errRefused, Kind: KindOther}
}

func TestRetrierAlwaysTimingOut(t *testing.T) {
	for _, k := range []int{1, 2, 3, 5} {
		exec := &scriptedExecutor{outcomes: []Outcome{timeoutOutcome()}}
		r := newTestRetrier(t, exec, WithMaxAttempts(k))

		res := r.Do(context.Background(), Request{URL: "http://svc", Action: "a"})

		assert.Equal(t, k, res.Attempts)
		assert.EqualValues(t, k, exec.calls.Load())
		assert.True(t, res.Failed())
		assert.Equal(t, KindTimeout, res.Kind)
		assert.ErrorIs(t, res.TransportError(), ErrTimeout)
	}
}

func TestRetrierFailsOnceThenSucceeds(t *testing.T) {
	exec := &scriptedExecutor{outcomes: []Outcome{
		refusedOutcome(),
		{Body: []byte("<ok/>"), StatusCode: http.StatusOK},
		timeoutOutcome(),
	}}
	r := newTestRetrier(t, exec, WithMaxAttempts(3))

	res := r.Do(context.Background(), Request{URL: "http://svc", Action: "a"})

	assert.Equal(t, 2, res.Attempts)
	assert.EqualValues(t, 2, exec.calls.Load())
	assert.False(t, res.Failed())
	assert.Equal(t, "<ok/>", string(res.Body))
	assert.NoError(t, res.TransportError())
}

func TestRetrierEmptyBodyIsSuccess(t *testing.T) {
	exec := &scriptedExecutor{outcomes: []Outcome{{Body: []byte{}, StatusCode: http.StatusOK}}}
	r := newTestRetrier(t, exec, WithMaxAttempts(3))

	body, err := r.Send(context.Background(), "http://svc", nil, "a")

	require.NoError(t, err)
	assert.Empty(t, body)
	assert.EqualValues(t, 1, exec.calls.Load())
}

func TestRetrierSingleAttemptNoRetry(t *testing.T) {
	exec := &scriptedExecutor{outcomes: []Outcome{refusedOutcome(), {Body: []byte("never")}}}
	r := newTestRetrier(t, exec, WithMaxAttempts(1))

	res := r.Do(context.Background(), Request{URL: "http://svc", Action: "a"})

	assert.Equal(t, 1, res.Attempts)
	assert.EqualValues(t, 1, exec.calls.Load())
	assert.ErrorIs(t, res.TransportError(), ErrTransport)
}

func TestRetrierKeepsLastOutcome(t *testing.T) {
	exec := &scriptedExecutor{outcomes: []Outcome{timeoutOutcome(), timeoutOutcome(), refusedOutcome()}}
	r := newTestRetrier(t, exec, WithMaxAttempts(3))

	_, err := r.Send(context.Background(), "http://svc", nil, "a")

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindOther, terr.Kind)
	assert.Equal(t, 3, terr.Attempts)
	assert.ErrorIs(t, err, errRefused)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestRetrierSnapshotsConfigOncePerCall(t *testing.T) {
	cfg, err := NewConfig(WithMaxAttempts(3), WithHeader("X-Call", "first"))
	require.NoError(t, err)

	var settings []Settings
	exec := ExecutorFunc(func(_ context.Context, _ Request, s Settings) Outcome {
		settings = append(settings, s)
		// mutation while the call is in flight
		_ = cfg.SetHeader("X-Call", "second")
		_ = cfg.SetMaxAttempts(1)
		return refusedOutcome()
	})
	r := NewRetrier(cfg, WithExecutor(exec))

	res := r.Do(context.Background(), Request{URL: "http://svc", Action: "a"})

	assert.Equal(t, 3, res.Attempts)
	require.Len(t, settings, 3)
	for _, s := range settings {
		assert.Equal(t, "first", s.Headers["X-Call"])
	}

	settings = nil
	res = r.Do(context.Background(), Request{URL: "http://svc", Action: "a"})
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "second", settings[0].Headers["X-Call"])
}

func TestRetrierStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := ExecutorFunc(func(context.Context, Request, Settings) Outcome {
		cancel()
		return refusedOutcome()
	})
	r := newTestRetrier(t, exec, WithMaxAttempts(5))

	res := r.Do(ctx, Request{URL: "http://svc", Action: "a"})

	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Outcome.Err, errRefused)
}

func TestRetrierWithZeroConfig(t *testing.T) {
	exec := &scriptedExecutor{outcomes: []Outcome{refusedOutcome()}}
	r := NewRetrier(&Config{}, WithExecutor(exec))

	res := r.Do(context.Background(), Request{URL: "http://svc", Action: "a"})

	assert.True(t, res.Failed())
	assert.Equal(t, 1, res.Attempts)
	assert.EqualValues(t, 1, exec.calls.Load())
}

func TestRetrierContextDoneBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &scriptedExecutor{outcomes: []Outcome{{Body: []byte("x")}}}
	r := newTestRetrier(t, exec, WithMaxAttempts(2))

	_, err := r.Send(ctx, "http://svc", nil, "a")

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrTransport)
	assert.EqualValues(t, 0, exec.calls.Load())
}

func TestRetrierConnectionRefusedEndToEnd(t *testing.T) {
	cfg, err := NewConfig(
		WithNegotiationTimeout(5*time.Second),
		WithReadTimeout(5*time.Second),
		WithMaxAttempts(3),
	)
	require.NoError(t, err)

	var attempts atomic.Int32
	counting := ExecutorFunc(func(ctx context.Context, req Request, s Settings) Outcome {
		attempts.Add(1)
		return HTTPExecutor{}.Execute(ctx, req, s)
	})
	r := NewRetrier(cfg, WithExecutor(counting))

	_, err = r.Send(context.Background(), closedURL(t), []byte(testEnvelope), "urn:Ping")

	assert.ErrorIs(t, err, ErrTransport)
	assert.EqualValues(t, 3, attempts.Load())
}

func TestRetrierOverHTTPRecoversAfterFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		_, _ = io.WriteString(w, "<xml>ok</xml>")
	}))
	defer srv.Close()

	cfg, err := NewConfig(WithReadTimeout(100*time.Millisecond), WithMaxAttempts(2))
	require.NoError(t, err)

	res := NewRetrier(cfg).Do(context.Background(), Request{URL: srv.URL, Body: []byte(testEnvelope), Action: "a"})

	require.False(t, res.Failed(), "unexpected error: %v", res.Outcome.Err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "<xml>ok</xml>", string(res.Body))
}

func TestRetrierLogsAttempts(t *testing.T) {
	var buf bytes.Buffer
	cfg, err := NewConfig(WithMaxAttempts(2), WithBasicAuth("u", "p"))
	require.NoError(t, err)

	exec := &scriptedExecutor{outcomes: []Outcome{refusedOutcome()}}
	r := NewRetrier(cfg, WithExecutor(exec), WithLogger(logger.NewWithWriter(&buf, "debug")))

	r.Do(context.Background(), Request{URL: "http://svc", Action: "urn:Ping"})

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "soap request attempt failed"), "only failures followed by a retry are warned")
	assert.Contains(t, out, "soap request attempts exhausted")
	assert.Contains(t, out, `"call_id"`)
	assert.Contains(t, out, `"action":"urn:Ping"`)
}
