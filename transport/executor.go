package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

const (
	// SOAPMIMEType is the default Content-Type of a request.
	SOAPMIMEType = "text/xml; charset=utf-8"
	// DefaultUserAgent is sent unless a custom User-Agent header is set.
	DefaultUserAgent = "soaptransport/1.0"
)

// ErrorKind tags a failed attempt.
type ErrorKind int

const (
	// KindNone marks a completed exchange.
	KindNone ErrorKind = iota
	// KindTimeout covers connection-phase and exchange timeouts.
	KindTimeout
	// KindOther covers every other transport failure.
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// Request is one logical SOAP request: an already serialized envelope
// and where to send it.
type Request struct {
	URL    string
	Body   []byte
	Action string
}

// Outcome is the result of a single attempt. Body holds the response body
// of any completed HTTP exchange, whatever its status code. RequestHeader
// is the header sent, once the request could be built.
type Outcome struct {
	Body          []byte
	StatusCode    int
	Header        http.Header
	RequestHeader http.Header
	Err           error
	Kind          ErrorKind
}

// Failed reports whether the attempt ended in a transport error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

func failure(err error) Outcome {
	return Outcome{Err: err, Kind: ClassifyError(err)}
}

// Executor performs exactly one attempt.
type Executor interface {
	Execute(ctx context.Context, req Request, s Settings) Outcome
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req Request, s Settings) Outcome

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req Request, s Settings) Outcome {
	return f(ctx, req, s)
}

// HTTPExecutor posts the request over a fresh connection on every call.
// Connections are never pooled or reused.
type HTTPExecutor struct{}

var _ Executor = HTTPExecutor{}

// Execute sends a single POST and reads the whole response body.
func (HTTPExecutor) Execute(ctx context.Context, req Request, s Settings) Outcome {
	httpReq, err := newHTTPRequest(ctx, req, s)
	if err != nil {
		return Outcome{Err: err, Kind: KindOther}
	}

	tr := newHTTPTransport(s)
	defer tr.CloseIdleConnections()
	client := &http.Client{Transport: tr}

	sent := httpReq.Header.Clone()
	res, err := client.Do(httpReq)
	if err != nil {
		out := failure(err)
		out.RequestHeader = sent
		return out
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		out := failure(fmt.Errorf("cannot read all content from http body: %w", err))
		out.RequestHeader = sent
		return out
	}
	return Outcome{
		Body:          body,
		StatusCode:    res.StatusCode,
		Header:        res.Header.Clone(),
		RequestHeader: sent,
	}
}

// newHTTPRequest applies the default headers, then the custom ones so they
// can override the defaults, then basic auth.
func newHTTPRequest(ctx context.Context, req Request, s Settings) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Content-Type", SOAPMIMEType)
	httpReq.Header.Set("SOAPAction", `"`+req.Action+`"`)
	httpReq.Header.Set("User-Agent", DefaultUserAgent)
	httpReq.Header.Set("Accept", "*/*")
	for k, v := range s.Headers {
		httpReq.Header.Set(k, v)
	}

	if s.Auth != nil {
		httpReq.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(s.Auth.credentials())))
	}

	httpReq.Close = true
	return httpReq, nil
}

// newHTTPTransport gives the connection phase a single negotiation budget:
// dialing and the TLS handshake share one deadline, started when dialing
// begins. The read timeout becomes a deadline on the connection, armed as
// soon as it is established, so it bounds the whole exchange.
//
// Requests sent through a proxy use the transport's own handshake, where
// TLSHandshakeTimeout bounds the handshake on its own.
func newHTTPTransport(s Settings) *http.Transport {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !s.VerifyTLS, // #nosec G402
	}

	dial := func(ctx context.Context, network, addr string, deadline time.Time) (net.Conn, error) {
		d := net.Dialer{Deadline: deadline}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if s.ReadTimeout > 0 {
			if err := conn.SetDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
				conn.Close()
				return nil, err
			}
		}
		return conn, nil
	}

	return &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: tlsConfig,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dial(ctx, network, addr, negotiationDeadline(s))
		},
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			deadline := negotiationDeadline(s)
			conn, err := dial(ctx, network, addr, deadline)
			if err != nil {
				return nil, err
			}

			cfg := tlsConfig.Clone()
			if host, _, err := net.SplitHostPort(addr); err == nil {
				cfg.ServerName = host
			} else {
				cfg.ServerName = addr
			}

			hsCtx := ctx
			if !deadline.IsZero() {
				var cancel context.CancelFunc
				hsCtx, cancel = context.WithDeadline(ctx, deadline)
				defer cancel()
			}
			tlsConn := tls.Client(conn, cfg)
			if err := tlsConn.HandshakeContext(hsCtx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		TLSHandshakeTimeout: s.NegotiationTimeout,
		DisableKeepAlives:   true,
	}
}

// negotiationDeadline is the end of the connection phase, or the zero time
// when it is unbounded.
func negotiationDeadline(s Settings) time.Time {
	if s.NegotiationTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.NegotiationTimeout)
}

// ClassifyError tags a transport error. Deadlines and timeouts from the
// dialer, the TLS handshake or the connection map to KindTimeout.
// Everything else, including refused connections and DNS errors, is
// KindOther.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindOther
}
