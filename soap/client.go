// Package soap is a SOAP 1.1 client whose calls return a typed Response
// instead of failing, so transport timeouts and failures stay observable.
// Delivery is delegated to a transport.Transport.
package soap

import (
	"context"
	"fmt"
	"time"

	"github.com/cheyinl/soaptransport/logger"
	"github.com/cheyinl/soaptransport/transport"
)

type options struct {
	codec Codec
	log   logger.Logger
}

var defaultOptions = options{
	codec: XMLCodec{},
}

// A Option sets options such as the codec or the logger.
type Option func(*options)

// WithCodec is an Option to replace the envelope codec
func WithCodec(c Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithLogger is an Option to set the logger
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// Doer is implemented by transports that expose the HTTP status and
// headers of the final attempt, such as *transport.Retrier.
type Doer interface {
	Do(ctx context.Context, req transport.Request) transport.Result
}

// Client is soap client
type Client struct {
	url       string
	transport transport.Transport
	opts      *options
	headers   []interface{}
}

// NewClient creates a SOAP client sending to url through t.
func NewClient(url string, t transport.Transport, opt ...Option) *Client {
	opts := defaultOptions
	for _, o := range opt {
		o(&opts)
	}
	if opts.log == nil {
		opts.log = logger.Nop()
	}
	return &Client{
		url:       url,
		transport: t,
		opts:      &opts,
	}
}

// URL returns the service endpoint.
func (s *Client) URL() string {
	return s.url
}

// AddHeader adds envelope header
// For correct behavior, every header must contain a `XMLName` field.
func (s *Client) AddHeader(header interface{}) {
	s.headers = append(s.headers, header)
}

// SetHeaders sets envelope headers, overwriting any existing headers.
// For correct behavior, every header must contain a `XMLName` field.
func (s *Client) SetHeaders(headers ...interface{}) {
	s.headers = headers
}

// Call invokes soapAction with request and decodes the answer into
// response, which becomes the Payload on success.
//
// The returned error only reports a request that could not be built;
// transport and response problems are reported through Response.Status.
func (s *Client) Call(ctx context.Context, soapAction string, request, response interface{}) (*Response, error) {
	return s.CallWithFaultDetail(ctx, soapAction, request, response, nil)
}

// CallWithFaultDetail is like Call, decoding the detail of a SOAP fault
// into faultDetail.
func (s *Client) CallWithFaultDetail(ctx context.Context, soapAction string, request, response interface{}, faultDetail FaultError) (*Response, error) {
	reqBody, err := s.opts.codec.Encode(request, s.headers)
	if err != nil {
		return nil, err
	}

	decode := func(body []byte) (interface{}, *SOAPFault, error) {
		fault, err := s.opts.codec.Decode(body, response, faultDetail)
		if err != nil || fault != nil {
			return nil, fault, err
		}
		return response, nil, nil
	}
	return s.send(ctx, soapAction, reqBody, decode), nil
}

// CallRaw sends an already serialized envelope. The payload on success is
// the response body as a string.
func (s *Client) CallRaw(ctx context.Context, soapAction string, envelope []byte) *Response {
	return s.send(ctx, soapAction, envelope, DecodeRaw)
}

func (s *Client) send(ctx context.Context, soapAction string, reqBody []byte, decode DecodeFunc) *Response {
	result := CallResult{
		RequestURL: s.url,
		Action:     soapAction,
		RequestContent: CallContent{
			Body: string(reqBody),
		},
	}

	result.InvokeAt = time.Now()
	var (
		body     []byte
		err      error
		attempts int
	)
	if d, ok := s.transport.(Doer); ok {
		res := d.Do(ctx, transport.Request{URL: s.url, Body: reqBody, Action: soapAction})
		body, err, attempts = res.Body, res.TransportError(), res.Attempts
		result.StatusCode = res.StatusCode
		result.RequestContent.Header = res.RequestHeader
		result.ResponseContent.Header = res.Header
	} else {
		body, err = s.transport.Send(ctx, s.url, reqBody, soapAction)
	}
	result.ReturnAt = time.Now()
	result.ResponseContent.Body = string(body)

	resp := Classify(body, err, decode)
	if resp.IsSuccess() {
		result.DecodedAt = time.Now()
	} else if resp.Fault == nil && resp.Cause != nil && err == nil && result.StatusCode >= 400 {
		resp.Cause = fmt.Errorf("%w: %w", &HTTPError{StatusCode: result.StatusCode, ResponseBody: body}, resp.Cause)
	}
	if attempts > 0 {
		resp.Attempts = attempts
	}
	resp.Result = result

	s.logResponse(resp)
	return resp
}

func (s *Client) logResponse(resp *Response) {
	if resp.IsSuccess() {
		s.opts.log.Debug().
			Str("url", s.url).
			Str("action", resp.Result.Action).
			Str("status", string(resp.Status)).
			Dur("elapsed", resp.Result.Elapsed()).
			Msg("soap call completed")
		return
	}
	s.opts.log.Warn().
		Err(resp.Cause).
		Str("url", s.url).
		Str("action", resp.Result.Action).
		Str("status", string(resp.Status)).
		Int("http_status", resp.Result.StatusCode).
		Msg(resp.Error)
}
