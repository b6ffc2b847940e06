package soap

import (
	"errors"
	"fmt"

	"github.com/cheyinl/soaptransport/transport"
)

// Status is the outcome of a call as seen by the caller.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusTimeout Status = "TIMEOUT"
	StatusFail    Status = "FAIL"
)

// Messages reported in Response.Error.
const (
	MsgServiceUnavailable = "Service unavailable, please try again shortly."
	MsgTransportFailure   = "Transport failure, the request could not be completed."
	msgMalformedResponse  = "Malformed SOAP response"
)

// Response is the typed result of a call. Callers must check Status before
// using Payload: Payload is only set on success and Error is only set
// otherwise.
type Response struct {
	Status  Status
	Payload interface{}
	Error   string

	// Cause is the underlying transport, decode or fault error.
	Cause error
	// Fault is set when the service answered with a SOAP fault.
	Fault *SOAPFault
	// Raw is the response body, when one was received.
	Raw []byte
	// Attempts is the number of transport attempts, when known.
	Attempts int
	// Result records the request and response of the call.
	Result CallResult
}

// IsSuccess reports whether the call succeeded.
func (r *Response) IsSuccess() bool {
	return r.Status == StatusSuccess
}

// HasError reports whether an error message is present.
func (r *Response) HasError() bool {
	return r.Error != ""
}

// DecodeFunc turns a raw response body into the payload handed to the
// caller. It returns a non-nil fault when the service reported one.
type DecodeFunc func(body []byte) (payload interface{}, fault *SOAPFault, err error)

// DecodeRaw keeps the body as a string payload.
func DecodeRaw(body []byte) (interface{}, *SOAPFault, error) {
	return string(body), nil, nil
}

// Classify maps the final transport outcome to a Response. It never
// panics and every path yields a well-formed Response.
//
// A transport timeout gives TIMEOUT, any other transport error gives FAIL.
// The kind of a *transport.Error is authoritative; other errors are
// classified with transport.ClassifyError.
// Bytes are handed to decode: success gives SUCCESS, while a decode error
// or a SOAP fault gives FAIL.
func Classify(body []byte, err error, decode DecodeFunc) (resp *Response) {
	if err != nil {
		resp = &Response{Status: StatusFail, Error: MsgTransportFailure, Cause: err}
		kind := transport.ClassifyError(err)
		var terr *transport.Error
		if errors.As(err, &terr) {
			kind = terr.Kind
			resp.Attempts = terr.Attempts
		}
		if kind == transport.KindTimeout {
			resp.Status = StatusTimeout
			resp.Error = MsgServiceUnavailable
		}
		return resp
	}

	if decode == nil {
		decode = DecodeRaw
	}

	defer func() {
		if r := recover(); r != nil {
			resp = &Response{
				Status: StatusFail,
				Error:  msgMalformedResponse,
				Cause:  fmt.Errorf("decode panic: %v", r),
				Raw:    body,
			}
		}
	}()

	payload, fault, derr := decode(body)
	switch {
	case derr != nil:
		return &Response{
			Status: StatusFail,
			Error:  fmt.Sprintf("%s: %v", msgMalformedResponse, derr),
			Cause:  derr,
			Raw:    body,
		}
	case fault != nil:
		msg := fault.Error()
		if msg == "" {
			msg = "SOAP fault"
		}
		return &Response{
			Status: StatusFail,
			Error:  msg,
			Cause:  fault,
			Fault:  fault,
			Raw:    body,
		}
	}
	return &Response{Status: StatusSuccess, Payload: payload, Raw: body}
}
