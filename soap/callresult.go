package soap

import (
	"net/http"
	"time"
)

// CallContent is one side of an exchange.
type CallContent struct {
	Header http.Header
	Body   string
}

// CallResult records what was sent and received during a call and when.
// StatusCode and both headers are only known when the transport exposes
// them (see Doer).
type CallResult struct {
	RequestURL      string
	Action          string
	StatusCode      int
	RequestContent  CallContent
	ResponseContent CallContent
	InvokeAt        time.Time
	ReturnAt        time.Time
	DecodedAt       time.Time
}

// Elapsed is the time spent in the transport, every attempt included.
func (r CallResult) Elapsed() time.Duration {
	if r.ReturnAt.IsZero() {
		return 0
	}
	return r.ReturnAt.Sub(r.InvokeAt)
}
