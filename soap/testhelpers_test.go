package soap

import (
	"context"
	"encoding/xml"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cheyinl/soaptransport/transport"
)

const (
	testAction = "urn:test#Ping"

	pongEnvelope = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <PingResponse xmlns="urn:test"><reply>pong</reply></PingResponse>
  </soap:Body>
</soap:Envelope>`

	faultEnvelope = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <soap:Fault>
      <faultcode>soap:Server</faultcode>
      <faultstring>backend exploded</faultstring>
      <detail><reason>disk full</reason></detail>
    </soap:Fault>
  </soap:Body>
</soap:Envelope>`
)

type pingRequest struct {
	XMLName xml.Name `xml:"urn:test Ping"`
	Message string   `xml:"message"`
}

type pingResponse struct {
	XMLName xml.Name `xml:"urn:test PingResponse"`
	Reply   string   `xml:"reply"`
}

type reasonDetail struct {
	Reason string `xml:"reason"`
}

func (d *reasonDetail) ErrorString() string { return "detail: " + d.Reason }
func (d *reasonDetail) HasData() bool       { return d.Reason != "" }

var errRefused = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

// sendFunc is a Transport that only implements Send.
type sendFunc func(ctx context.Context, url string, body []byte, action string) ([]byte, error)

func (f sendFunc) Send(ctx context.Context, url string, body []byte, action string) ([]byte, error) {
	return f(ctx, url, body, action)
}

// countingRetrier builds a Retrier whose executor replays outcomes, the
// last one repeating, and counts attempts.
func countingRetrier(t *testing.T, outcomes []transport.Outcome, opts ...transport.Option) (*transport.Retrier, *atomic.Int32) {
	t.Helper()
	cfg, err := transport.NewConfig(opts...)
	require.NoError(t, err)

	var calls atomic.Int32
	exec := transport.ExecutorFunc(func(context.Context, transport.Request, transport.Settings) transport.Outcome {
		n := int(calls.Add(1))
		if n > len(outcomes) {
			return outcomes[len(outcomes)-1]
		}
		return outcomes[n-1]
	})
	return transport.NewRetrier(cfg, transport.WithExecutor(exec)), &calls
}
