package soap

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	gowsdl "github.com/hooklift/gowsdl/soap"

	"github.com/cheyinl/soaptransport/transport"
)

// HTTPClient adapts a Doer to the HTTPClient interface of gowsdl, so
// service stubs generated by gowsdl go through the retrying transport.
//
// Only the URL, the body and the SOAPAction header of the outgoing request
// are forwarded; headers, timeouts, TLS and credentials come from the
// transport configuration.
type HTTPClient struct {
	Transport Doer
}

var _ gowsdl.HTTPClient = (*HTTPClient)(nil)

// Do sends req through the transport. A transport failure after every
// attempt is returned as *transport.Error. Any completed exchange becomes
// an *http.Response, whatever its status code.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	action := strings.Trim(req.Header.Get("SOAPAction"), `"`)
	res := c.Transport.Do(req.Context(), transport.Request{
		URL:    req.URL.String(),
		Body:   body,
		Action: action,
	})
	if err := res.TransportError(); err != nil {
		return nil, err
	}

	header := res.Header
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", res.StatusCode, http.StatusText(res.StatusCode)),
		StatusCode:    res.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(res.Body)),
		ContentLength: int64(len(res.Body)),
		Request:       req,
	}, nil
}

// NewGowsdlClient returns a gowsdl SOAP client that delivers through r.
// Options that build their own HTTP client, such as WithTLS or
// WithTimeout, have no effect since the HTTP client is replaced.
func NewGowsdlClient(url string, r *transport.Retrier, opts ...gowsdl.Option) *gowsdl.Client {
	opts = append(opts, gowsdl.WithHTTPClient(&HTTPClient{Transport: r}))
	return gowsdl.NewClient(url, opts...)
}
