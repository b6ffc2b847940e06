package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Codec builds request envelopes and parses response envelopes. It plays
// the part of the SOAP engine around the transport.
type Codec interface {
	Encode(request interface{}, headers []interface{}) ([]byte, error)
	// Decode fills response from the envelope in body. A SOAP fault is
	// returned as *SOAPFault with a nil error.
	Decode(body []byte, response interface{}, faultDetail FaultError) (*SOAPFault, error)
}

// XMLCodec is the encoding/xml based Codec for SOAP 1.1 envelopes.
type XMLCodec struct{}

var _ Codec = XMLCodec{}

// Encode marshals request into a SOAP-ENV envelope. Headers are added to
// the envelope header when present; each must carry an XMLName field.
func (XMLCodec) Encode(request interface{}, headers []interface{}) ([]byte, error) {
	envelope := SOAPEnvelope{
		XmlNS: XmlNsSoapEnv,
	}
	envelope.Body.Content = request
	if len(headers) > 0 {
		envelope.Header = &SOAPHeader{Headers: headers}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(envelope); err != nil {
		return nil, fmt.Errorf("marshal envelope failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode unmarshals the envelope in body into response. An empty body,
// as sent back for one-way operations, leaves response untouched.
func (XMLCodec) Decode(body []byte, response interface{}, faultDetail FaultError) (*SOAPFault, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	respEnvelope := new(SOAPEnvelopeResponse)
	respEnvelope.Body = SOAPBodyResponse{
		Content: response,
		Fault: &SOAPFault{
			Detail: faultDetail,
		},
	}

	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(respEnvelope); err != nil {
		return nil, fmt.Errorf("cannot decode: %w", err)
	}
	return respEnvelope.Body.FaultFromBody(), nil
}

// RawMessage captures the body element of a response envelope verbatim.
type RawMessage struct {
	XMLName xml.Name
	Inner   []byte `xml:",innerxml"`
}

// String returns the inner XML of the captured element.
func (m *RawMessage) String() string {
	return string(m.Inner)
}
