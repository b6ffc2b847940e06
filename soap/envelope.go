package soap

import (
	"encoding/xml"
	"fmt"
)

// XmlNsSoapEnv is the SOAP 1.1 envelope namespace.
const XmlNsSoapEnv string = "http://schemas.xmlsoap.org/soap/envelope/"

// SOAPEnvelope is the outgoing envelope, marshalled with the SOAP-ENV prefix.
type SOAPEnvelope struct {
	XMLName xml.Name `xml:"SOAP-ENV:Envelope"`
	XmlNS   string   `xml:"xmlns:SOAP-ENV,attr"`

	Header *SOAPHeader
	Body   SOAPBody
}

type SOAPHeader struct {
	XMLName xml.Name `xml:"SOAP-ENV:Header"`

	Headers []interface{}
}

type SOAPBody struct {
	XMLName xml.Name `xml:"SOAP-ENV:Body"`

	Content interface{} `xml:",omitempty"`
}

// SOAPEnvelopeResponse is the incoming envelope. xml.Decoder cannot handle
// namespace prefixes, so it is matched on the namespace URI only.
type SOAPEnvelopeResponse struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Header  *SOAPHeaderResponse
	Body    SOAPBodyResponse
}

type SOAPHeaderResponse struct {
	XMLName xml.Name `xml:"Header"`

	Headers []interface{}
}

type SOAPBodyResponse struct {
	XMLName xml.Name `xml:"Body"`

	Content interface{} `xml:",omitempty"`

	// faultOccurred indicates whether the XML body included a fault;
	// we cannot simply store SOAPFault as a pointer to indicate this, since
	// fault is initialized to non-nil with user-provided detail type.
	faultOccurred bool
	Fault         *SOAPFault `xml:",omitempty"`
}

// UnmarshalXML decodes the single body element into Content, or into Fault
// when the element is a SOAP fault.
func (b *SOAPBodyResponse) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	if b.Content == nil {
		return xml.UnmarshalError("Content must be a pointer to a struct")
	}

	var (
		token    xml.Token
		err      error
		consumed bool
	)

Loop:
	for {
		if token, err = d.Token(); err != nil {
			return err
		}

		if token == nil {
			break
		}

		switch se := token.(type) {
		case xml.StartElement:
			if consumed {
				return xml.UnmarshalError("Found multiple elements inside SOAP body; not wrapped-document/literal WS-I compliant")
			} else if se.Name.Space == XmlNsSoapEnv && se.Name.Local == "Fault" {
				b.faultOccurred = true
				if err = d.DecodeElement(b.Fault, &se); err != nil {
					return err
				}
				consumed = true
			} else {
				if err = d.DecodeElement(b.Content, &se); err != nil {
					return err
				}
				consumed = true
			}
		case xml.EndElement:
			break Loop
		}
	}

	return nil
}

// FaultFromBody returns the decoded fault, or nil when the body held content.
func (b *SOAPBodyResponse) FaultFromBody() *SOAPFault {
	if b.faultOccurred {
		return b.Fault
	}
	return nil
}

// FaultError condenses a fault detail into a short message.
type FaultError interface {
	// ErrorString should return a short version of the detail as a string,
	// which will be used in place of <faultstring> for the error message.
	// Set "HasData()" to always return false if <faultstring> error
	// message is preferred.
	ErrorString() string
	// HasData indicates whether the composite fault contains any data.
	HasData() bool
}

type SOAPFault struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Fault"`

	Code   string     `xml:"faultcode,omitempty"`
	String string     `xml:"faultstring,omitempty"`
	Actor  string     `xml:"faultactor,omitempty"`
	Detail FaultError `xml:"detail,omitempty"`
}

func (f *SOAPFault) Error() string {
	if f.Detail != nil && f.Detail.HasData() {
		return f.Detail.ErrorString()
	}
	if f.Code != "" {
		return fmt.Sprintf("%s: %s", f.Code, f.String)
	}
	return f.String
}

// HTTPError carries a non-2xx status for callers that want one. The
// transport itself never fails on a status code.
type HTTPError struct {
	StatusCode   int
	ResponseBody []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP Status %d: %s", e.StatusCode, string(e.ResponseBody))
}
