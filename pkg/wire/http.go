package wire

import "fmt"

type HTTPHeader struct {
	Name  string
	Value string
}

func (h HTTPHeader) MarshalWire(e *Encoder) {
	e.String(h.Name)
	e.String(h.Value)
}

func writeHeaders(e *Encoder, hs []HTTPHeader) {
	e.Len(len(hs))
	for _, h := range hs {
		h.MarshalWire(e)
	}
}

func readHeaders(d *Decoder) []HTTPHeader {
	n := d.Len()
	if n == 0 {
		return nil
	}
	out := make([]HTTPHeader, 0, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		out = append(out, HTTPHeader{Name: d.String(), Value: d.String()})
	}
	if d.Err() != nil {
		return nil
	}
	return out
}

// HTTPRequest is the core's description of a single HTTP exchange.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers []HTTPHeader
	Body    []byte
}

func (r HTTPRequest) MarshalWire(e *Encoder) {
	e.String(r.Method)
	e.String(r.URL)
	writeHeaders(e, r.Headers)
	e.ByteBuf(r.Body)
}

func ReadHTTPRequest(d *Decoder) HTTPRequest {
	return HTTPRequest{
		Method:  d.String(),
		URL:     d.String(),
		Headers: readHeaders(d),
		Body:    d.ByteBuf(),
	}
}

type HTTPResponse struct {
	Status  uint16
	Headers []HTTPHeader
	Body    []byte
}

func (r HTTPResponse) MarshalWire(e *Encoder) {
	e.U16(r.Status)
	writeHeaders(e, r.Headers)
	e.ByteBuf(r.Body)
}

func ReadHTTPResponse(d *Decoder) HTTPResponse {
	return HTTPResponse{
		Status:  d.U16(),
		Headers: readHeaders(d),
		Body:    d.ByteBuf(),
	}
}

type HTTPErrorKind uint32

const (
	HTTPErrorURL HTTPErrorKind = iota
	HTTPErrorIO
	HTTPErrorTimeout
)

// HTTPError is the failure half of an HTTPResult. Message is not carried on
// the wire for HTTPErrorTimeout.
type HTTPError struct {
	Kind    HTTPErrorKind
	Message string
}

func (e *HTTPError) Error() string {
	switch e.Kind {
	case HTTPErrorURL:
		return "http: invalid url: " + e.Message
	case HTTPErrorIO:
		return "http: io: " + e.Message
	case HTTPErrorTimeout:
		return "http: timeout"
	default:
		return fmt.Sprintf("http: error kind %d", e.Kind)
	}
}

func (e HTTPError) MarshalWire(enc *Encoder) {
	enc.Variant(uint32(e.Kind))
	if e.Kind != HTTPErrorTimeout {
		enc.String(e.Message)
	}
}

func ReadHTTPError(d *Decoder) HTTPError {
	tag := d.Variant()
	switch HTTPErrorKind(tag) {
	case HTTPErrorURL, HTTPErrorIO:
		return HTTPError{Kind: HTTPErrorKind(tag), Message: d.String()}
	case HTTPErrorTimeout:
		return HTTPError{Kind: HTTPErrorTimeout}
	default:
		d.Unknown("HttpError", tag)
		return HTTPError{}
	}
}

// HTTPResult is Ok(Response) when Err is nil, otherwise Err(Err).
type HTTPResult struct {
	Response HTTPResponse
	Err      *HTTPError
}

func HTTPOk(r HTTPResponse) HTTPResult { return HTTPResult{Response: r} }

func HTTPFailed(kind HTTPErrorKind, msg string) HTTPResult {
	if kind == HTTPErrorTimeout {
		msg = ""
	}
	return HTTPResult{Err: &HTTPError{Kind: kind, Message: msg}}
}

func (r HTTPResult) MarshalWire(e *Encoder) {
	if r.Err != nil {
		e.Variant(1)
		r.Err.MarshalWire(e)
		return
	}
	e.Variant(0)
	r.Response.MarshalWire(e)
}

func DecodeHTTPResult(b []byte) (HTTPResult, error) {
	return decode(b, ReadHTTPResult)
}

func ReadHTTPResult(d *Decoder) HTTPResult {
	switch tag := d.Variant(); tag {
	case 0:
		return HTTPResult{Response: ReadHTTPResponse(d)}
	case 1:
		he := ReadHTTPError(d)
		return HTTPResult{Err: &he}
	default:
		d.Unknown("HttpResult", tag)
		return HTTPResult{}
	}
}
