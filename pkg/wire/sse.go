package wire

type SSERequest struct {
	URL string
}

func (r SSERequest) MarshalWire(e *Encoder) { e.String(r.URL) }

func ReadSSERequest(d *Decoder) SSERequest { return SSERequest{URL: d.String()} }

// SSEResponse is one item of a server-sent-events subscription: SSEChunk,
// SSEDone or SSEError. Done and Error end the subscription.
type SSEResponse interface {
	Marshaler
	Terminal() bool
}

// SSEChunk carries the bytes of one dispatched event block.
type SSEChunk struct {
	Data []byte
}

type SSEDone struct{}

// SSEError ends a subscription that failed after (or before) it produced any
// chunks.
type SSEError struct {
	Message string
}

func (SSEChunk) Terminal() bool { return false }
func (SSEDone) Terminal() bool  { return true }
func (SSEError) Terminal() bool { return true }

func (c SSEChunk) MarshalWire(e *Encoder) {
	e.Variant(0)
	e.ByteBuf(c.Data)
}

func (SSEDone) MarshalWire(e *Encoder) { e.Variant(1) }

func (s SSEError) MarshalWire(e *Encoder) {
	e.Variant(2)
	e.String(s.Message)
}

func (s SSEError) Error() string { return "sse: " + s.Message }

func DecodeSSEResponse(b []byte) (SSEResponse, error) {
	return decode(b, ReadSSEResponse)
}

func ReadSSEResponse(d *Decoder) SSEResponse {
	switch tag := d.Variant(); tag {
	case 0:
		return SSEChunk{Data: d.ByteBuf()}
	case 1:
		return SSEDone{}
	case 2:
		return SSEError{Message: d.String()}
	default:
		d.Unknown("SseResponse", tag)
		return nil
	}
}
