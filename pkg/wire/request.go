package wire

import "fmt"

// RequestID identifies a pending effect request within the core. Ids are
// chosen by the core and are unique among the requests currently in flight.
type RequestID uint32

// EffectKind is the variant index of an Effect on the wire.
type EffectKind uint32

const (
	KindRender EffectKind = iota
	KindHTTP
	KindKeyStore
	KindKeyValue
	KindServerSentEvents
	KindStore
)

func (k EffectKind) String() string {
	switch k {
	case KindRender:
		return "render"
	case KindHTTP:
		return "http"
	case KindKeyStore:
		return "key_store"
	case KindKeyValue:
		return "key_value"
	case KindServerSentEvents:
		return "server_sent_events"
	case KindStore:
		return "store"
	default:
		return fmt.Sprintf("effect(%d)", uint32(k))
	}
}

// Effect is the payload of a Request. Concrete types are RenderEffect,
// HTTPEffect, KeyStoreEffect, KeyValueEffect, SSEEffect and StoreEffect.
type Effect interface {
	Marshaler
	Kind() EffectKind
}

// RenderEffect asks the shell to refresh the view. Its operation carries no
// data, so it encodes as the variant tag alone.
type RenderEffect struct{}

func (RenderEffect) Kind() EffectKind        { return KindRender }
func (RenderEffect) MarshalWire(e *Encoder) { e.Variant(uint32(KindRender)) }

type HTTPEffect struct {
	Request HTTPRequest
}

func (HTTPEffect) Kind() EffectKind { return KindHTTP }
func (f HTTPEffect) MarshalWire(e *Encoder) {
	e.Variant(uint32(KindHTTP))
	f.Request.MarshalWire(e)
}

type KeyStoreEffect struct {
	Operation KeyStoreOperation
}

func (KeyStoreEffect) Kind() EffectKind { return KindKeyStore }
func (f KeyStoreEffect) MarshalWire(e *Encoder) {
	e.Variant(uint32(KindKeyStore))
	f.Operation.MarshalWire(e)
}

type KeyValueEffect struct {
	Operation KeyValueOperation
}

func (KeyValueEffect) Kind() EffectKind { return KindKeyValue }
func (f KeyValueEffect) MarshalWire(e *Encoder) {
	e.Variant(uint32(KindKeyValue))
	f.Operation.MarshalWire(e)
}

type SSEEffect struct {
	Request SSERequest
}

func (SSEEffect) Kind() EffectKind { return KindServerSentEvents }
func (f SSEEffect) MarshalWire(e *Encoder) {
	e.Variant(uint32(KindServerSentEvents))
	f.Request.MarshalWire(e)
}

type StoreEffect struct {
	Operation StoreOperation
}

func (StoreEffect) Kind() EffectKind { return KindStore }
func (f StoreEffect) MarshalWire(e *Encoder) {
	e.Variant(uint32(KindStore))
	f.Operation.MarshalWire(e)
}

// Request pairs an effect with the id the core expects its result under.
type Request struct {
	ID     RequestID
	Effect Effect
}

func (r Request) MarshalWire(e *Encoder) {
	e.U32(uint32(r.ID))
	r.Effect.MarshalWire(e)
}

// Batch is the list of requests the core returns from every call.
type Batch []Request

func (b Batch) MarshalWire(e *Encoder) {
	e.Len(len(b))
	for _, r := range b {
		r.MarshalWire(e)
	}
}

// DecodeRequests decodes a batch of requests returned by the core.
func DecodeRequests(b []byte) (Batch, error) {
	return decode(b, ReadBatch)
}

func ReadBatch(d *Decoder) Batch {
	n := d.Len()
	if n == 0 {
		return nil
	}
	out := make(Batch, 0, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		out = append(out, ReadRequest(d))
	}
	if d.Err() != nil {
		return nil
	}
	return out
}

func ReadRequest(d *Decoder) Request {
	id := RequestID(d.U32())
	return Request{ID: id, Effect: ReadEffect(d)}
}

func ReadEffect(d *Decoder) Effect {
	tag := d.Variant()
	if d.Err() != nil {
		return nil
	}
	switch EffectKind(tag) {
	case KindRender:
		return RenderEffect{}
	case KindHTTP:
		return HTTPEffect{Request: ReadHTTPRequest(d)}
	case KindKeyStore:
		return KeyStoreEffect{Operation: ReadKeyStoreOperation(d)}
	case KindKeyValue:
		return KeyValueEffect{Operation: ReadKeyValueOperation(d)}
	case KindServerSentEvents:
		return SSEEffect{Request: ReadSSERequest(d)}
	case KindStore:
		return StoreEffect{Operation: ReadStoreOperation(d)}
	default:
		d.Unknown("Effect", tag)
		return nil
	}
}
