package wire

import "fmt"

// KeyStoreOperation is one of KSGet, KSSet, KSDelete or KSGenerateSecret.
type KeyStoreOperation interface {
	Marshaler
	keyStoreOperation()
}

type KSGet struct {
	ID      string
	Purpose string
}

type KSSet struct {
	ID      string
	Purpose string
	Data    []byte
}

type KSDelete struct {
	ID      string
	Purpose string
}

type KSGenerateSecret struct {
	Length uint64
}

func (KSGet) keyStoreOperation()            {}
func (KSSet) keyStoreOperation()            {}
func (KSDelete) keyStoreOperation()         {}
func (KSGenerateSecret) keyStoreOperation() {}

func (o KSGet) MarshalWire(e *Encoder) {
	e.Variant(0)
	e.String(o.ID)
	e.String(o.Purpose)
}

func (o KSSet) MarshalWire(e *Encoder) {
	e.Variant(1)
	e.String(o.ID)
	e.String(o.Purpose)
	e.ByteBuf(o.Data)
}

func (o KSDelete) MarshalWire(e *Encoder) {
	e.Variant(2)
	e.String(o.ID)
	e.String(o.Purpose)
}

func (o KSGenerateSecret) MarshalWire(e *Encoder) {
	e.Variant(3)
	e.U64(o.Length)
}

func ReadKeyStoreOperation(d *Decoder) KeyStoreOperation {
	switch tag := d.Variant(); tag {
	case 0:
		return KSGet{ID: d.String(), Purpose: d.String()}
	case 1:
		return KSSet{ID: d.String(), Purpose: d.String(), Data: d.ByteBuf()}
	case 2:
		return KSDelete{ID: d.String(), Purpose: d.String()}
	case 3:
		return KSGenerateSecret{Length: d.U64()}
	default:
		d.Unknown("KeyStoreOperation", tag)
		return nil
	}
}

type KeyStoreResponse interface {
	Marshaler
	keyStoreResponse()
}

// KSRetrieved carries the stored entry; an absent entry is a Value with
// Present unset.
type KSRetrieved struct{ Key Value }

type KSWasSet struct{}

type KSDeleted struct{}

type KSGeneratedSecret struct{ Secret []byte }

func (KSRetrieved) keyStoreResponse()       {}
func (KSWasSet) keyStoreResponse()          {}
func (KSDeleted) keyStoreResponse()         {}
func (KSGeneratedSecret) keyStoreResponse() {}

func (r KSRetrieved) MarshalWire(e *Encoder) {
	e.Variant(0)
	r.Key.MarshalWire(e)
}

func (KSWasSet) MarshalWire(e *Encoder)  { e.Variant(1) }
func (KSDeleted) MarshalWire(e *Encoder) { e.Variant(2) }

func (r KSGeneratedSecret) MarshalWire(e *Encoder) {
	e.Variant(3)
	e.ByteBuf(r.Secret)
}

func ReadKeyStoreResponse(d *Decoder) KeyStoreResponse {
	switch tag := d.Variant(); tag {
	case 0:
		return KSRetrieved{Key: ReadValue(d)}
	case 1:
		return KSWasSet{}
	case 2:
		return KSDeleted{}
	case 3:
		return KSGeneratedSecret{Secret: d.ByteBuf()}
	default:
		d.Unknown("KeyStoreResponse", tag)
		return nil
	}
}

type KeyStoreErrorKind uint32

const (
	KSErrorInvalidRequest KeyStoreErrorKind = iota
	KSErrorInvalidResponse
)

type KeyStoreError struct {
	Kind    KeyStoreErrorKind
	Message string
}

func (e *KeyStoreError) Error() string {
	switch e.Kind {
	case KSErrorInvalidRequest:
		return "keystore: invalid request: " + e.Message
	case KSErrorInvalidResponse:
		return "keystore: invalid response: " + e.Message
	default:
		return fmt.Sprintf("keystore: error kind %d", e.Kind)
	}
}

func (e KeyStoreError) MarshalWire(enc *Encoder) {
	enc.Variant(uint32(e.Kind))
	enc.String(e.Message)
}

func ReadKeyStoreError(d *Decoder) KeyStoreError {
	tag := d.Variant()
	switch k := KeyStoreErrorKind(tag); k {
	case KSErrorInvalidRequest, KSErrorInvalidResponse:
		return KeyStoreError{Kind: k, Message: d.String()}
	default:
		d.Unknown("KeyStoreError", tag)
		return KeyStoreError{}
	}
}

type KeyStoreResult struct {
	Response KeyStoreResponse
	Err      *KeyStoreError
}

func KeyStoreOk(r KeyStoreResponse) KeyStoreResult { return KeyStoreResult{Response: r} }

func KeyStoreFailed(kind KeyStoreErrorKind, msg string) KeyStoreResult {
	return KeyStoreResult{Err: &KeyStoreError{Kind: kind, Message: msg}}
}

func (r KeyStoreResult) MarshalWire(e *Encoder) {
	if r.Err != nil {
		e.Variant(1)
		r.Err.MarshalWire(e)
		return
	}
	e.Variant(0)
	r.Response.MarshalWire(e)
}

func DecodeKeyStoreResult(b []byte) (KeyStoreResult, error) {
	return decode(b, ReadKeyStoreResult)
}

func ReadKeyStoreResult(d *Decoder) KeyStoreResult {
	switch tag := d.Variant(); tag {
	case 0:
		return KeyStoreResult{Response: ReadKeyStoreResponse(d)}
	case 1:
		ke := ReadKeyStoreError(d)
		return KeyStoreResult{Err: &ke}
	default:
		d.Unknown("KeyStoreResult", tag)
		return KeyStoreResult{}
	}
}
