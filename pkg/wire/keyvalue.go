package wire

import "fmt"

// Value is an optional byte buffer. The zero Value is None.
type Value struct {
	Bytes   []byte
	Present bool
}

// Some returns a present Value holding b.
func Some(b []byte) Value { return Value{Bytes: b, Present: true} }

func (v Value) MarshalWire(e *Encoder) {
	if !v.Present {
		e.Variant(0)
		return
	}
	e.Variant(1)
	e.ByteBuf(v.Bytes)
}

func ReadValue(d *Decoder) Value {
	switch tag := d.Variant(); tag {
	case 0:
		return Value{}
	case 1:
		return Some(d.ByteBuf())
	default:
		d.Unknown("Value", tag)
		return Value{}
	}
}

// KeyValueOperation is one of KVGet, KVSet, KVDelete, KVExists or KVListKeys.
type KeyValueOperation interface {
	Marshaler
	keyValueOperation()
}

type KVGet struct{ Key string }

type KVSet struct {
	Key   string
	Value []byte
}

type KVDelete struct{ Key string }

type KVExists struct{ Key string }

// KVListKeys enumerates keys starting with Prefix. A zero Cursor starts a
// new enumeration.
type KVListKeys struct {
	Prefix string
	Cursor uint64
}

func (KVGet) keyValueOperation()      {}
func (KVSet) keyValueOperation()      {}
func (KVDelete) keyValueOperation()   {}
func (KVExists) keyValueOperation()   {}
func (KVListKeys) keyValueOperation() {}

func (o KVGet) MarshalWire(e *Encoder) {
	e.Variant(0)
	e.String(o.Key)
}

func (o KVSet) MarshalWire(e *Encoder) {
	e.Variant(1)
	e.String(o.Key)
	e.ByteBuf(o.Value)
}

func (o KVDelete) MarshalWire(e *Encoder) {
	e.Variant(2)
	e.String(o.Key)
}

func (o KVExists) MarshalWire(e *Encoder) {
	e.Variant(3)
	e.String(o.Key)
}

func (o KVListKeys) MarshalWire(e *Encoder) {
	e.Variant(4)
	e.String(o.Prefix)
	e.U64(o.Cursor)
}

func ReadKeyValueOperation(d *Decoder) KeyValueOperation {
	switch tag := d.Variant(); tag {
	case 0:
		return KVGet{Key: d.String()}
	case 1:
		return KVSet{Key: d.String(), Value: d.ByteBuf()}
	case 2:
		return KVDelete{Key: d.String()}
	case 3:
		return KVExists{Key: d.String()}
	case 4:
		return KVListKeys{Prefix: d.String(), Cursor: d.U64()}
	default:
		d.Unknown("KeyValueOperation", tag)
		return nil
	}
}

// KeyValueResponse mirrors the operation that produced it.
type KeyValueResponse interface {
	Marshaler
	keyValueResponse()
}

type KVGot struct{ Value Value }

// KVWasSet carries the value the key held before the write.
type KVWasSet struct{ Previous Value }

type KVDeleted struct{ Previous Value }

type KVExistence struct{ IsPresent bool }

// KVKeys is one page of an enumeration. A zero NextCursor means the
// enumeration is complete.
type KVKeys struct {
	Keys       []string
	NextCursor uint64
}

func (KVGot) keyValueResponse()       {}
func (KVWasSet) keyValueResponse()    {}
func (KVDeleted) keyValueResponse()   {}
func (KVExistence) keyValueResponse() {}
func (KVKeys) keyValueResponse()      {}

func (r KVGot) MarshalWire(e *Encoder) {
	e.Variant(0)
	r.Value.MarshalWire(e)
}

func (r KVWasSet) MarshalWire(e *Encoder) {
	e.Variant(1)
	r.Previous.MarshalWire(e)
}

func (r KVDeleted) MarshalWire(e *Encoder) {
	e.Variant(2)
	r.Previous.MarshalWire(e)
}

func (r KVExistence) MarshalWire(e *Encoder) {
	e.Variant(3)
	e.Bool(r.IsPresent)
}

func (r KVKeys) MarshalWire(e *Encoder) {
	e.Variant(4)
	e.Strings(r.Keys)
	e.U64(r.NextCursor)
}

func ReadKeyValueResponse(d *Decoder) KeyValueResponse {
	switch tag := d.Variant(); tag {
	case 0:
		return KVGot{Value: ReadValue(d)}
	case 1:
		return KVWasSet{Previous: ReadValue(d)}
	case 2:
		return KVDeleted{Previous: ReadValue(d)}
	case 3:
		return KVExistence{IsPresent: d.Bool()}
	case 4:
		return KVKeys{Keys: d.Strings(), NextCursor: d.U64()}
	default:
		d.Unknown("KeyValueResponse", tag)
		return nil
	}
}

type KeyValueErrorKind uint32

const (
	KVErrorIO KeyValueErrorKind = iota
	KVErrorTimeout
	KVErrorCursorNotFound
	KVErrorOther
)

// KeyValueError is reported to the core in place of a response. Message is
// carried only for KVErrorIO and KVErrorOther.
type KeyValueError struct {
	Kind    KeyValueErrorKind
	Message string
}

func (e *KeyValueError) Error() string {
	switch e.Kind {
	case KVErrorIO:
		return "kv: io: " + e.Message
	case KVErrorTimeout:
		return "kv: timeout"
	case KVErrorCursorNotFound:
		return "kv: cursor not found"
	case KVErrorOther:
		return "kv: " + e.Message
	default:
		return fmt.Sprintf("kv: error kind %d", e.Kind)
	}
}

func (e KeyValueError) MarshalWire(enc *Encoder) {
	enc.Variant(uint32(e.Kind))
	if e.Kind == KVErrorIO || e.Kind == KVErrorOther {
		enc.String(e.Message)
	}
}

func ReadKeyValueError(d *Decoder) KeyValueError {
	tag := d.Variant()
	switch k := KeyValueErrorKind(tag); k {
	case KVErrorIO, KVErrorOther:
		return KeyValueError{Kind: k, Message: d.String()}
	case KVErrorTimeout, KVErrorCursorNotFound:
		return KeyValueError{Kind: k}
	default:
		d.Unknown("KeyValueError", tag)
		return KeyValueError{}
	}
}

type KeyValueResult struct {
	Response KeyValueResponse
	Err      *KeyValueError
}

func KeyValueOk(r KeyValueResponse) KeyValueResult { return KeyValueResult{Response: r} }

func KeyValueFailed(kind KeyValueErrorKind, msg string) KeyValueResult {
	if kind != KVErrorIO && kind != KVErrorOther {
		msg = ""
	}
	return KeyValueResult{Err: &KeyValueError{Kind: kind, Message: msg}}
}

func (r KeyValueResult) MarshalWire(e *Encoder) {
	if r.Err != nil {
		e.Variant(1)
		r.Err.MarshalWire(e)
		return
	}
	e.Variant(0)
	r.Response.MarshalWire(e)
}

func DecodeKeyValueResult(b []byte) (KeyValueResult, error) {
	return decode(b, ReadKeyValueResult)
}

func ReadKeyValueResult(d *Decoder) KeyValueResult {
	switch tag := d.Variant(); tag {
	case 0:
		return KeyValueResult{Response: ReadKeyValueResponse(d)}
	case 1:
		ke := ReadKeyValueError(d)
		return KeyValueResult{Err: &ke}
	default:
		d.Unknown("KeyValueResult", tag)
		return KeyValueResult{}
	}
}
