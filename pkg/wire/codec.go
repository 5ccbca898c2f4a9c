package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrMalformed is returned for any input that is not a valid encoding.
	ErrMalformed = errors.New("wire: malformed input")
	// ErrUnknownVariant is returned when an enum tag is outside the known set.
	// Errors carrying it also match ErrMalformed.
	ErrUnknownVariant = errors.New("wire: unknown variant")
)

// Marshaler is implemented by every value that can be written to the wire.
type Marshaler interface {
	MarshalWire(e *Encoder)
}

// Marshal encodes v into a fresh buffer.
func Marshal(v Marshaler) []byte {
	var e Encoder
	v.MarshalWire(&e)
	return e.Bytes()
}

// Encoder appends bincode-encoded values to an internal buffer.
// The zero value is ready to use.
type Encoder struct {
	buf []byte
}

// Bytes returns the encoded buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) U8(v uint8) { e.buf = append(e.buf, v) }

func (e *Encoder) Bool(v bool) {
	if v {
		e.U8(1)
		return
	}
	e.U8(0)
}

func (e *Encoder) U16(v uint16) { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }
func (e *Encoder) U32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *Encoder) U64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *Encoder) I32(v int32)  { e.U32(uint32(v)) }
func (e *Encoder) I64(v int64)  { e.U64(uint64(v)) }

// Len writes a sequence, string or buffer length.
func (e *Encoder) Len(n int) { e.U64(uint64(n)) }

// Variant writes an enum variant index.
func (e *Encoder) Variant(tag uint32) { e.U32(tag) }

func (e *Encoder) String(s string) {
	e.Len(len(s))
	e.buf = append(e.buf, s...)
}

// ByteBuf writes a length-prefixed byte buffer (Vec<u8>).
func (e *Encoder) ByteBuf(b []byte) {
	e.Len(len(b))
	e.buf = append(e.buf, b...)
}

// Option writes the presence tag of an Option.
func (e *Encoder) Option(present bool) { e.Bool(present) }

func (e *Encoder) OptionalString(s *string) {
	e.Option(s != nil)
	if s != nil {
		e.String(*s)
	}
}

func (e *Encoder) Strings(ss []string) {
	e.Len(len(ss))
	for _, s := range ss {
		e.String(s)
	}
}

// Decoder reads bincode-encoded values. The first failure is sticky: every
// later read returns a zero value and Err reports the original failure.
type Decoder struct {
	buf []byte
	off int
	err error
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Err returns the first decoding failure, if any.
func (d *Decoder) Err() error { return d.err }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

// Finish reports the first failure, or ErrMalformed if unread bytes remain.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.buf) {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(d.buf)-d.off)
	}
	return nil
}

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// Unknown records an unrecognised variant tag for the named type.
func (d *Decoder) Unknown(typ string, tag uint32) {
	d.fail(fmt.Errorf("%w: %w: %s tag %d", ErrMalformed, ErrUnknownVariant, typ, tag))
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > d.Remaining() {
		d.fail(fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrMalformed, n, d.off, d.Remaining()))
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *Decoder) U8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *Decoder) Bool() bool {
	switch v := d.U8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		d.fail(fmt.Errorf("%w: invalid bool byte %d", ErrMalformed, v))
		return false
	}
}

func (d *Decoder) U16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *Decoder) U32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *Decoder) U64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *Decoder) I32() int32 { return int32(d.U32()) }
func (d *Decoder) I64() int64 { return int64(d.U64()) }

// Len reads a length prefix. Every element of every sequence in the protocol
// occupies at least one byte, so a length larger than the remaining input is
// rejected before anything is allocated.
func (d *Decoder) Len() int {
	n := d.U64()
	if d.err != nil {
		return 0
	}
	if n > uint64(d.Remaining()) {
		d.fail(fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrMalformed, n, d.Remaining()))
		return 0
	}
	return int(n)
}

func (d *Decoder) Variant() uint32 { return d.U32() }

func (d *Decoder) String() string {
	b := d.take(d.Len())
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		d.fail(fmt.Errorf("%w: invalid utf-8 in string", ErrMalformed))
		return ""
	}
	return string(b)
}

// ByteBuf reads a length-prefixed byte buffer. An empty buffer decodes as nil.
func (d *Decoder) ByteBuf() []byte {
	n := d.Len()
	b := d.take(n)
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (d *Decoder) Option() bool {
	switch v := d.U8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		d.fail(fmt.Errorf("%w: invalid option tag %d", ErrMalformed, v))
		return false
	}
}

func (d *Decoder) OptionalString() *string {
	if !d.Option() {
		return nil
	}
	s := d.String()
	if d.err != nil {
		return nil
	}
	return &s
}

func (d *Decoder) Strings() []string {
	n := d.Len()
	if n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.String())
	}
	if d.err != nil {
		return nil
	}
	return out
}

// decode runs read over b and requires the whole input to be consumed.
func decode[T any](b []byte, read func(*Decoder) T) (T, error) {
	d := NewDecoder(b)
	v := read(d)
	if err := d.Finish(); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Decode runs read over b and requires the whole input to be consumed. It is
// the entry point for types defined outside this package.
func Decode[T any](b []byte, read func(*Decoder) T) (T, error) {
	return decode(b, read)
}
