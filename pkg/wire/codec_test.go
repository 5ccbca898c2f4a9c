package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_Primitives(t *testing.T) {
	var e Encoder
	e.U8(0xAB)
	e.Bool(true)
	e.U16(0x0102)
	e.U32(0x01020304)
	e.U64(1)
	e.String("hi")
	e.Option(false)

	want := []byte{
		0xAB,
		0x01,
		0x02, 0x01,
		0x04, 0x03, 0x02, 0x01,
		0x01, 0, 0, 0, 0, 0, 0, 0,
		0x02, 0, 0, 0, 0, 0, 0, 0, 'h', 'i',
		0x00,
	}
	require.Equal(t, want, e.Bytes())

	d := NewDecoder(e.Bytes())
	assert.Equal(t, uint8(0xAB), d.U8())
	assert.True(t, d.Bool())
	assert.Equal(t, uint16(0x0102), d.U16())
	assert.Equal(t, uint32(0x01020304), d.U32())
	assert.Equal(t, uint64(1), d.U64())
	assert.Equal(t, "hi", d.String())
	assert.False(t, d.Option())
	require.NoError(t, d.Finish())
}

func TestDecoder_StickyError(t *testing.T) {
	d := NewDecoder([]byte{1, 2})
	_ = d.U32()
	require.ErrorIs(t, d.Err(), ErrMalformed)

	// Later reads return zero values and keep the first error.
	first := d.Err()
	assert.Equal(t, uint8(0), d.U8())
	assert.Equal(t, "", d.String())
	assert.Same(t, first, d.Err())
}

func TestDecoder_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		read func(*Decoder)
	}{
		{"invalid bool", []byte{2}, func(d *Decoder) { d.Bool() }},
		{"invalid option tag", []byte{7}, func(d *Decoder) { d.Option() }},
		{"length beyond input", []byte{0xFF, 0, 0, 0, 0, 0, 0, 0, 'x'}, func(d *Decoder) { _ = d.String() }},
		{"huge length", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, func(d *Decoder) { d.ByteBuf() }},
		{"invalid utf-8", []byte{2, 0, 0, 0, 0, 0, 0, 0, 0xC3, 0x28}, func(d *Decoder) { _ = d.String() }},
		{"trailing bytes", []byte{1, 0}, func(d *Decoder) { d.U8() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(tt.in)
			tt.read(d)
			require.ErrorIs(t, d.Finish(), ErrMalformed)
		})
	}
}

func TestDecoder_EmptyBufferIsNil(t *testing.T) {
	d := NewDecoder(make([]byte, 8))
	assert.Nil(t, d.ByteBuf())
	require.NoError(t, d.Finish())
}

func TestDecodeRequests_RenderIsTagOnly(t *testing.T) {
	in := []byte{
		1, 0, 0, 0, 0, 0, 0, 0, // one request
		7, 0, 0, 0, // id
		0, 0, 0, 0, // Render
	}
	batch, err := DecodeRequests(in)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, RequestID(7), batch[0].ID)
	assert.Equal(t, RenderEffect{}, batch[0].Effect)
	assert.Equal(t, KindRender, batch[0].Effect.Kind())

	assert.Equal(t, in, Marshal(batch))
}

func TestDecodeRequests_EmptyBatch(t *testing.T) {
	batch, err := DecodeRequests(make([]byte, 8))
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestDecodeRequests_UnknownEffect(t *testing.T) {
	in := []byte{
		1, 0, 0, 0, 0, 0, 0, 0,
		3, 0, 0, 0,
		9, 0, 0, 0,
	}
	_, err := DecodeRequests(in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownVariant))
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestDecodeRequests_Truncated(t *testing.T) {
	full := Marshal(Batch{{ID: 1, Effect: HTTPEffect{Request: HTTPRequest{Method: "GET", URL: "https://example.com"}}}})
	for n := 0; n < len(full); n++ {
		_, err := DecodeRequests(full[:n])
		require.ErrorIs(t, err, ErrMalformed, "prefix of %d bytes", n)
	}
}

func TestDecodeRequests_AllKinds(t *testing.T) {
	batch := Batch{
		{ID: 1, Effect: RenderEffect{}},
		{ID: 2, Effect: HTTPEffect{Request: HTTPRequest{
			Method:  "POST",
			URL:     "https://issuer.example/token",
			Headers: []HTTPHeader{{Name: "content-type", Value: "application/json"}},
			Body:    []byte(`{"a":1}`),
		}}},
		{ID: 3, Effect: KeyStoreEffect{Operation: KSGet{ID: "k1", Purpose: "signing"}}},
		{ID: 4, Effect: KeyValueEffect{Operation: KVListKeys{Prefix: "cred/", Cursor: 42}}},
		{ID: 5, Effect: SSEEffect{Request: SSERequest{URL: "https://example.com/events"}}},
		{ID: 6, Effect: StoreEffect{Operation: StoreSave{CatalogName: "credential", ID: "c1", Data: []byte{1, 2}}}},
	}
	out, err := DecodeRequests(Marshal(batch))
	require.NoError(t, err)
	assert.Equal(t, batch, out)
}

func TestHTTPResult_Encoding(t *testing.T) {
	timeout := Marshal(HTTPFailed(HTTPErrorTimeout, "ignored"))
	assert.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0}, timeout)

	ok := HTTPOk(HTTPResponse{Status: 204})
	got, err := DecodeHTTPResult(Marshal(ok))
	require.NoError(t, err)
	assert.Nil(t, got.Err)
	assert.Equal(t, uint16(204), got.Response.Status)

	failed, err := DecodeHTTPResult(Marshal(HTTPFailed(HTTPErrorURL, "missing scheme")))
	require.NoError(t, err)
	require.NotNil(t, failed.Err)
	assert.Equal(t, HTTPErrorURL, failed.Err.Kind)
	assert.Equal(t, "missing scheme", failed.Err.Message)
}

func TestStoreResult_ErrorIsMessageString(t *testing.T) {
	b := Marshal(StoreFailed(errors.New("disk full")))
	want := append([]byte{1, 0, 0, 0, 9, 0, 0, 0, 0, 0, 0, 0}, "disk full"...)
	assert.Equal(t, want, b)

	r, err := DecodeStoreResult(b)
	require.NoError(t, err)
	require.NotNil(t, r.Err)
	assert.Equal(t, "disk full", r.Err.Message)
}

func TestKeyValueResult_Encoding(t *testing.T) {
	r := KeyValueOk(KVKeys{Keys: []string{"a", "b"}, NextCursor: 9})
	got, err := DecodeKeyValueResult(Marshal(r))
	require.NoError(t, err)
	assert.Equal(t, r, got)

	cnf := Marshal(KeyValueFailed(KVErrorCursorNotFound, "dropped"))
	assert.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0}, cnf)

	prev := KeyValueOk(KVWasSet{Previous: Some([]byte("old"))})
	got, err = DecodeKeyValueResult(Marshal(prev))
	require.NoError(t, err)
	assert.Equal(t, prev, got)
}

func TestSSEResponse_Terminal(t *testing.T) {
	for _, r := range []SSEResponse{SSEChunk{Data: []byte("data: x\n\n")}, SSEDone{}, SSEError{Message: "reset"}} {
		got, err := DecodeSSEResponse(Marshal(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	assert.False(t, SSEChunk{}.Terminal())
	assert.True(t, SSEDone{}.Terminal())
	assert.True(t, SSEError{}.Terminal())
}

func TestKeyStoreResult_Encoding(t *testing.T) {
	r := KeyStoreOk(KSRetrieved{})
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, Marshal(r))

	got, err := DecodeKeyStoreResult(Marshal(KeyStoreFailed(KSErrorInvalidRequest, "bad purpose")))
	require.NoError(t, err)
	require.NotNil(t, got.Err)
	assert.Equal(t, "keystore: invalid request: bad purpose", got.Err.Error())
}
