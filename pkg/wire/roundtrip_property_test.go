//go:build property
// +build property

package wire_test

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

// reencodes reports whether b decodes and encodes back to exactly b.
func reencodes[T wire.Marshaler](b []byte, read func(*wire.Decoder) T) bool {
	v, err := wire.Decode(b, read)
	if err != nil {
		return false
	}
	return bytes.Equal(wire.Marshal(v), b)
}

func TestRequestBatchRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(batch)) re-encodes identically", prop.ForAll(
		func(ids []uint32, kinds []uint8, s string, body []byte, cursor uint64) bool {
			var batch wire.Batch
			for i, id := range ids {
				var eff wire.Effect
				k := uint8(0)
				if i < len(kinds) {
					k = kinds[i] % 6
				}
				switch wire.EffectKind(k) {
				case wire.KindRender:
					eff = wire.RenderEffect{}
				case wire.KindHTTP:
					eff = wire.HTTPEffect{Request: wire.HTTPRequest{
						Method: "GET", URL: s,
						Headers: []wire.HTTPHeader{{Name: s, Value: s}},
						Body:    body,
					}}
				case wire.KindKeyStore:
					eff = wire.KeyStoreEffect{Operation: wire.KSSet{ID: s, Purpose: s, Data: body}}
				case wire.KindKeyValue:
					eff = wire.KeyValueEffect{Operation: wire.KVListKeys{Prefix: s, Cursor: cursor}}
				case wire.KindServerSentEvents:
					eff = wire.SSEEffect{Request: wire.SSERequest{URL: s}}
				default:
					eff = wire.StoreEffect{Operation: wire.StoreSave{CatalogName: s, ID: s, Data: body}}
				}
				batch = append(batch, wire.Request{ID: wire.RequestID(id), Effect: eff})
			}
			return reencodes(wire.Marshal(batch), wire.ReadBatch)
		},
		gen.SliceOf(gen.UInt32()),
		gen.SliceOf(gen.UInt8()),
		gen.AnyString(),
		gen.SliceOf(gen.UInt8()),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

func TestResultRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("http results re-encode identically", prop.ForAll(
		func(status uint16, name, value string, body []byte, failKind uint8) bool {
			var r wire.HTTPResult
			if failKind%4 == 3 {
				r = wire.HTTPOk(wire.HTTPResponse{Status: status, Headers: []wire.HTTPHeader{{Name: name, Value: value}}, Body: body})
			} else {
				r = wire.HTTPFailed(wire.HTTPErrorKind(failKind%4), value)
			}
			return reencodes(wire.Marshal(r), wire.ReadHTTPResult)
		},
		gen.UInt16(),
		gen.AlphaString(),
		gen.AnyString(),
		gen.SliceOf(gen.UInt8()),
		gen.UInt8(),
	))

	properties.Property("key-value results re-encode identically", prop.ForAll(
		func(keys []string, cursor uint64, present bool, data []byte) bool {
			results := []wire.KeyValueResult{
				wire.KeyValueOk(wire.KVKeys{Keys: keys, NextCursor: cursor}),
				wire.KeyValueOk(wire.KVWasSet{Previous: wire.Value{Bytes: data, Present: present}}),
				wire.KeyValueOk(wire.KVExistence{IsPresent: present}),
				wire.KeyValueFailed(wire.KVErrorOther, "x"),
			}
			for _, r := range results {
				if !reencodes(wire.Marshal(r), wire.ReadKeyValueResult) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AnyString()),
		gen.UInt64(),
		gen.Bool(),
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("store results re-encode identically", prop.ForAll(
		func(ids []string, data []byte) bool {
			entries := make([]wire.StoreItem, 0, len(ids))
			for _, id := range ids {
				entries = append(entries, wire.StoreItem{ID: id, Data: data})
			}
			return reencodes(wire.Marshal(wire.StoreOk(wire.StoreListed{Entries: entries})), wire.ReadStoreResult)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}
