// Package wire implements the binary encoding shared with the application core.
//
// The layout is bincode 1.x with its default options, which is what the core
// uses on its side of the boundary:
//   - integers are fixed width, little-endian
//   - strings, byte buffers and sequences carry a u64 length prefix
//   - enum variants carry a u32 variant index
//   - Option is a u8 tag (0 = None, 1 = Some) followed by the value
//   - bool is a single byte, 0 or 1
//
// Byte-level compatibility matters here: the variant ordering of every type in
// this package mirrors the declaration order on the core side and must not be
// rearranged.
//
// Decoding is strict. Truncated input, impossible lengths, invalid tags,
// invalid UTF-8 and trailing bytes are all reported as ErrMalformed.
package wire
