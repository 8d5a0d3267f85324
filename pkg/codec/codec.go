// Package codec implements the canonical binary wire format shared by every
// consensus-critical structure: little-endian fixed-width numbers, u32
// length-prefixed variable fields, and u32 count-prefixed sequences. Decoding
// is strict: trailing bytes, oversized length prefixes, and truncated input
// are all decode errors so that no two semantically different byte strings
// ever decode to the same value.
package codec

import (
	"encoding/binary"
	"fmt"
)

// MaxVarFieldSize is the largest length prefix accepted for a variable-size
// field or sequence count. Anything larger is rejected before an allocation
// is attempted, so a malformed or adversarial prefix cannot be used to force
// an oversized allocation.
const MaxVarFieldSize = 16 * 1024 * 1024 // 16 MiB

// Version is the codec_version pinned into every encoded top-level
// structure. A future incompatible wire change bumps this, never changes
// the meaning of an existing field in place.
const Version uint32 = 1

// Encoder appends canonically-encoded values to an internal buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with a pre-sized buffer.
func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the encoded buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

// WriteUint8 appends a single byte.
func (e *Encoder) WriteUint8(v uint8) { e.buf = append(e.buf, v) }

// WriteUint32 appends a little-endian uint32.
func (e *Encoder) WriteUint32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }

// WriteUint64 appends a little-endian uint64.
func (e *Encoder) WriteUint64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

// WriteInt64 appends a little-endian two's-complement int64.
func (e *Encoder) WriteInt64(v int64) { e.WriteUint64(uint64(v)) }

// WriteFixed appends raw fixed-width bytes (hashes, addresses, signatures)
// with no length prefix; the caller and decoder must agree on the width.
func (e *Encoder) WriteFixed(b []byte) { e.buf = append(e.buf, b...) }

// WriteVarBytes appends a u32 length prefix followed by b.
func (e *Encoder) WriteVarBytes(b []byte) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// WriteSeqHeader appends a u32 count prefix for a following sequence of n
// canonically-encoded elements.
func (e *Encoder) WriteSeqHeader(n int) { e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(n)) }

// Decoder consumes canonically-encoded values from a fixed byte slice,
// tracking position and rejecting anything past the end.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps b for strict sequential decoding.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Remaining reports how many bytes are left to consume.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

// Done returns an error if any bytes remain undecoded. Every top-level
// decode call must end with Done to reject trailing-byte attacks.
func (d *Decoder) Done() error {
	if d.Remaining() != 0 {
		return fmt.Errorf("codec: %d trailing byte(s) after decode", d.Remaining())
	}
	return nil
}

func (d *Decoder) need(n int) error {
	if n < 0 {
		return fmt.Errorf("codec: negative read size")
	}
	if d.Remaining() < n {
		return fmt.Errorf("codec: truncated input, need %d bytes, have %d", n, d.Remaining())
	}
	return nil
}

// ReadUint8 reads a single byte.
func (d *Decoder) ReadUint8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

// ReadUint32 reads a little-endian uint32.
func (d *Decoder) ReadUint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}

// ReadUint64 reads a little-endian uint64.
func (d *Decoder) ReadUint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos : d.pos+8])
	d.pos += 8
	return v, nil
}

// ReadInt64 reads a little-endian two's-complement int64.
func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

// ReadFixed reads exactly n raw bytes with no length prefix.
func (d *Decoder) ReadFixed(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, d.buf[d.pos:d.pos+n])
	d.pos += n
	return b, nil
}

// ReadVarBytes reads a u32 length prefix then that many bytes, rejecting
// prefixes beyond MaxVarFieldSize before allocating.
func (d *Decoder) ReadVarBytes() ([]byte, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n > MaxVarFieldSize {
		return nil, fmt.Errorf("codec: var field length %d exceeds max %d", n, MaxVarFieldSize)
	}
	return d.ReadFixed(int(n))
}

// ReadSeqHeader reads a u32 sequence count, rejecting counts beyond
// MaxVarFieldSize (a real sequence of legitimate elements never approaches
// that count; it exists to stop a hostile prefix from driving an
// unbounded pre-allocation in the caller).
func (d *Decoder) ReadSeqHeader() (int, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return 0, err
	}
	if n > MaxVarFieldSize {
		return 0, fmt.Errorf("codec: sequence count %d exceeds max %d", n, MaxVarFieldSize)
	}
	return int(n), nil
}
