// Package bytereader implements a bounds-checked cursor over an immutable
// byte slice, used by the parser package to decode raw block and transaction
// bytes without copying into an io.Reader.
package bytereader

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// TruncatedError is returned whenever a read would advance the cursor past
// the end of the underlying slice. It carries the field being decoded and
// the cursor position at the time of failure, so callers can report exactly
// where a block or transaction failed to parse.
type TruncatedError struct {
	Field  string
	Offset int
	Need   int
	Have   int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated reading %s at offset %d: need %d bytes, have %d", e.Field, e.Offset, e.Need, e.Have)
}

// SanityCapError is returned when a decoded count exceeds a configured sanity
// cap (e.g. more than 100,000 transaction inputs). It is fatal for the
// containing transaction or block, same as TruncatedError.
type SanityCapError struct {
	Field string
	Value uint64
	Cap   uint64
}

func (e *SanityCapError) Error() string {
	return fmt.Sprintf("%s count %d exceeds sanity cap %d", e.Field, e.Value, e.Cap)
}

// Reader is a cursor over an immutable byte slice. It never mutates the
// underlying slice and never allocates beyond what callers ask it to read.
type Reader struct {
	buf []byte
	pos int
}

// New returns a Reader positioned at the start of buf.
func New(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current cursor offset.
func (r *Reader) Pos() int {
	return r.pos
}

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int {
	return len(r.buf) - r.pos
}

// Bytes returns the full backing slice, unaffected by cursor position.
func (r *Reader) Bytes() []byte {
	return r.buf
}

// Ensure fails with a TruncatedError if fewer than n bytes remain.
func (r *Reader) Ensure(field string, n int) error {
	if r.pos+n > len(r.buf) {
		return &TruncatedError{Field: field, Offset: r.pos, Need: n, Have: r.Len()}
	}
	return nil
}

// Skip advances the cursor by n bytes without returning them.
func (r *Reader) Skip(field string, n int) error {
	if err := r.Ensure(field, n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// ReadBytes returns the next n bytes and advances the cursor.
func (r *Reader) ReadBytes(field string, n int) ([]byte, error) {
	if err := r.Ensure(field, n); err != nil {
		return nil, err
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8(field string) (uint8, error) {
	b, err := r.ReadBytes(field, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt8 reads a single signed byte.
func (r *Reader) ReadInt8(field string) (int8, error) {
	v, err := r.ReadUint8(field)
	return int8(v), err
}

// ReadUint32LE reads a little-endian uint32.
func (r *Reader) ReadUint32LE(field string) (uint32, error) {
	b, err := r.ReadBytes(field, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint32BE reads a big-endian uint32.
func (r *Reader) ReadUint32BE(field string) (uint32, error) {
	b, err := r.ReadBytes(field, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadInt64LE reads a little-endian int64.
func (r *Reader) ReadInt64LE(field string) (int64, error) {
	b, err := r.ReadBytes(field, 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// ReadUint64LE reads a little-endian uint64.
func (r *Reader) ReadUint64LE(field string) (uint64, error) {
	b, err := r.ReadBytes(field, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadHash256 reads a 32-byte hash in its on-wire (little-endian) orientation.
func (r *Reader) ReadHash256(field string) ([32]byte, error) {
	var h [32]byte
	b, err := r.ReadBytes(field, 32)
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

// ReadCompactSize reads a compact-size (a.k.a. CVarInt) encoded integer:
//
//	first byte <0xFD  -> the byte itself               (1 byte total)
//	first byte ==0xFD -> next 2 bytes LE                (3 bytes total)
//	first byte ==0xFE -> next 4 bytes LE                (5 bytes total)
//	first byte ==0xFF -> next 8 bytes LE                (9 bytes total)
//
// The 8-byte form is returned as decoded; values above the positive range
// of an int64 are not rejected here. Use ReadCompactSizeCapped to bound
// counts.
func (r *Reader) ReadCompactSize(field string) (uint64, error) {
	disc, err := r.ReadUint8(field)
	if err != nil {
		return 0, err
	}
	switch disc {
	case 0xfd:
		b, err := r.ReadBytes(field, 2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 0xfe:
		b, err := r.ReadBytes(field, 4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case 0xff:
		b, err := r.ReadBytes(field, 8)
		if err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(b), nil
	default:
		return uint64(disc), nil
	}
}

// ReadCompactSizeCapped reads a compact-size integer and fails with a
// SanityCapError if the decoded value exceeds cap. Used everywhere a count
// prefixes a vector of fixed-size records (vin, vout, joinsplits, ...).
func (r *Reader) ReadCompactSizeCapped(field string, cap uint64) (uint64, error) {
	n, err := r.ReadCompactSize(field)
	if err != nil {
		return 0, err
	}
	if n > cap {
		return 0, &SanityCapError{Field: field, Value: n, Cap: cap}
	}
	return n, nil
}

// ReadVarBytes reads a compact-size length prefix followed by that many
// bytes.
func (r *Reader) ReadVarBytes(field string, maxAllowed uint64) ([]byte, error) {
	n, err := r.ReadCompactSizeCapped(field, maxAllowed)
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(field, int(n))
}

// ReadVarString reads a compact-size length-prefixed UTF-8 string.
func (r *Reader) ReadVarString(field string, maxAllowed uint64) (string, error) {
	b, err := r.ReadVarBytes(field, maxAllowed)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WrapField adds a field/offset prefix to an arbitrary error returned while
// decoding a composite structure (outpoint, header extension, ...).
func WrapField(err error, field string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "decoding %s", field)
}
