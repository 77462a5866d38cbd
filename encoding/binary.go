package encoding

import (
	"bytes"
	"encoding/binary"
	"math"
)

// MaxFieldSize caps the byte length of any single length-prefixed field.
var MaxFieldSize uint64 = math.MaxUint32

// CheckLength validates a length-prefixed field before it is written.
func CheckLength(field string, n int) error {
	if n < 0 || uint64(n) > MaxFieldSize || uint64(n) > math.MaxUint32 {
		return rangeErr(field+" length", n, min64(MaxFieldSize, math.MaxUint32))
	}
	return nil
}

// CheckCount validates a uint16 element count before it is written.
func CheckCount(field string, n int) error {
	if n < 0 || n > math.MaxUint16 {
		return rangeErr(field+" count", n, math.MaxUint16)
	}
	return nil
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// Writer appends little-endian fields. Callers validate lengths and counts
// with CheckLength/CheckCount first so a failed encode writes nothing.
type Writer struct {
	buf bytes.Buffer
}

// Uint16 writes v as 2 little-endian bytes.
func (w *Writer) Uint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// Uint32 writes v as 4 little-endian bytes.
func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// Uint64 writes v as 8 little-endian bytes.
func (w *Writer) Uint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// Raw writes b without a length prefix.
func (w *Writer) Raw(b []byte) {
	w.buf.Write(b)
}

// Bytes writes b prefixed with its uint32 length.
func (w *Writer) Bytes(b []byte) {
	w.Uint32(uint32(len(b)))
	w.buf.Write(b)
}

// String writes s prefixed with its uint32 byte length.
func (w *Writer) String(s string) {
	w.Uint32(uint32(len(s)))
	w.buf.WriteString(s)
}

// Result returns the written bytes.
func (w *Writer) Result() []byte {
	return w.buf.Bytes()
}

// Reader consumes little-endian fields, every short read
// is reported as ErrMalformedDecode.
type Reader struct {
	data []byte
	off  int
}

// NewReader creates a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Fixed reads exactly n bytes.
func (r *Reader) Fixed(field string, n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, Malformed("%s: need %d bytes, have %d", field, n, r.Remaining())
	}

	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Byte reads a single byte.
func (r *Reader) Byte(field string) (byte, error) {
	b, err := r.Fixed(field, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16(field string) (uint16, error) {
	b, err := r.Fixed(field, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32(field string) (uint32, error) {
	b, err := r.Fixed(field, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64 reads a little-endian uint64.
func (r *Reader) Uint64(field string) (uint64, error) {
	b, err := r.Fixed(field, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Bytes reads a uint32 length-prefixed field. The result is a copy.
func (r *Reader) Bytes(field string) ([]byte, error) {
	n, err := r.Uint32(field + " length")
	if err != nil {
		return nil, err
	}

	if uint64(n) > uint64(r.Remaining()) {
		return nil, Malformed("%s: declared length %d, only %d bytes left", field, n, r.Remaining())
	}

	b, err := r.Fixed(field, int(n))
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// String reads a uint32 length-prefixed string.
func (r *Reader) String(field string) (string, error) {
	b, err := r.Bytes(field)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Rest returns all unread bytes and consumes them.
func (r *Reader) Rest() []byte {
	b := r.data[r.off:]
	r.off = len(r.data)
	return b
}

// Done fails if any bytes are left unread.
func (r *Reader) Done(what string) error {
	if n := r.Remaining(); n != 0 {
		return Malformed("%s: %d trailing bytes", what, n)
	}
	return nil
}
