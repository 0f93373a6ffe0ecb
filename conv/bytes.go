package conv

import (
  "bytes"
  "fmt"
)

// ShortBufferError is returned by Reader when a read crosses the end of data.
type ShortBufferError struct {
  Pos  int
  Want int
  Have int
}

func (e *ShortBufferError) Error() string {
  return fmt.Sprintf("short buffer at 0x%x: want %d bytes, have %d", e.Pos, e.Want, e.Have)
}

// Reader reads little-endian values from a byte slice.
// Every read is bounds-checked, nothing is read past the end of data.
type Reader struct {
  data []byte
  pos  int
}

func NewReader(data []byte) *Reader {
  return &Reader{data: data}
}

func (r *Reader) Pos() int {
  return r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
  return len(r.data) - r.pos
}

func (r *Reader) Data() []byte {
  return r.data
}

func (r *Reader) Seek(pos int) error {
  if pos < 0 || pos > len(r.data) {
    return &ShortBufferError{Pos: r.pos, Want: pos - r.pos, Have: r.Len()}
  }
  r.pos = pos
  return nil
}

func (r *Reader) Skip(n int) error {
  return r.Seek(r.pos + n)
}

func (r *Reader) need(n int) error {
  if n < 0 || r.Len() < n {
    return &ShortBufferError{Pos: r.pos, Want: n, Have: r.Len()}
  }
  return nil
}

// Slice returns data[start:end] without copying and moves to end.
func (r *Reader) Slice(start, end int) ([]byte, error) {
  if start < 0 || end < start || end > len(r.data) {
    return nil, &ShortBufferError{Pos: start, Want: end - start, Have: len(r.data) - start}
  }
  r.pos = end
  return r.data[start:end], nil
}

func (r *Reader) ReadN(n int) ([]byte, error) {
  if e := r.need(n); e != nil {
    return nil, e
  }
  ret := make([]byte, n)
  copy(ret, r.data[r.pos:r.pos+n])
  r.pos += n
  return ret, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
  if e := r.need(1); e != nil {
    return 0, e
  }
  b := r.data[r.pos]
  r.pos++
  return b, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
  if e := r.need(2); e != nil {
    return 0, e
  }
  v := BytesToUint16L(r.data[r.pos:])
  r.pos += 2
  return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
  if e := r.need(4); e != nil {
    return 0, e
  }
  v := BytesToUint32L(r.data[r.pos:])
  r.pos += 4
  return v, nil
}

func (r *Reader) ReadUint32Array(n int) ([]uint32, error) {
  if n < 1 {
    return nil, nil
  }
  if e := r.need(n * 4); e != nil {
    return nil, e
  }
  ret := make([]uint32, n)
  for i := 0; i < n; i++ {
    ret[i] = BytesToUint32L(r.data[r.pos:])
    r.pos += 4
  }
  return ret, nil
}

// PeekUint16 reads a uint16 at pos without moving.
func (r *Reader) PeekUint16() (uint16, error) {
  if e := r.need(2); e != nil {
    return 0, e
  }
  return BytesToUint16L(r.data[r.pos:]), nil
}

// Writer accumulates little-endian values.
type Writer struct {
  bytes.Buffer
}

func NewWriter() *Writer {
  return &Writer{}
}

func (w *Writer) WriteUint8(n uint8) {
  w.WriteByte(n)
}

func (w *Writer) WriteUint16(n uint16) {
  w.Write(Uint16ToBytesL(n))
}

func (w *Writer) WriteUint32(n uint32) {
  w.Write(Uint32ToBytesL(n))
}

func (w *Writer) WriteUint32Array(arr []uint32) {
  for _, n := range arr {
    w.Write(Uint32ToBytesL(n))
  }
}

// Pad writes zero bytes until the length is a multiple of align.
func (w *Writer) Pad(align int) {
  for w.Len()%align != 0 {
    w.WriteByte(0)
  }
}

// PutUint32At overwrites 4 bytes at pos, used to patch chunk sizes after the fact.
func (w *Writer) PutUint32At(pos int, n uint32) {
  PutUint32L(w.Bytes()[pos:], n)
}

func (w *Writer) PutUint16At(pos int, n uint16) {
  PutUint16L(w.Bytes()[pos:], n)
}
