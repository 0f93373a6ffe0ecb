package apk

import (
  "fmt"

  "github.com/kwf2030/apkres/base"
  "github.com/kwf2030/apkres/conv"
)

// chunk类型
const (
  ChunkNull    = 0x0000
  ChunkStrPool = 0x0001
  ChunkTable   = 0x0002
  ChunkXml     = 0x0003
)

// Xml子类型
const (
  ChunkXmlStartNamespace = 0x0100
  ChunkXmlEndNamespace   = 0x0101
  ChunkXmlStartElement   = 0x0102
  ChunkXmlEndElement     = 0x0103
  ChunkXmlCData          = 0x0104
  ChunkXmlResourceMap    = 0x0180
)

// Table子类型
const (
  ChunkTablePackage  = 0x0200
  ChunkTableType     = 0x0201
  ChunkTableTypeSpec = 0x0202
  ChunkTableLibrary  = 0x0203
)

const headerSize = 8

// Header is the 8-byte prefix of every chunk.
type Header struct {
  // chunk类型
  Type uint16

  // chunk header大小
  HeaderSize uint16

  // chunk大小（header + data）
  Size uint32
}

// readHeader reads a chunk header at the current position and checks that the chunk fits
// into the remaining bytes. want==ChunkNull accepts any type.
func readHeader(r *conv.Reader, want uint16, op string) (Header, int, error) {
  start := r.Pos()
  var h Header
  var e error
  if h.Type, e = r.ReadUint16(); e != nil {
    return h, start, base.Structural(op, e)
  }
  if h.HeaderSize, e = r.ReadUint16(); e != nil {
    return h, start, base.Structural(op, e)
  }
  if h.Size, e = r.ReadUint32(); e != nil {
    return h, start, base.Structural(op, e)
  }
  if want != ChunkNull && h.Type != want {
    return h, start, base.Structuralf(op, "chunk type 0x%04x at 0x%x, expected 0x%04x", h.Type, start, want)
  }
  if h.HeaderSize < headerSize || uint32(h.HeaderSize) > h.Size {
    return h, start, base.Structuralf(op, "chunk 0x%04x at 0x%x has header size %d for chunk size %d", h.Type, start, h.HeaderSize, h.Size)
  }
  if uint64(h.Size) > uint64(len(r.Data())-start) {
    return h, start, base.Structuralf(op, "chunk 0x%04x at 0x%x declares size %d, only %d bytes remain", h.Type, start, h.Size, len(r.Data())-start)
  }
  return h, start, nil
}

func (h Header) writeTo(w *conv.Writer) {
  w.WriteUint16(h.Type)
  w.WriteUint16(h.HeaderSize)
  w.WriteUint32(h.Size)
}

// Chunk is the closed set of chunk kinds: *StrPool, *Package, *TypeSpec, *Type,
// the xml nodes and *Opaque. Encoders dispatch on the concrete type.
type Chunk interface {
  ChunkType() uint16
  isChunk()
}

// Opaque is a chunk this package does not interpret, kept byte for byte.
type Opaque struct {
  // 在所属数据中的位置（非协议字段）
  Pos int

  // 整个chunk，包括header
  Raw []byte
}

func (o *Opaque) ChunkType() uint16 {
  if len(o.Raw) < 2 {
    return ChunkNull
  }
  return conv.BytesToUint16L(o.Raw)
}

func (*Opaque) isChunk() {}

func (o *Opaque) String() string {
  return fmt.Sprintf("opaque chunk 0x%04x at 0x%x (%d bytes)", o.ChunkType(), o.Pos, len(o.Raw))
}

func readOpaque(r *conv.Reader, op string) (*Opaque, error) {
  h, start, e := readHeader(r, ChunkNull, op)
  if e != nil {
    return nil, e
  }
  raw, e := r.Slice(start, start+int(h.Size))
  if e != nil {
    return nil, base.Structural(op, e)
  }
  cp := make([]byte, len(raw))
  copy(cp, raw)
  return &Opaque{Pos: start, Raw: cp}, nil
}

// expectEnd checks that a chunk consumed exactly its declared size.
func expectEnd(r *conv.Reader, start int, h Header, op string) error {
  end := start + int(h.Size)
  if r.Pos() != end {
    return base.Structuralf(op, "chunk 0x%04x at 0x%x declares %d bytes, consumed %d", h.Type, start, h.Size, r.Pos()-start)
  }
  return nil
}
