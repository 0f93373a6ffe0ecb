package apk

import (
  "unicode/utf16"
  "unicode/utf8"

  "github.com/kwf2030/apkres/base"
  "github.com/kwf2030/apkres/conv"
)

const (
  StrPoolSorted = 0x0001
  StrPoolUTF8   = 0x0100
)

const (
  strPoolHeaderSize = 28
  noIndex           = 0xFFFFFFFF
  spanEnd           = 0xFFFFFFFF
)

// Span is one style run of a styled string.
type Span struct {
  // 样式名（字符串池索引），比如"b"
  Name uint32

  // 起止字符位置（包含）
  First, Last uint32
}

// StrPool is an index-addressed string table.
// Equal strings may occupy distinct indices, Add never interns.
type StrPool struct {
  // SortedFlag: 0x0001
  // UTF16Flag:  0x0000
  // UTF8Flag:   0x0100
  Flags uint32

  Strs []string

  // 样式，Styles[i]对应Strs[i]
  Styles [][]Span

  // 原始chunk，未修改时原样写回
  raw   []byte
  dirty bool
}

func NewStrPool(utf8 bool, strs ...string) *StrPool {
  p := &StrPool{Strs: append([]string(nil), strs...), dirty: true}
  if utf8 {
    p.Flags = StrPoolUTF8
  }
  return p
}

func (*StrPool) ChunkType() uint16 { return ChunkStrPool }

func (*StrPool) isChunk() {}

func (p *StrPool) IsUTF8() bool {
  return p.Flags&StrPoolUTF8 != 0
}

func (p *StrPool) Len() int {
  return len(p.Strs)
}

// Get returns the string at i, ok is false for the 0xFFFFFFFF sentinel and out of range indices.
func (p *StrPool) Get(i uint32) (string, bool) {
  if p == nil || i == noIndex || uint64(i) >= uint64(len(p.Strs)) {
    return "", false
  }
  return p.Strs[i], true
}

// Index returns the first index holding s, or -1.
func (p *StrPool) Index(s string) int {
  for i, str := range p.Strs {
    if str == s {
      return i
    }
  }
  return -1
}

func (p *StrPool) Add(s string) uint32 {
  p.Strs = append(p.Strs, s)
  p.dirty = true
  return uint32(len(p.Strs) - 1)
}

func (p *StrPool) Set(i uint32, s string) {
  if uint64(i) >= uint64(len(p.Strs)) || p.Strs[i] == s {
    return
  }
  p.Strs[i] = s
  p.dirty = true
}

func (p *StrPool) Modified() bool {
  return p.dirty || p.raw == nil
}

func parseStrPool(r *conv.Reader) (*StrPool, error) {
  const op = "decode string pool"
  h, start, e := readHeader(r, ChunkStrPool, op)
  if e != nil {
    return nil, e
  }
  if h.HeaderSize < strPoolHeaderSize {
    return nil, base.Structuralf(op, "header size %d at 0x%x", h.HeaderSize, start)
  }
  var strCount, styleCount, flags, strStart, styleStart uint32
  for _, v := range []*uint32{&strCount, &styleCount, &flags, &strStart, &styleStart} {
    if *v, e = r.ReadUint32(); e != nil {
      return nil, base.Structural(op, e)
    }
  }
  end := start + int(h.Size)
  if uint64(strCount)*4+uint64(styleCount)*4 > uint64(h.Size) {
    return nil, base.Structuralf(op, "%d strings and %d styles do not fit into %d bytes", strCount, styleCount, h.Size)
  }
  if e = r.Seek(start + int(h.HeaderSize)); e != nil {
    return nil, base.Structural(op, e)
  }
  strOffsets, e := r.ReadUint32Array(int(strCount))
  if e != nil {
    return nil, base.Structural(op, e)
  }
  styleOffsets, e := r.ReadUint32Array(int(styleCount))
  if e != nil {
    return nil, base.Structural(op, e)
  }

  p := &StrPool{Flags: flags}
  if strCount > 0 {
    strEnd := end
    if styleCount > 0 {
      strEnd = start + int(styleStart)
    }
    block, e := r.Slice(start+int(strStart), strEnd)
    if e != nil {
      return nil, base.Structuralf(op, "string data [0x%x, 0x%x) out of chunk", strStart, strEnd-start)
    }
    p.Strs = make([]string, strCount)
    for i, off := range strOffsets {
      var ok bool
      if p.IsUTF8() {
        p.Strs[i], ok = str8(block, int(off))
      } else {
        p.Strs[i], ok = str16(block, int(off))
      }
      if !ok {
        return nil, base.Structuralf(op, "string %d at offset 0x%x is out of bounds", i, off)
      }
    }
  }

  if styleCount > 0 {
    block, e := r.Slice(start+int(styleStart), end)
    if e != nil {
      return nil, base.Structuralf(op, "style data at 0x%x out of chunk", styleStart)
    }
    p.Styles = make([][]Span, styleCount)
    for i, off := range styleOffsets {
      spans, ok := readSpans(block, int(off))
      if !ok {
        return nil, base.Structuralf(op, "style %d at offset 0x%x is not terminated", i, off)
      }
      p.Styles[i] = spans
    }
  }

  raw, e := r.Slice(start, end)
  if e != nil {
    return nil, base.Structural(op, e)
  }
  p.raw = make([]byte, len(raw))
  copy(p.raw, raw)
  return p, nil
}

func readSpans(block []byte, off int) ([]Span, bool) {
  var spans []Span
  for {
    if off < 0 || off+4 > len(block) {
      return nil, false
    }
    name := conv.BytesToUint32L(block[off:])
    if name == spanEnd {
      return spans, true
    }
    if off+12 > len(block) {
      return nil, false
    }
    spans = append(spans, Span{
      Name:  name,
      First: conv.BytesToUint32L(block[off+4:]),
      Last:  conv.BytesToUint32L(block[off+8:]),
    })
    off += 12
  }
}

// 长度用1或2个字节表示，最高位为1时是2个字节
func length8(block []byte, off int) (int, int, bool) {
  if off < 0 || off >= len(block) {
    return 0, 0, false
  }
  n := int(block[off])
  if n&0x80 == 0 {
    return n, 1, true
  }
  if off+1 >= len(block) {
    return 0, 0, false
  }
  return (n&0x7F)<<8 | int(block[off+1]), 2, true
}

// 长度用1或2个uint16表示，最高位为1时是2个
func length16(block []byte, off int) (int, int, bool) {
  if off < 0 || off+2 > len(block) {
    return 0, 0, false
  }
  n := int(conv.BytesToUint16L(block[off:]))
  if n&0x8000 == 0 {
    return n, 2, true
  }
  if off+4 > len(block) {
    return 0, 0, false
  }
  return (n&0x7FFF)<<16 | int(conv.BytesToUint16L(block[off+2:])), 4, true
}

// UTF-8字符串：UTF-16长度 + UTF-8字节长度 + 内容 + 0x00
func str8(block []byte, off int) (string, bool) {
  _, n1, ok := length8(block, off)
  if !ok {
    return "", false
  }
  size, n2, ok := length8(block, off+n1)
  if !ok {
    return "", false
  }
  s := off + n1 + n2
  if s+size > len(block) {
    return "", false
  }
  return string(block[s : s+size]), true
}

// UTF-16字符串：长度 + 内容 + 0x0000
func str16(block []byte, off int) (string, bool) {
  units, n, ok := length16(block, off)
  if !ok {
    return "", false
  }
  s := off + n
  if s+units*2 > len(block) {
    return "", false
  }
  u := make([]uint16, units)
  for i := range u {
    u[i] = conv.BytesToUint16L(block[s+i*2:])
  }
  return string(utf16.Decode(u)), true
}

func putLength8(w *conv.Writer, n int) error {
  if n > 0x7FFF {
    return base.Structuralf("encode string pool", "length %d exceeds 0x7fff", n)
  }
  if n > 0x7F {
    w.WriteUint8(uint8(n>>8) | 0x80)
  }
  w.WriteUint8(uint8(n))
  return nil
}

func putLength16(w *conv.Writer, n int) error {
  if n > 0x7FFFFFFF {
    return base.Structuralf("encode string pool", "length %d exceeds 0x7fffffff", n)
  }
  if n > 0x7FFF {
    w.WriteUint16(uint16(n>>16) | 0x8000)
  }
  w.WriteUint16(uint16(n))
  return nil
}

func (p *StrPool) writeStr(w *conv.Writer, s string) error {
  runes := []rune(s)
  units := utf16.Encode(runes)
  if p.IsUTF8() {
    if !utf8.ValidString(s) {
      s = string(runes)
    }
    if e := putLength8(w, len(units)); e != nil {
      return e
    }
    if e := putLength8(w, len(s)); e != nil {
      return e
    }
    w.WriteString(s)
    w.WriteUint8(0)
    return nil
  }
  if e := putLength16(w, len(units)); e != nil {
    return e
  }
  for _, u := range units {
    w.WriteUint16(u)
  }
  w.WriteUint16(0)
  return nil
}

func (p *StrPool) writeTo(w *conv.Writer) error {
  if !p.Modified() {
    w.Write(p.raw)
    return nil
  }
  if len(p.Styles) > len(p.Strs) {
    return base.Structuralf("encode string pool", "%d styles for %d strings", len(p.Styles), len(p.Strs))
  }

  strs := conv.NewWriter()
  strOffsets := make([]uint32, len(p.Strs))
  for i, s := range p.Strs {
    strOffsets[i] = uint32(strs.Len())
    if e := p.writeStr(strs, s); e != nil {
      return e
    }
  }
  strs.Pad(4)

  styles := conv.NewWriter()
  styleOffsets := make([]uint32, len(p.Styles))
  for i, spans := range p.Styles {
    styleOffsets[i] = uint32(styles.Len())
    for _, s := range spans {
      styles.WriteUint32(s.Name)
      styles.WriteUint32(s.First)
      styles.WriteUint32(s.Last)
    }
    styles.WriteUint32(spanEnd)
  }
  if len(p.Styles) > 0 {
    styles.WriteUint32(spanEnd)
    styles.WriteUint32(spanEnd)
  }

  offsetsSize := uint32(4 * (len(strOffsets) + len(styleOffsets)))
  var strStart, styleStart uint32
  if len(p.Strs) > 0 {
    strStart = strPoolHeaderSize + offsetsSize
  }
  if len(p.Styles) > 0 {
    styleStart = strPoolHeaderSize + offsetsSize + uint32(strs.Len())
  }
  flags := p.Flags
  if p.dirty {
    flags &^= StrPoolSorted
  }
  Header{
    Type:       ChunkStrPool,
    HeaderSize: strPoolHeaderSize,
    Size:       strPoolHeaderSize + offsetsSize + uint32(strs.Len()+styles.Len()),
  }.writeTo(w)
  w.WriteUint32(uint32(len(p.Strs)))
  w.WriteUint32(uint32(len(p.Styles)))
  w.WriteUint32(flags)
  w.WriteUint32(strStart)
  w.WriteUint32(styleStart)
  w.WriteUint32Array(strOffsets)
  w.WriteUint32Array(styleOffsets)
  w.Write(strs.Bytes())
  w.Write(styles.Bytes())
  return nil
}
