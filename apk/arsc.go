package apk

import (
  "unicode/utf16"

  "github.com/kwf2030/apkres/base"
  "github.com/kwf2030/apkres/conv"
)

const (
  tableHeaderSize      = 12
  packageHeaderSize    = 288
  packageHeaderSizeOld = 284
  packageNameLen       = 128
  typeSpecHeaderSize   = 16
  typeHeaderMinSize    = 20 + cfgMinSize
)

// Type chunk标志
const (
  TypeFlagSparse   = 0x01
  TypeFlagOffset16 = 0x02
)

// Entry标志
const (
  EntryFlagComplex = 0x0001
  EntryFlagPublic  = 0x0002
  EntryFlagWeak    = 0x0004
  EntryFlagCompact = 0x0008
)

const (
  noEntry   = 0xFFFFFFFF
  noEntry16 = 0xFFFF
)

// Table is a decoded resources.arsc.
type Table struct {
  // 全局字符串池，TypeString的值都在这里
  StrPool *StrPool

  Packages []*Package

  // 顶层chunk，按原始顺序：*StrPool、*Package、*Opaque
  Chunks []Chunk

  // header中packageCount之后的字节
  headerExtra []byte
}

// Package owns a type name pool, a key name pool and its TypeSpec/Type chunks.
type Package struct {
  Id   uint32
  Name string

  LastPublicType uint32
  LastPublicKey  uint32
  TypeIdOffset   uint32

  // 类型名，索引是typeId-1
  TypeStrPool *StrPool

  // 资源名，Entry.Key指向这里
  KeyStrPool *StrPool

  // 子chunk，按原始顺序：*StrPool、*TypeSpec、*Type、*Opaque
  Chunks []Chunk

  headerSize uint16
  nameRaw    []byte
  extra      []byte
}

// TypeSpec holds the configuration-change flags of every entry of one type.
type TypeSpec struct {
  Id   uint8
  Res0 uint8

  // res1，新版本表示该类型Type chunk的数量
  TypesCount uint16

  Flags []uint32
}

// Type is one configuration variant of a type.
type Type struct {
  Id       uint8
  Flags    uint8
  Reserved uint16
  Config   Config

  // 按索引排列，nil表示该配置下不存在
  Entries []*Entry

  // config之后到entry偏移表之前的字节
  pad []byte
}

// Entry is a simple value or a bag.
type Entry struct {
  Size  uint16
  Flags uint16

  // KeyStrPool索引
  Key uint32

  // 简单值
  Value Value

  // 复杂值
  Parent uint32
  Bag    []BagItem
}

type BagItem struct {
  // 属性的资源id
  Name  uint32
  Value Value
}

func (*Table) ChunkType() uint16    { return ChunkTable }
func (*Package) ChunkType() uint16  { return ChunkTablePackage }
func (*TypeSpec) ChunkType() uint16 { return ChunkTableTypeSpec }
func (*Type) ChunkType() uint16     { return ChunkTableType }

func (*Table) isChunk()    {}
func (*Package) isChunk()  {}
func (*TypeSpec) isChunk() {}
func (*Type) isChunk()     {}

func (en *Entry) IsComplex() bool {
  return en.Flags&EntryFlagComplex != 0
}

func (en *Entry) IsCompact() bool {
  return en.Flags&EntryFlagCompact != 0
}

// ParseTable decodes a complete resource table. Any size disagreement is a structural error.
func ParseTable(data []byte) (*Table, error) {
  const op = "decode table"
  r := conv.NewReader(data)
  h, start, e := readHeader(r, ChunkTable, op)
  if e != nil {
    return nil, e
  }
  if int(h.Size) != len(data) {
    return nil, base.Structuralf(op, "table declares %d bytes, data has %d", h.Size, len(data))
  }
  if h.HeaderSize < tableHeaderSize {
    return nil, base.Structuralf(op, "header size %d", h.HeaderSize)
  }
  packageCount, e := r.ReadUint32()
  if e != nil {
    return nil, base.Structural(op, e)
  }
  t := &Table{}
  if h.HeaderSize > tableHeaderSize {
    if t.headerExtra, e = r.ReadN(int(h.HeaderSize) - tableHeaderSize); e != nil {
      return nil, base.Structural(op, e)
    }
  }

  end := start + int(h.Size)
  for r.Pos() < end {
    typ, e := r.PeekUint16()
    if e != nil {
      return nil, base.Structural(op, e)
    }
    switch {
    case typ == ChunkStrPool && t.StrPool == nil:
      p, e := parseStrPool(r)
      if e != nil {
        return nil, e
      }
      t.StrPool = p
      t.Chunks = append(t.Chunks, p)
    case typ == ChunkTablePackage:
      p, e := parsePackage(r)
      if e != nil {
        return nil, e
      }
      t.Packages = append(t.Packages, p)
      t.Chunks = append(t.Chunks, p)
    default:
      o, e := readOpaque(r, op)
      if e != nil {
        return nil, e
      }
      base.Logger().Debug().Str("chunk", o.String()).Msg("keep unknown table chunk")
      t.Chunks = append(t.Chunks, o)
    }
  }
  if e = expectEnd(r, start, h, op); e != nil {
    return nil, e
  }
  if int(packageCount) != len(t.Packages) {
    return nil, base.Structuralf(op, "table declares %d packages, found %d", packageCount, len(t.Packages))
  }
  if t.StrPool == nil {
    return nil, base.Structuralf(op, "table has no string pool")
  }
  return t, nil
}

func parsePackage(r *conv.Reader) (*Package, error) {
  const op = "decode package"
  h, start, e := readHeader(r, ChunkTablePackage, op)
  if e != nil {
    return nil, e
  }
  if h.HeaderSize < packageHeaderSizeOld {
    return nil, base.Structuralf(op, "header size %d at 0x%x", h.HeaderSize, start)
  }
  p := &Package{headerSize: h.HeaderSize}
  if p.Id, e = r.ReadUint32(); e != nil {
    return nil, base.Structural(op, e)
  }
  if p.nameRaw, e = r.ReadN(packageNameLen * 2); e != nil {
    return nil, base.Structural(op, e)
  }
  p.Name = decodePackageName(p.nameRaw)
  var typeStrings, keyStrings uint32
  for _, v := range []*uint32{&typeStrings, &p.LastPublicType, &keyStrings, &p.LastPublicKey} {
    if *v, e = r.ReadUint32(); e != nil {
      return nil, base.Structural(op, e)
    }
  }
  if h.HeaderSize >= packageHeaderSize {
    if p.TypeIdOffset, e = r.ReadUint32(); e != nil {
      return nil, base.Structural(op, e)
    }
  }
  if extra := start + int(h.HeaderSize) - r.Pos(); extra > 0 {
    if p.extra, e = r.ReadN(extra); e != nil {
      return nil, base.Structural(op, e)
    }
  }

  end := start + int(h.Size)
  specCounts := map[uint8]int{}
  for r.Pos() < end {
    pos := r.Pos() - start
    typ, e := r.PeekUint16()
    if e != nil {
      return nil, base.Structural(op, e)
    }
    var c Chunk
    switch {
    case typ == ChunkStrPool && uint32(pos) == typeStrings:
      p.TypeStrPool, e = parseStrPool(r)
      c = p.TypeStrPool
    case typ == ChunkStrPool && uint32(pos) == keyStrings:
      p.KeyStrPool, e = parseStrPool(r)
      c = p.KeyStrPool
    case typ == ChunkTableTypeSpec:
      var spec *TypeSpec
      spec, e = parseTypeSpec(r)
      if e == nil {
        specCounts[spec.Id] = len(spec.Flags)
      }
      c = spec
    case typ == ChunkTableType:
      c, e = parseType(r, specCounts)
    default:
      var o *Opaque
      o, e = readOpaque(r, op)
      c = o
    }
    if e != nil {
      return nil, e
    }
    if r.Pos() > end {
      return nil, base.Structuralf(op, "child chunk at 0x%x overruns package ending at 0x%x", start+pos, end)
    }
    p.Chunks = append(p.Chunks, c)
  }
  if e = expectEnd(r, start, h, op); e != nil {
    return nil, e
  }
  if p.TypeStrPool == nil || p.KeyStrPool == nil {
    return nil, base.Structuralf(op, "package 0x%02x misses its type or key string pool", p.Id)
  }
  return p, nil
}

func decodePackageName(raw []byte) string {
  u := make([]uint16, 0, packageNameLen)
  for i := 0; i+1 < len(raw); i += 2 {
    c := conv.BytesToUint16L(raw[i:])
    if c == 0 {
      break
    }
    u = append(u, c)
  }
  return string(utf16.Decode(u))
}

func encodePackageName(name string) []byte {
  raw := make([]byte, packageNameLen*2)
  u := utf16.Encode([]rune(name))
  if len(u) > packageNameLen-1 {
    u = u[:packageNameLen-1]
  }
  for i, c := range u {
    conv.PutUint16L(raw[i*2:], c)
  }
  return raw
}

func parseTypeSpec(r *conv.Reader) (*TypeSpec, error) {
  const op = "decode type spec"
  h, start, e := readHeader(r, ChunkTableTypeSpec, op)
  if e != nil {
    return nil, e
  }
  if h.HeaderSize < typeSpecHeaderSize {
    return nil, base.Structuralf(op, "header size %d at 0x%x", h.HeaderSize, start)
  }
  s := &TypeSpec{}
  if s.Id, e = r.ReadUint8(); e != nil {
    return nil, base.Structural(op, e)
  }
  if s.Res0, e = r.ReadUint8(); e != nil {
    return nil, base.Structural(op, e)
  }
  if s.TypesCount, e = r.ReadUint16(); e != nil {
    return nil, base.Structural(op, e)
  }
  count, e := r.ReadUint32()
  if e != nil {
    return nil, base.Structural(op, e)
  }
  if uint64(h.HeaderSize)+uint64(count)*4 != uint64(h.Size) {
    return nil, base.Structuralf(op, "type spec 0x%02x at 0x%x declares %d bytes for %d entries", s.Id, start, h.Size, count)
  }
  if e = r.Seek(start + int(h.HeaderSize)); e != nil {
    return nil, base.Structural(op, e)
  }
  if s.Flags, e = r.ReadUint32Array(int(count)); e != nil {
    return nil, base.Structural(op, e)
  }
  return s, expectEnd(r, start, h, op)
}

func parseType(r *conv.Reader, specCounts map[uint8]int) (*Type, error) {
  const op = "decode type"
  h, start, e := readHeader(r, ChunkTableType, op)
  if e != nil {
    return nil, e
  }
  if h.HeaderSize < typeHeaderMinSize {
    return nil, base.Structuralf(op, "header size %d at 0x%x", h.HeaderSize, start)
  }
  t := &Type{}
  if t.Id, e = r.ReadUint8(); e != nil {
    return nil, base.Structural(op, e)
  }
  if t.Flags, e = r.ReadUint8(); e != nil {
    return nil, base.Structural(op, e)
  }
  if t.Reserved, e = r.ReadUint16(); e != nil {
    return nil, base.Structural(op, e)
  }
  count, e := r.ReadUint32()
  if e != nil {
    return nil, base.Structural(op, e)
  }
  entriesStart, e := r.ReadUint32()
  if e != nil {
    return nil, base.Structural(op, e)
  }
  headerEnd := start + int(h.HeaderSize)
  if t.Config, e = parseConfig(r, headerEnd); e != nil {
    return nil, e
  }
  if n := headerEnd - r.Pos(); n > 0 {
    if t.pad, e = r.ReadN(n); e != nil {
      return nil, base.Structural(op, e)
    }
  }
  if uint64(entriesStart) > uint64(h.Size) || entriesStart < uint32(h.HeaderSize) {
    return nil, base.Structuralf(op, "type 0x%02x at 0x%x has entries start 0x%x outside [0x%x, 0x%x]", t.Id, start, entriesStart, h.HeaderSize, h.Size)
  }

  // 偏移表
  width := uint64(4)
  if t.Flags&TypeFlagSparse == 0 && t.Flags&TypeFlagOffset16 != 0 {
    width = 2
  }
  if room := start + int(entriesStart) - r.Pos(); room < 0 || uint64(count)*width > uint64(room) {
    return nil, base.Structuralf(op, "type 0x%02x at 0x%x: %d offsets do not fit before entries start 0x%x", t.Id, start, count, entriesStart)
  }
  var offsets []uint32
  switch {
  case t.Flags&TypeFlagSparse != 0:
    total := specCounts[t.Id]
    pairs, e := r.ReadUint32Array(int(count))
    if e != nil {
      return nil, base.Structural(op, e)
    }
    for _, pair := range pairs {
      if idx := int(pair & 0xFFFF); idx+1 > total {
        total = idx + 1
      }
    }
    offsets = make([]uint32, total)
    for i := range offsets {
      offsets[i] = noEntry
    }
    for _, pair := range pairs {
      offsets[pair&0xFFFF] = (pair >> 16) * 4
    }
  case t.Flags&TypeFlagOffset16 != 0:
    offsets = make([]uint32, count)
    for i := range offsets {
      v, e := r.ReadUint16()
      if e != nil {
        return nil, base.Structural(op, e)
      }
      if v == noEntry16 {
        offsets[i] = noEntry
      } else {
        offsets[i] = uint32(v) * 4
      }
    }
  default:
    if offsets, e = r.ReadUint32Array(int(count)); e != nil {
      return nil, base.Structural(op, e)
    }
  }
  if r.Pos() > start+int(entriesStart) {
    return nil, base.Structuralf(op, "type 0x%02x at 0x%x: offset table overlaps entries", t.Id, start)
  }

  end := start + int(h.Size)
  entriesBase := start + int(entriesStart)
  t.Entries = make([]*Entry, len(offsets))
  for i, off := range offsets {
    if off == noEntry {
      continue
    }
    pos := entriesBase + int(off)
    if pos >= end {
      return nil, base.Structuralf(op, "type 0x%02x entry %d at 0x%x is out of chunk", t.Id, i, pos)
    }
    if e = r.Seek(pos); e != nil {
      return nil, base.Structural(op, e)
    }
    en, e := parseEntry(r)
    if e != nil {
      return nil, e
    }
    if r.Pos() > end {
      return nil, base.Structuralf(op, "type 0x%02x entry %d at 0x%x overruns chunk", t.Id, i, pos)
    }
    t.Entries[i] = en
  }
  if e = r.Seek(end); e != nil {
    return nil, base.Structural(op, e)
  }
  return t, nil
}

func parseEntry(r *conv.Reader) (*Entry, error) {
  const op = "decode entry"
  en := &Entry{}
  var e error
  if en.Size, e = r.ReadUint16(); e != nil {
    return nil, base.Structural(op, e)
  }
  if en.Flags, e = r.ReadUint16(); e != nil {
    return nil, base.Structural(op, e)
  }
  // 紧凑格式：key(16) + flags(高8位是数据类型) + data(32)
  if en.IsCompact() {
    en.Key = uint32(en.Size)
    en.Size = 8
    en.Value = Value{Size: valueSize, DataType: uint8(en.Flags >> 8)}
    if en.Value.Data, e = r.ReadUint32(); e != nil {
      return nil, base.Structural(op, e)
    }
    return en, nil
  }
  if en.Key, e = r.ReadUint32(); e != nil {
    return nil, base.Structural(op, e)
  }
  if !en.IsComplex() {
    if en.Size < 8 {
      return nil, base.Structuralf(op, "entry size %d at 0x%x", en.Size, r.Pos()-8)
    }
    if e = r.Skip(int(en.Size) - 8); e != nil {
      return nil, base.Structural(op, e)
    }
    en.Value, e = readValue(r)
    return en, e
  }
  if en.Size < 16 {
    return nil, base.Structuralf(op, "complex entry size %d at 0x%x", en.Size, r.Pos()-8)
  }
  if en.Parent, e = r.ReadUint32(); e != nil {
    return nil, base.Structural(op, e)
  }
  count, e := r.ReadUint32()
  if e != nil {
    return nil, base.Structural(op, e)
  }
  if e = r.Skip(int(en.Size) - 16); e != nil {
    return nil, base.Structural(op, e)
  }
  if uint64(count)*12 > uint64(r.Len()) {
    return nil, base.Structuralf(op, "bag of %d items at 0x%x exceeds data", count, r.Pos())
  }
  en.Bag = make([]BagItem, count)
  for i := range en.Bag {
    if en.Bag[i].Name, e = r.ReadUint32(); e != nil {
      return nil, base.Structural(op, e)
    }
    if en.Bag[i].Value, e = readValue(r); e != nil {
      return nil, e
    }
  }
  return en, nil
}
