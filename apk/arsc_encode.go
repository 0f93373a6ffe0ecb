package apk

import (
  "github.com/kwf2030/apkres/base"
  "github.com/kwf2030/apkres/conv"
)

// Encode serializes the table, recomputing every offset table and chunk size.
// Unmodified string pools and opaque chunks are written back byte for byte.
func (t *Table) Encode() ([]byte, error) {
  w := conv.NewWriter()
  start := w.Len()
  Header{Type: ChunkTable, HeaderSize: uint16(tableHeaderSize + len(t.headerExtra))}.writeTo(w)
  w.WriteUint32(uint32(len(t.Packages)))
  w.Write(t.headerExtra)
  for _, c := range t.Chunks {
    if e := writeChunk(w, c); e != nil {
      return nil, e
    }
  }
  w.PutUint32At(start+4, uint32(w.Len()-start))
  return w.Bytes(), nil
}

func writeChunk(w *conv.Writer, c Chunk) error {
  switch v := c.(type) {
  case *StrPool:
    return v.writeTo(w)
  case *Package:
    return v.writeTo(w)
  case *TypeSpec:
    v.writeTo(w)
  case *Type:
    return v.writeTo(w)
  case *Opaque:
    w.Write(v.Raw)
  default:
    return base.Structuralf("encode table", "unexpected chunk 0x%04x", c.ChunkType())
  }
  return nil
}

func (p *Package) writeTo(w *conv.Writer) error {
  start := w.Len()
  hs := p.headerSize
  if hs == 0 {
    hs = packageHeaderSize
  }
  Header{Type: ChunkTablePackage, HeaderSize: hs}.writeTo(w)
  w.WriteUint32(p.Id)
  if p.nameRaw != nil && decodePackageName(p.nameRaw) == p.Name {
    w.Write(p.nameRaw)
  } else {
    w.Write(encodePackageName(p.Name))
  }
  typeStringsAt := w.Len()
  w.WriteUint32(0)
  w.WriteUint32(p.LastPublicType)
  keyStringsAt := w.Len()
  w.WriteUint32(0)
  w.WriteUint32(p.LastPublicKey)
  if hs >= packageHeaderSize {
    w.WriteUint32(p.TypeIdOffset)
  }
  w.Write(p.extra)

  for _, c := range p.Chunks {
    pos := uint32(w.Len() - start)
    switch c {
    case Chunk(p.TypeStrPool):
      w.PutUint32At(typeStringsAt, pos)
    case Chunk(p.KeyStrPool):
      w.PutUint32At(keyStringsAt, pos)
    }
    if e := writeChunk(w, c); e != nil {
      return e
    }
  }
  w.PutUint32At(start+4, uint32(w.Len()-start))
  return nil
}

func (s *TypeSpec) writeTo(w *conv.Writer) {
  Header{
    Type:       ChunkTableTypeSpec,
    HeaderSize: typeSpecHeaderSize,
    Size:       uint32(typeSpecHeaderSize + 4*len(s.Flags)),
  }.writeTo(w)
  w.WriteUint8(s.Id)
  w.WriteUint8(s.Res0)
  w.WriteUint16(s.TypesCount)
  w.WriteUint32(uint32(len(s.Flags)))
  w.WriteUint32Array(s.Flags)
}

func (t *Type) writeTo(w *conv.Writer) error {
  const op = "encode type"
  entries := conv.NewWriter()
  offsets := make([]uint32, len(t.Entries))
  present := 0
  for i, en := range t.Entries {
    if en == nil {
      offsets[i] = noEntry
      continue
    }
    present++
    offsets[i] = uint32(entries.Len())
    if e := en.writeTo(entries); e != nil {
      return e
    }
  }

  flags := t.Flags
  if flags&TypeFlagOffset16 != 0 {
    for _, off := range offsets {
      if off != noEntry && off/4 >= noEntry16 {
        flags &^= TypeFlagOffset16
        break
      }
    }
  }
  if flags&TypeFlagSparse != 0 {
    for i, off := range offsets {
      if off != noEntry && (i > 0xFFFF || off/4 > 0xFFFF) {
        flags &^= TypeFlagSparse
        break
      }
    }
  }

  table := conv.NewWriter()
  count := len(offsets)
  switch {
  case flags&TypeFlagSparse != 0:
    count = present
    for i, off := range offsets {
      if off != noEntry {
        table.WriteUint32(uint32(i) | (off/4)<<16)
      }
    }
  case flags&TypeFlagOffset16 != 0:
    for _, off := range offsets {
      if off == noEntry {
        table.WriteUint16(noEntry16)
      } else {
        table.WriteUint16(uint16(off / 4))
      }
    }
    table.Pad(4)
  default:
    table.WriteUint32Array(offsets)
  }

  if t.Config.Size() < cfgMinSize {
    return base.Structuralf(op, "type 0x%02x has config of %d bytes", t.Id, t.Config.Size())
  }
  hs := 20 + t.Config.Size() + len(t.pad)
  entriesStart := hs + table.Len()
  Header{
    Type:       ChunkTableType,
    HeaderSize: uint16(hs),
    Size:       uint32(entriesStart + entries.Len()),
  }.writeTo(w)
  w.WriteUint8(t.Id)
  w.WriteUint8(flags)
  w.WriteUint16(t.Reserved)
  w.WriteUint32(uint32(count))
  w.WriteUint32(uint32(entriesStart))
  w.Write(t.Config.Raw)
  w.Write(t.pad)
  w.Write(table.Bytes())
  w.Write(entries.Bytes())
  return nil
}

func (en *Entry) writeTo(w *conv.Writer) error {
  if en.IsCompact() && en.Key <= 0xFFFF {
    w.WriteUint16(uint16(en.Key))
    w.WriteUint16(en.Flags&0x00FF | uint16(en.Value.DataType)<<8)
    w.WriteUint32(en.Value.Data)
    return nil
  }
  flags := en.Flags
  if en.IsCompact() {
    // key放不下16位时退回普通格式
    flags &= 0x00FF &^ EntryFlagCompact
  }
  if !en.IsComplex() {
    size := entrySize(en.Size, 8)
    w.WriteUint16(size)
    w.WriteUint16(flags)
    w.WriteUint32(en.Key)
    w.Write(make([]byte, size-8))
    en.Value.writeTo(w)
    return nil
  }
  size := entrySize(en.Size, 16)
  w.WriteUint16(size)
  w.WriteUint16(flags)
  w.WriteUint32(en.Key)
  w.WriteUint32(en.Parent)
  w.WriteUint32(uint32(len(en.Bag)))
  w.Write(make([]byte, size-16))
  for _, item := range en.Bag {
    w.WriteUint32(item.Name)
    item.Value.writeTo(w)
  }
  return nil
}

// 头部多出的字节按0写回
func entrySize(size, least uint16) uint16 {
  if size < least {
    return least
  }
  return size
}
