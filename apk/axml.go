package apk

import (
  "bytes"

  "github.com/kwf2030/apkres/base"
  "github.com/kwf2030/apkres/conv"
)

const (
  xmlNodeHeaderSize = 16
  xmlElementSize    = 20
  xmlAttrSize       = 20
)

// XmlFile is a decoded compiled xml document.
type XmlFile struct {
  StrPool *StrPool

  // 属性名对应的资源id，索引和StrPool一致
  ResIds []uint32

  // 按文档顺序：*XmlNamespace、*XmlElement、*XmlEndElement、*XmlCData、*Opaque
  Nodes []Chunk

  headerSize uint16
}

// XmlNode is the common header of every xml node.
type XmlNode struct {
  LineNumber uint32

  // 注释（字符串池索引），通常是0xFFFFFFFF
  Comment uint32
}

type XmlNamespace struct {
  XmlNode

  // true表示结束
  End bool

  Prefix uint32
  Uri    uint32
}

type XmlElement struct {
  XmlNode
  Ns   uint32
  Name uint32

  // 从1开始，0表示没有
  IdIndex    uint16
  ClassIndex uint16
  StyleIndex uint16

  Attrs []XmlAttr
}

type XmlAttr struct {
  Ns   uint32
  Name uint32

  // 原始字符串，没有时是0xFFFFFFFF
  RawValue uint32

  Value Value
}

type XmlEndElement struct {
  XmlNode
  Ns   uint32
  Name uint32
}

type XmlCData struct {
  XmlNode
  Data  uint32
  Value Value
}

func (*XmlFile) ChunkType() uint16       { return ChunkXml }
func (*XmlEndElement) ChunkType() uint16 { return ChunkXmlEndElement }
func (*XmlElement) ChunkType() uint16    { return ChunkXmlStartElement }
func (*XmlCData) ChunkType() uint16      { return ChunkXmlCData }

func (n *XmlNamespace) ChunkType() uint16 {
  if n.End {
    return ChunkXmlEndNamespace
  }
  return ChunkXmlStartNamespace
}

func (*XmlFile) isChunk()       {}
func (*XmlNamespace) isChunk()  {}
func (*XmlElement) isChunk()    {}
func (*XmlEndElement) isChunk() {}
func (*XmlCData) isChunk()      {}

// IsPlainXml reports whether data looks like a text xml document rather than a compiled one.
func IsPlainXml(data []byte) bool {
  data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
  data = bytes.TrimLeft(data, " \t\r\n")
  return len(data) > 0 && data[0] == '<'
}

// ParseXml decodes a compiled xml document.
func ParseXml(data []byte) (*XmlFile, error) {
  const op = "decode xml"
  r := conv.NewReader(data)
  h, start, e := readHeader(r, ChunkXml, op)
  if e != nil {
    return nil, e
  }
  if int(h.Size) != len(data) {
    return nil, base.Structuralf(op, "document declares %d bytes, data has %d", h.Size, len(data))
  }
  if e = r.Seek(start + int(h.HeaderSize)); e != nil {
    return nil, base.Structural(op, e)
  }
  f := &XmlFile{headerSize: h.HeaderSize}
  end := start + int(h.Size)
  for r.Pos() < end {
    typ, e := r.PeekUint16()
    if e != nil {
      return nil, base.Structural(op, e)
    }
    switch {
    case typ == ChunkStrPool && f.StrPool == nil:
      if f.StrPool, e = parseStrPool(r); e != nil {
        return nil, e
      }
    case typ == ChunkXmlResourceMap:
      if f.ResIds, e = parseResourceMap(r); e != nil {
        return nil, e
      }
    case typ >= ChunkXmlStartNamespace && typ <= ChunkXmlCData:
      n, e := parseXmlNode(r)
      if e != nil {
        return nil, e
      }
      f.Nodes = append(f.Nodes, n)
    default:
      o, e := readOpaque(r, op)
      if e != nil {
        return nil, e
      }
      f.Nodes = append(f.Nodes, o)
    }
  }
  if e = expectEnd(r, start, h, op); e != nil {
    return nil, e
  }
  if f.StrPool == nil {
    return nil, base.Structuralf(op, "document has no string pool")
  }
  return f, nil
}

func parseResourceMap(r *conv.Reader) ([]uint32, error) {
  const op = "decode resource map"
  h, start, e := readHeader(r, ChunkXmlResourceMap, op)
  if e != nil {
    return nil, e
  }
  n := int(h.Size) - int(h.HeaderSize)
  if n%4 != 0 {
    return nil, base.Structuralf(op, "resource map at 0x%x has %d bytes of ids", start, n)
  }
  if e = r.Seek(start + int(h.HeaderSize)); e != nil {
    return nil, base.Structural(op, e)
  }
  ids, e := r.ReadUint32Array(n / 4)
  if e != nil {
    return nil, base.Structural(op, e)
  }
  return ids, expectEnd(r, start, h, op)
}

func parseXmlNode(r *conv.Reader) (Chunk, error) {
  const op = "decode xml node"
  h, start, e := readHeader(r, ChunkNull, op)
  if e != nil {
    return nil, e
  }
  if h.HeaderSize < xmlNodeHeaderSize {
    return nil, base.Structuralf(op, "node 0x%04x at 0x%x has header size %d", h.Type, start, h.HeaderSize)
  }
  var node XmlNode
  if node.LineNumber, e = r.ReadUint32(); e != nil {
    return nil, base.Structural(op, e)
  }
  if node.Comment, e = r.ReadUint32(); e != nil {
    return nil, base.Structural(op, e)
  }
  body := start + int(h.HeaderSize)
  if e = r.Seek(body); e != nil {
    return nil, base.Structural(op, e)
  }
  u32 := func(vs ...*uint32) error {
    for _, v := range vs {
      var e error
      if *v, e = r.ReadUint32(); e != nil {
        return base.Structural(op, e)
      }
    }
    return nil
  }

  var c Chunk
  switch h.Type {
  case ChunkXmlStartNamespace, ChunkXmlEndNamespace:
    n := &XmlNamespace{XmlNode: node, End: h.Type == ChunkXmlEndNamespace}
    e = u32(&n.Prefix, &n.Uri)
    c = n
  case ChunkXmlEndElement:
    n := &XmlEndElement{XmlNode: node}
    e = u32(&n.Ns, &n.Name)
    c = n
  case ChunkXmlCData:
    n := &XmlCData{XmlNode: node}
    if e = u32(&n.Data); e == nil {
      n.Value, e = readValue(r)
    }
    c = n
  case ChunkXmlStartElement:
    c, e = parseXmlElement(r, node, body)
  }
  if e != nil {
    return nil, e
  }
  return c, expectEnd(r, start, h, op)
}

func parseXmlElement(r *conv.Reader, node XmlNode, body int) (*XmlElement, error) {
  const op = "decode xml element"
  n := &XmlElement{XmlNode: node}
  var e error
  if n.Ns, e = r.ReadUint32(); e != nil {
    return nil, base.Structural(op, e)
  }
  if n.Name, e = r.ReadUint32(); e != nil {
    return nil, base.Structural(op, e)
  }
  var attrStart, attrSize, attrCount uint16
  for _, v := range []*uint16{&attrStart, &attrSize, &attrCount, &n.IdIndex, &n.ClassIndex, &n.StyleIndex} {
    if *v, e = r.ReadUint16(); e != nil {
      return nil, base.Structural(op, e)
    }
  }
  if attrCount > 0 && attrSize < xmlAttrSize {
    return nil, base.Structuralf(op, "attribute size %d at 0x%x", attrSize, body)
  }
  n.Attrs = make([]XmlAttr, attrCount)
  for i := range n.Attrs {
    if e = r.Seek(body + int(attrStart) + i*int(attrSize)); e != nil {
      return nil, base.Structural(op, e)
    }
    a := &n.Attrs[i]
    for _, v := range []*uint32{&a.Ns, &a.Name, &a.RawValue} {
      if *v, e = r.ReadUint32(); e != nil {
        return nil, base.Structural(op, e)
      }
    }
    if a.Value, e = readValue(r); e != nil {
      return nil, e
    }
  }
  if e = r.Seek(body + int(attrStart) + int(attrCount)*int(attrSize)); e != nil {
    return nil, base.Structural(op, e)
  }
  return n, nil
}

// Encode serializes the document. An unmodified string pool is written back byte for byte.
func (f *XmlFile) Encode() ([]byte, error) {
  w := conv.NewWriter()
  hs := f.headerSize
  if hs < headerSize {
    hs = headerSize
  }
  Header{Type: ChunkXml, HeaderSize: hs}.writeTo(w)
  for i := headerSize; i < int(hs); i++ {
    w.WriteUint8(0)
  }
  if e := f.StrPool.writeTo(w); e != nil {
    return nil, e
  }
  if len(f.ResIds) > 0 {
    Header{Type: ChunkXmlResourceMap, HeaderSize: headerSize, Size: uint32(headerSize + 4*len(f.ResIds))}.writeTo(w)
    w.WriteUint32Array(f.ResIds)
  }
  for _, c := range f.Nodes {
    if e := writeXmlNode(w, c); e != nil {
      return nil, e
    }
  }
  w.PutUint32At(4, uint32(w.Len()))
  return w.Bytes(), nil
}

func writeXmlNode(w *conv.Writer, c Chunk) error {
  nodeHeader := func(typ uint16, node XmlNode, body int) {
    Header{Type: typ, HeaderSize: xmlNodeHeaderSize, Size: uint32(xmlNodeHeaderSize + body)}.writeTo(w)
    w.WriteUint32(node.LineNumber)
    w.WriteUint32(node.Comment)
  }
  switch n := c.(type) {
  case *XmlNamespace:
    nodeHeader(n.ChunkType(), n.XmlNode, 8)
    w.WriteUint32(n.Prefix)
    w.WriteUint32(n.Uri)
  case *XmlEndElement:
    nodeHeader(ChunkXmlEndElement, n.XmlNode, 8)
    w.WriteUint32(n.Ns)
    w.WriteUint32(n.Name)
  case *XmlCData:
    nodeHeader(ChunkXmlCData, n.XmlNode, 4+n.Value.encodedSize())
    w.WriteUint32(n.Data)
    n.Value.writeTo(w)
  case *XmlElement:
    nodeHeader(ChunkXmlStartElement, n.XmlNode, xmlElementSize+len(n.Attrs)*xmlAttrSize)
    w.WriteUint32(n.Ns)
    w.WriteUint32(n.Name)
    w.WriteUint16(xmlElementSize)
    w.WriteUint16(xmlAttrSize)
    w.WriteUint16(uint16(len(n.Attrs)))
    w.WriteUint16(n.IdIndex)
    w.WriteUint16(n.ClassIndex)
    w.WriteUint16(n.StyleIndex)
    for _, a := range n.Attrs {
      w.WriteUint32(a.Ns)
      w.WriteUint32(a.Name)
      w.WriteUint32(a.RawValue)
      v := a.Value
      v.Size = valueSize
      v.writeTo(w)
    }
  case *Opaque:
    w.Write(n.Raw)
  default:
    return base.Structuralf("encode xml", "unexpected node 0x%04x", c.ChunkType())
  }
  return nil
}
