package apk

import (
  "strings"
)

const xmlDeclaration = `<?xml version="1.0" encoding="utf-8"?>` + "\n"

var xmlEscaper = strings.NewReplacer(
  "&", "&amp;",
  "<", "&lt;",
  ">", "&gt;",
  `"`, "&quot;",
  "'", "&apos;",
)

// XmlPrinter renders events as indented xml text, one tab per level.
type XmlPrinter struct {
  sb    strings.Builder
  ns    Namespaces
  depth int

  // 上一个开始标签还没写'>'
  pending bool
}

func NewXmlPrinter() *XmlPrinter {
  p := &XmlPrinter{}
  p.sb.WriteString(xmlDeclaration)
  return p
}

func (p *XmlPrinter) OnEvent(ev Event) {
  switch ev.Type {
  case NamespaceStart:
    p.ns.Push(ev.Prefix, ev.Uri)
  case NamespaceEnd:
    p.ns.Pop(ev.Prefix, ev.Uri)
  case ElementStart:
    p.closePending()
    p.indent(p.depth)
    p.depth++
    p.sb.WriteByte('<')
    p.sb.WriteString(p.qname(ev.Namespace, ev.Name))
    for _, n := range p.ns.Consume() {
      p.sb.WriteString(" xmlns:")
      p.sb.WriteString(n.Prefix)
      p.sb.WriteString(`="`)
      p.sb.WriteString(xmlEscaper.Replace(n.Uri))
      p.sb.WriteByte('"')
    }
    for _, a := range ev.Attrs {
      p.sb.WriteByte(' ')
      p.sb.WriteString(p.qname(a.Namespace, a.Name))
      p.sb.WriteString(`="`)
      p.sb.WriteString(xmlEscaper.Replace(a.Value))
      p.sb.WriteByte('"')
    }
    p.pending = true
  case ElementEnd:
    p.depth--
    if p.pending {
      p.sb.WriteString("/>\n")
    } else {
      p.indent(p.depth)
      p.sb.WriteString("</")
      p.sb.WriteString(p.qname(ev.Namespace, ev.Name))
      p.sb.WriteString(">\n")
    }
    p.pending = false
  case CharData:
    p.closePending()
    p.indent(p.depth)
    p.sb.WriteString(xmlEscaper.Replace(ev.Text))
    p.sb.WriteByte('\n')
  }
}

// 有字符数据时先关闭开始标签
func (p *XmlPrinter) closePending() {
  if p.pending {
    p.sb.WriteString(">\n")
    p.pending = false
  }
}

func (p *XmlPrinter) indent(n int) {
  for i := 0; i < n; i++ {
    p.sb.WriteByte('\t')
  }
}

// 没有声明前缀的uri原样输出
func (p *XmlPrinter) qname(uri, name string) string {
  if uri == "" {
    return name
  }
  if prefix, ok := p.ns.Prefix(uri); ok {
    if prefix == "" {
      return name
    }
    return prefix + ":" + name
  }
  return uri + ":" + name
}

func (p *XmlPrinter) String() string {
  return p.sb.String()
}
