package apk

import (
  "fmt"

  "github.com/kwf2030/apkres/base"
)

type EventType int

const (
  NamespaceStart EventType = iota
  NamespaceEnd
  ElementStart
  ElementEnd
  CharData
)

var eventNames = [...]string{"NamespaceStart", "NamespaceEnd", "ElementStart", "ElementEnd", "CharData"}

func (t EventType) String() string {
  if int(t) < len(eventNames) {
    return eventNames[t]
  }
  return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is one step of a decoded xml document, which fields are set depends on Type.
type Event struct {
  Type EventType
  Line uint32

  // NamespaceStart、NamespaceEnd
  Prefix string
  Uri    string

  // ElementStart、ElementEnd，Namespace是uri，没有时为空
  Namespace string
  Name      string
  Attrs     []Attr

  // CharData
  Text string
}

type Attr struct {
  Namespace string
  Name      string

  // 原始字符串或者解析后的值
  Value string

  // 原始类型和数据
  Type uint8
  Data uint32
}

// Observer consumes decoded events in document order.
type Observer interface {
  OnEvent(ev Event)
}

type ObserverFunc func(ev Event)

func (f ObserverFunc) OnEvent(ev Event) {
  f(ev)
}

// Broadcast feeds every event to each observer in order before moving to the next event.
func Broadcast(events []Event, observers ...Observer) {
  for _, ev := range events {
    for _, o := range observers {
      o.OnEvent(ev)
    }
  }
}

// Decoder turns compiled xml into events, resolving references against Table when set.
// Unresolvable references are kept as "@xxxxxxxx" and recorded in Warnings.
type Decoder struct {
  Table  *Table
  Locale Locale

  Warnings []base.Warning
}

func NewDecoder(table *Table) *Decoder {
  return &Decoder{Table: table, Locale: DefaultLocale}
}

// Decode parses data completely before producing any event, a structural error yields none.
func (d *Decoder) Decode(data []byte) ([]Event, error) {
  f, e := ParseXml(data)
  if e != nil {
    return nil, e
  }
  return d.Events(f), nil
}

func (d *Decoder) Events(f *XmlFile) []Event {
  events := make([]Event, 0, len(f.Nodes))
  for _, c := range f.Nodes {
    switch n := c.(type) {
    case *XmlNamespace:
      ev := Event{Type: NamespaceStart, Line: n.LineNumber, Prefix: f.str(n.Prefix), Uri: f.str(n.Uri)}
      if n.End {
        ev.Type = NamespaceEnd
      }
      events = append(events, ev)
    case *XmlElement:
      ev := Event{Type: ElementStart, Line: n.LineNumber, Namespace: f.str(n.Ns), Name: f.str(n.Name)}
      ev.Attrs = make([]Attr, len(n.Attrs))
      for i, a := range n.Attrs {
        ev.Attrs[i] = Attr{
          Namespace: f.str(a.Ns),
          Name:      f.attrName(a.Name),
          Value:     d.attrValue(f, a),
          Type:      a.Value.DataType,
          Data:      a.Value.Data,
        }
      }
      events = append(events, ev)
    case *XmlEndElement:
      events = append(events, Event{Type: ElementEnd, Line: n.LineNumber, Namespace: f.str(n.Ns), Name: f.str(n.Name)})
    case *XmlCData:
      text, ok := f.StrPool.Get(n.Data)
      if !ok {
        text = n.Value.Format(f.StrPool)
      }
      events = append(events, Event{Type: CharData, Line: n.LineNumber, Text: text})
    }
  }
  return events
}

func (f *XmlFile) str(i uint32) string {
  s, _ := f.StrPool.Get(i)
  return s
}

// 字符串池里没有属性名时用资源id查
func (f *XmlFile) attrName(i uint32) string {
  if s, ok := f.StrPool.Get(i); ok && s != "" {
    return s
  }
  if uint64(i) < uint64(len(f.ResIds)) {
    if s, ok := AttrName(f.ResIds[i]); ok {
      return s
    }
    return fmt.Sprintf("attr_%08x", f.ResIds[i])
  }
  return fmt.Sprintf("attr_%d", i)
}

func (d *Decoder) attrValue(f *XmlFile, a XmlAttr) string {
  if s, ok := f.StrPool.Get(a.RawValue); ok {
    return s
  }
  switch a.Value.DataType {
  case TypeReference, TypeDynamicReference:
    return d.reference(ResId(a.Value.Data))
  }
  return a.Value.Format(f.StrPool)
}

func (d *Decoder) reference(id ResId) string {
  if id == 0 {
    return "@null"
  }
  literal := fmt.Sprintf("@%08x", uint32(id))
  if d.Table == nil {
    return literal
  }
  v, ok := d.Table.Resolve(id, d.Locale)
  if !ok {
    w := base.Warning{Kind: base.KindReferenceUnresolved, Msg: "reference " + literal + " not in table"}
    d.Warnings = append(d.Warnings, w)
    base.Logger().Debug().Str("id", id.String()).Msg("unresolved reference")
    return literal
  }
  en := v.Entry
  if en.IsComplex() {
    return "@" + d.Table.ResourceName(id)
  }
  switch en.Value.DataType {
  case TypeReference, TypeDynamicReference, TypeAttribute, TypeDynamicAttribute, TypeNull:
    return "@" + d.Table.ResourceName(id)
  }
  return en.Value.Format(d.Table.StrPool)
}

// DecodeXmlText renders data as xml text. Plain text documents are returned as is.
func DecodeXmlText(data []byte, table *Table) (string, []base.Warning, error) {
  if IsPlainXml(data) {
    return string(data), nil, nil
  }
  d := NewDecoder(table)
  events, e := d.Decode(data)
  if e != nil {
    return "", nil, e
  }
  p := NewXmlPrinter()
  Broadcast(events, p)
  return p.String(), d.Warnings, nil
}
