package apk

import (
  "fmt"
)

// ResId splits a resource id into package, type and entry index.
type ResId uint32

func (id ResId) Package() uint8 { return uint8(id >> 24) }
func (id ResId) Type() uint8    { return uint8(id >> 16) }
func (id ResId) Index() int     { return int(id & 0xFFFF) }

func (id ResId) String() string {
  return fmt.Sprintf("0x%08x", uint32(id))
}

func MakeResId(pkg uint32, typ uint8, index int) ResId {
  return ResId((pkg&0xFF)<<24 | uint32(typ)<<16 | uint32(index&0xFFFF))
}

// Variant is one configuration's value of a resource.
type Variant struct {
  Package *Package
  Type    *Type
  Entry   *Entry
}

// Package returns the package with the given id, or nil.
func (t *Table) Package(id uint8) *Package {
  for _, p := range t.Packages {
    if uint8(p.Id) == id {
      return p
    }
  }
  return nil
}

// Entry returns every present variant of id in table order.
func (t *Table) Entry(id ResId) []Variant {
  p := t.Package(id.Package())
  if p == nil {
    return nil
  }
  var ret []Variant
  for _, typ := range p.Types() {
    if typ.Id != id.Type() || id.Index() >= len(typ.Entries) {
      continue
    }
    if en := typ.Entries[id.Index()]; en != nil {
      ret = append(ret, Variant{Package: p, Type: typ, Entry: en})
    }
  }
  return ret
}

// Resolve picks the variant whose locale scores highest against l, the first one wins a tie.
func (t *Table) Resolve(id ResId, l Locale) (Variant, bool) {
  best, score := Variant{}, -2
  for _, v := range t.Entry(id) {
    loc := v.Type.Config.Locale()
    if s := MatchLocale(&loc, l); s > score {
      best, score = v, s
    }
  }
  return best, score > -2
}

// ResourceName returns "type/name" of id, or "" when id is not in the table.
func (t *Table) ResourceName(id ResId) string {
  vs := t.Entry(id)
  if len(vs) == 0 {
    return ""
  }
  p := vs[0].Package
  return p.TypeName(id.Type()) + "/" + p.KeyName(vs[0].Entry.Key)
}

// Locales returns the distinct locales of every Type chunk in first-seen order.
func (t *Table) Locales() []Locale {
  seen := map[Locale]bool{}
  var ret []Locale
  for _, p := range t.Packages {
    for _, typ := range p.Types() {
      l := typ.Config.Locale()
      if !seen[l] {
        seen[l] = true
        ret = append(ret, l)
      }
    }
  }
  return ret
}

// Walk calls fn for every present entry of every configuration.
func (t *Table) Walk(fn func(p *Package, typ *Type, index int, en *Entry)) {
  for _, p := range t.Packages {
    for _, typ := range p.Types() {
      for i, en := range typ.Entries {
        if en != nil {
          fn(p, typ, i, en)
        }
      }
    }
  }
}

func (p *Package) Types() []*Type {
  var ret []*Type
  for _, c := range p.Chunks {
    if typ, ok := c.(*Type); ok {
      ret = append(ret, typ)
    }
  }
  return ret
}

func (p *Package) Specs() []*TypeSpec {
  var ret []*TypeSpec
  for _, c := range p.Chunks {
    if s, ok := c.(*TypeSpec); ok {
      ret = append(ret, s)
    }
  }
  return ret
}

// TypeName returns the name of type id ("string", "drawable", ...).
func (p *Package) TypeName(id uint8) string {
  if id == 0 {
    return ""
  }
  s, _ := p.TypeStrPool.Get(uint32(id) - 1)
  return s
}

func (p *Package) KeyName(key uint32) string {
  s, _ := p.KeyStrPool.Get(key)
  return s
}

// RewriteKeys renames resources. fn gets the type name, the current name and the id, and
// returns the new name. Every configuration of one resource shares the name decided for its
// first occurrence. The key pool is rebuilt in first-use order, ids never change.
func (p *Package) RewriteKeys(fn func(typ, name string, id ResId) string) int {
  type slot struct {
    typ   uint8
    index int
  }
  decided := map[slot]string{}
  changed := 0
  for _, typ := range p.Types() {
    for i, en := range typ.Entries {
      if en == nil {
        continue
      }
      k := slot{typ.Id, i}
      if _, ok := decided[k]; ok {
        continue
      }
      old := p.KeyName(en.Key)
      name := fn(p.TypeName(typ.Id), old, MakeResId(p.Id, typ.Id, i))
      if name != old {
        changed++
      }
      decided[k] = name
    }
  }
  if changed == 0 {
    return 0
  }

  var strs []string
  index := map[string]uint32{}
  for _, typ := range p.Types() {
    for i, en := range typ.Entries {
      if en == nil {
        continue
      }
      name := decided[slot{typ.Id, i}]
      key, ok := index[name]
      if !ok {
        key = uint32(len(strs))
        strs = append(strs, name)
        index[name] = key
      }
      en.Key = key
    }
  }
  p.KeyStrPool.Strs = strs
  p.KeyStrPool.Styles = nil
  p.KeyStrPool.dirty = true
  return changed
}
