package policy

import (
  "bufio"
  "fmt"
  "io"
  "sort"
  "strings"

  "github.com/kwf2030/apkres/base"
)

const (
  // 资源名的包名标记，比如com.app.R.string.app_name
  resMarker = ".R."
  arrow     = "->"

  pathHeader = "res path mapping:"
  idHeader   = "res id mapping:"
  indent     = "    "
)

// Mapping is the rename record of one run, it is read back by the next run so
// the same source names get the same new names.
type Mapping struct {
  // package -> type -> old name -> new name
  Res map[string]map[string]map[string]string

  // old path -> new path
  Files map[string]string
}

func NewMapping() *Mapping {
  return &Mapping{
    Res:   make(map[string]map[string]map[string]string, 4),
    Files: make(map[string]string, 64),
  }
}

func (m *Mapping) Lookup(pkg, typ, name string) (string, bool) {
  s, ok := m.Res[pkg][typ][name]
  return s, ok
}

func (m *Mapping) Put(pkg, typ, name, newName string) {
  types, ok := m.Res[pkg]
  if !ok {
    types = make(map[string]map[string]string, 16)
    m.Res[pkg] = types
  }
  names, ok := types[typ]
  if !ok {
    names = make(map[string]string, 64)
    types[typ] = names
  }
  names[name] = newName
}

// Targets returns the new names recorded for one type.
func (m *Mapping) Targets(pkg, typ string) []string {
  var ret []string
  for _, v := range m.Res[pkg][typ] {
    ret = append(ret, v)
  }
  sort.Strings(ret)
  return ret
}

func (m *Mapping) PutFile(path, newPath string) {
  m.Files[path] = newPath
}

// Len returns the number of resource and file mappings.
func (m *Mapping) Len() (int, int) {
  n := 0
  for _, types := range m.Res {
    for _, names := range types {
      n += len(names)
    }
  }
  return n, len(m.Files)
}

// splitResName splits "com.app.R.string.app_name" into package, type and name.
func splitResName(s string) (string, string, string, int, bool) {
  pos := strings.Index(s, resMarker)
  if pos == -1 {
    return "", "", "", -1, false
  }
  rest := s[pos+len(resMarker):]
  dot := strings.IndexByte(rest, '.')
  if dot == -1 {
    return "", "", "", -1, false
  }
  return s[:pos], rest[:dot], rest[dot+1:], pos, true
}

// ParseMapping reads "before -> after" lines. Lines without an arrow (section headers) are skipped.
// A before-token with a path separator is a file mapping, otherwise it must carry the ".R." marker.
func ParseMapping(r io.Reader) (*Mapping, error) {
  const op = "parse mapping"
  m := NewMapping()
  sc := bufio.NewScanner(r)
  sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
  n := 0
  for sc.Scan() {
    n++
    line := sc.Text()
    i := strings.Index(line, arrow)
    if strings.TrimSpace(line) == "" || i == -1 {
      continue
    }
    before := strings.TrimSpace(line[:i])
    after := strings.TrimSpace(line[i+len(arrow):])
    if strings.Contains(before, "/") {
      m.PutFile(before, after)
      continue
    }
    pkg, typ, name, pos, ok := splitResName(before)
    if !ok {
      return nil, base.PolicyConfigf(op, "line %d: %q should look like com.app.R.string.name", n, before)
    }
    m.Put(pkg, typ, name, afterName(after, pos))
  }
  if e := sc.Err(); e != nil {
    return nil, base.PolicyConfigf(op, "%v", e)
  }
  return m, nil
}

// 新名字从同样的标记位置开始，去掉类型部分
func afterName(after string, pos int) string {
  start := pos + len(resMarker)
  if start > len(after) {
    return after
  }
  dot := strings.IndexByte(after[start:], '.')
  if dot == -1 {
    return after
  }
  return after[start+dot+1:]
}

// WriteTo writes the mapping in a stable order, it can be read back by ParseMapping.
func (m *Mapping) WriteTo(w io.Writer) (int64, error) {
  bw := bufio.NewWriter(w)
  var n int64
  write := func(format string, args ...interface{}) {
    c, _ := fmt.Fprintf(bw, format, args...)
    n += int64(c)
  }
  write("%s\n", pathHeader)
  for _, k := range sortedKeys(m.Files) {
    write("%s%s %s %s\n", indent, k, arrow, m.Files[k])
  }
  write("%s\n", idHeader)
  pkgs := make([]string, 0, len(m.Res))
  for k := range m.Res {
    pkgs = append(pkgs, k)
  }
  sort.Strings(pkgs)
  for _, pkg := range pkgs {
    types := make([]string, 0, len(m.Res[pkg]))
    for k := range m.Res[pkg] {
      types = append(types, k)
    }
    sort.Strings(types)
    for _, typ := range types {
      names := m.Res[pkg][typ]
      for _, k := range sortedKeys(names) {
        write("%s%s%s%s.%s %s %s%s%s.%s\n", indent, pkg, resMarker, typ, k, arrow, pkg, resMarker, typ, names[k])
      }
    }
  }
  return n, bw.Flush()
}

func sortedKeys(m map[string]string) []string {
  ret := make([]string, 0, len(m))
  for k := range m {
    ret = append(ret, k)
  }
  sort.Strings(ret)
  return ret
}
