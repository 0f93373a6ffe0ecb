package policy

import (
  "archive/zip"
  "strings"

  "github.com/kwf2030/apkres/apk"
  "github.com/kwf2030/apkres/base"
)

const resDir = "res/"

// 不是文件的类型
var valueTypes = map[string]bool{"string": true, "array": true, "plurals": true}

// Engine decides new resource names, file paths and compression methods.
// Decisions are recorded into Mapping so the next run can repeat them.
type Engine struct {
  config *Config
  prior  *Mapping
  out    *Mapping
  gens   map[string]*NameGenerator
  root   string
}

// Plan is what Apply changed.
type Plan struct {
  // 改名的资源数
  Renamed int

  // 原路径 -> 新路径
  Files map[string]string
}

func NewEngine(c *Config) *Engine {
  prior := c.Mapping
  if !c.UseKeepMapping || prior == nil {
    prior = NewMapping()
  }
  root := "r"
  if c.KeepRoot {
    root = "res"
  }
  return &Engine{
    config: c,
    prior:  prior,
    out:    NewMapping(),
    gens:   make(map[string]*NameGenerator, 16),
    root:   root,
  }
}

func (en *Engine) generator(pkg, typ string) *NameGenerator {
  k := pkg + resMarker + typ
  g, ok := en.gens[k]
  if !ok {
    g = NewNameGenerator(en.prior.Targets(pkg, typ)...)
    en.gens[k] = g
  }
  return g
}

// Reserve keeps name out of the generated names of pkg/typ.
func (en *Engine) Reserve(pkg, typ, name string) {
  en.generator(pkg, typ).Reserve(name)
}

// ResourceName returns the new name of pkg.R.typ.name: whitelisted names are kept,
// a prior mapping is reused, otherwise a short name is generated and recorded.
func (en *Engine) ResourceName(pkg, typ, name string) string {
  if en.config.Whitelisted(pkg, typ, name) {
    return name
  }
  if s, ok := en.out.Lookup(pkg, typ, name); ok {
    return s
  }
  s, ok := en.prior.Lookup(pkg, typ, name)
  if !ok {
    s = en.generator(pkg, typ).Next()
  }
  en.out.Put(pkg, typ, name, s)
  return s
}

// FilePath returns the new path of a resource file whose resource is now named newName.
func (en *Engine) FilePath(path, newName string) string {
  if s, ok := en.prior.Files[path]; ok {
    return s
  }
  i := strings.LastIndexByte(path, '/')
  if i == -1 || !strings.HasPrefix(path, resDir) {
    return path
  }
  dir, name := path[len(resDir):i], path[i+1:]
  ext := ""
  if dot := strings.IndexByte(name, '.'); dot != -1 {
    ext = name[dot:]
  }
  return en.root + "/" + dir + "/" + newName + ext
}

// Compression returns zip.Deflate for paths matching a compress pattern, observed otherwise.
func (en *Engine) Compression(path string, observed uint16) uint16 {
  if en.config.CompressMatch(path) {
    return zip.Deflate
  }
  return observed
}

// Mapping returns the decisions made so far, it is the prior mapping of the next run.
func (en *Engine) Mapping() *Mapping {
  return en.out
}

// Apply renames every resource of t and rewrites the file paths it references.
// Ids are never changed.
func (en *Engine) Apply(t *apk.Table) *Plan {
  t.Walk(func(p *apk.Package, typ *apk.Type, _ int, e *apk.Entry) {
    name, tn := p.KeyName(e.Key), p.TypeName(typ.Id)
    if en.config.Whitelisted(p.Name, tn, name) {
      en.Reserve(p.Name, tn, name)
    }
  })

  plan := &Plan{Files: make(map[string]string, 64)}
  for _, p := range t.Packages {
    pkg := p.Name
    plan.Renamed += p.RewriteKeys(func(typ, name string, _ apk.ResId) string {
      return en.ResourceName(pkg, typ, name)
    })
  }

  // 新路径追加到全局池，只改文件引用，同一个字符串可能还被别的值引用
  added := make(map[string]uint32, 64)
  t.Walk(func(p *apk.Package, typ *apk.Type, _ int, e *apk.Entry) {
    if e.IsComplex() || e.Value.DataType != apk.TypeString {
      return
    }
    if valueTypes[p.TypeName(typ.Id)] {
      return
    }
    path, ok := t.StrPool.Get(e.Value.Data)
    if !ok || !strings.HasPrefix(path, resDir) {
      return
    }
    newPath, ok := plan.Files[path]
    if !ok {
      newPath = en.FilePath(path, p.KeyName(e.Key))
    }
    if newPath == path {
      return
    }
    idx, ok := added[newPath]
    if !ok {
      idx = t.StrPool.Add(newPath)
      added[newPath] = idx
    }
    e.Value.Data = idx
    plan.Files[path] = newPath
    en.out.PutFile(path, newPath)
  })
  base.Logger().Info().Int("renamed", plan.Renamed).Int("files", len(plan.Files)).Msg("policy applied")
  return plan
}
