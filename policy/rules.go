package policy

import (
  "bytes"
  "io/ioutil"
  "os"
  "path/filepath"
  "strings"

  "github.com/buger/jsonparser"
  "github.com/kwf2030/apkres/base"
  "github.com/kwf2030/apkres/file"
  "github.com/pkg/errors"
  "gopkg.in/yaml.v2"
)

// 规则文档中的issue id
const (
  IssueProperty    = "property"
  IssueWhitelist   = "whitelist"
  IssueCompress    = "compress"
  IssueSign        = "sign"
  IssueKeepMapping = "keepmapping"
)

// property和sign中的item
const (
  itemSevenZip  = "seventzip"
  itemKeepRoot  = "keeproot"
  itemMetaName  = "metaname"
  itemPath      = "path"
  itemKeyPass   = "keypass"
  itemStorePass = "storepass"
  itemAlias     = "alias"
)

type Item struct {
  Name  string `yaml:"name"`
  Value string `yaml:"value"`
}

type Issue struct {
  Id     string  `yaml:"id"`
  Active bool    `yaml:"isactive"`
  Items  []*Item `yaml:"items"`
}

type rulesDoc struct {
  Issues []*Issue `yaml:"issues"`
}

// SignData is handed to an external signer untouched.
type SignData struct {
  Path      string
  KeyPass   string
  StorePass string
  Alias     string
}

// Config is the policy built from direct calls plus a rules document.
// Values set by a direct call win over the same values in the rules document.
type Config struct {
  // 使用外部压缩工具
  UseExternalCompressor bool

  // 保留res目录名
  KeepRoot bool

  // 签名目录名
  MetaName string

  UseWhitelist   bool
  UseCompress    bool
  UseSign        bool
  UseKeepMapping bool

  Sign *SignData

  // 上一次的mapping文件
  MappingPath string
  Mapping     *Mapping

  // package -> type -> 名字模式
  whitelist map[string]map[string][]*pattern

  compress []*pattern

  // 被忽略的规则
  Warnings []string

  // 直接调用设置过的值
  direct map[string]bool
}

func NewConfig() *Config {
  return &Config{
    UseExternalCompressor: true,
    MetaName:              "META-INF",
    UseKeepMapping:        true,
    whitelist:             make(map[string]map[string][]*pattern, 4),
    direct:                make(map[string]bool, 4),
  }
}

// SetSignData enables signing with d, a later sign issue in the rules document is ignored.
func (c *Config) SetSignData(d SignData) error {
  if !file.IsFile(d.Path) {
    return base.PolicyConfigf("set sign data", "signature file %s does not exist", d.Path)
  }
  c.UseSign = true
  c.Sign = &d
  c.direct[IssueSign] = true
  return nil
}

// SetKeepMapping loads a prior mapping document, a later keepmapping issue is ignored.
func (c *Config) SetKeepMapping(path string) error {
  m, e := readMapping(path)
  if e != nil {
    return e
  }
  c.SetMapping(path, m)
  return nil
}

// SetMapping uses m as the prior mapping, name is only informational.
func (c *Config) SetMapping(name string, m *Mapping) {
  c.UseKeepMapping = true
  c.MappingPath = name
  c.Mapping = m
  c.direct[IssueKeepMapping] = true
}

func readMapping(path string) (*Mapping, error) {
  f, e := os.Open(path)
  if e != nil {
    return nil, base.PolicyConfigf("read mapping", "%v", e)
  }
  defer f.Close()
  return ParseMapping(f)
}

// LoadRules reads a rules document, ".json" files are JSON and everything else is YAML.
func (c *Config) LoadRules(path string) error {
  data, e := ioutil.ReadFile(path)
  if e != nil {
    return errors.Wrapf(e, "read rules %s", path)
  }
  format := "yaml"
  if strings.EqualFold(filepath.Ext(path), ".json") {
    format = "json"
  }
  base.Logger().Info().Str("path", path).Str("format", format).Msg("reading rules")
  return c.ParseRules(data, format)
}

// ParseRules applies a rules document. Every issue is validated, inactive ones are not applied.
// Nothing is applied when the document has an error.
func (c *Config) ParseRules(data []byte, format string) error {
  var issues []*Issue
  var e error
  if format == "json" {
    issues, e = parseRulesJSON(data)
  } else {
    doc := &rulesDoc{}
    if e = yaml.Unmarshal(data, doc); e != nil {
      e = base.PolicyConfigf("parse rules", "%v", e)
    }
    issues = doc.Issues
  }
  if e != nil {
    return e
  }

  next := *c
  next.whitelist = copyWhitelist(c.whitelist)
  next.compress = append([]*pattern(nil), c.compress...)
  for _, is := range issues {
    if e := next.apply(is); e != nil {
      return e
    }
  }
  *c = next
  return nil
}

func parseRulesJSON(data []byte) ([]*Issue, error) {
  const op = "parse rules"
  var issues []*Issue
  var fail error
  _, e := jsonparser.ArrayEach(data, func(v []byte, typ jsonparser.ValueType, _ int, _ error) {
    if fail != nil {
      return
    }
    if typ != jsonparser.Object {
      fail = base.PolicyConfigf(op, "issue %d is not an object", len(issues))
      return
    }
    is := &Issue{}
    var e1 error
    if is.Id, e1 = jsonparser.GetString(v, "id"); e1 != nil && e1 != jsonparser.KeyPathNotFoundError {
      fail = base.PolicyConfigf(op, "issue %d: id: %v", len(issues), e1)
      return
    }
    if is.Active, e1 = jsonparser.GetBoolean(v, "isactive"); e1 != nil && e1 != jsonparser.KeyPathNotFoundError {
      fail = base.PolicyConfigf(op, "issue %s: isactive: %v", is.Id, e1)
      return
    }
    _, e1 = jsonparser.ArrayEach(v, func(v1 []byte, typ1 jsonparser.ValueType, _ int, _ error) {
      if fail != nil {
        return
      }
      item, e2 := parseItemJSON(v1, typ1)
      if e2 != nil {
        fail = base.PolicyConfigf(op, "issue %s: item %d: %v", is.Id, len(is.Items), e2)
        return
      }
      is.Items = append(is.Items, item)
    }, "items")
    if fail != nil {
      return
    }
    if e1 != nil && e1 != jsonparser.KeyPathNotFoundError {
      fail = base.PolicyConfigf(op, "issue %s: items: %v", is.Id, e1)
      return
    }
    issues = append(issues, is)
  }, "issues")
  if fail != nil {
    return nil, fail
  }
  if e == jsonparser.KeyPathNotFoundError {
    return nil, nil
  }
  if e != nil {
    return nil, base.PolicyConfigf(op, "%v", e)
  }
  return issues, nil
}

func parseItemJSON(v []byte, typ jsonparser.ValueType) (*Item, error) {
  if typ != jsonparser.Object {
    return nil, errors.New("not an object")
  }
  item := &Item{}
  var e error
  if item.Name, e = jsonparser.GetString(v, "name"); e != nil && e != jsonparser.KeyPathNotFoundError {
    return nil, errors.Wrap(e, "name")
  }
  raw, vt, _, e := jsonparser.Get(v, "value")
  if e != nil {
    return nil, errors.Wrap(e, "value")
  }
  switch vt {
  case jsonparser.String:
    if item.Value, e = jsonparser.ParseString(raw); e != nil {
      return nil, errors.Wrap(e, "value")
    }
  case jsonparser.Number, jsonparser.Boolean:
    item.Value = string(bytes.TrimSpace(raw))
  default:
    return nil, errors.Errorf("value should be a string, number or boolean, got %s", vt)
  }
  return item, nil
}

func (c *Config) apply(is *Issue) error {
  const op = "apply rules"
  if is.Id == "" {
    return base.PolicyConfigf(op, "issue without id")
  }
  for _, item := range is.Items {
    if strings.TrimSpace(item.Value) == "" {
      return base.PolicyConfigf(op, "issue %s: item %q has no value", is.Id, item.Name)
    }
  }

  switch is.Id {
  case IssueProperty:
    return c.applyProperty(is)
  case IssueWhitelist:
    wl := copyWhitelist(c.whitelist)
    for _, item := range is.Items {
      pkg, typ, name, _, ok := splitResName(strings.TrimSpace(item.Value))
      if !ok {
        return base.PolicyConfigf(op, "whitelist %q should look like com.app.R.drawable.name", item.Value)
      }
      p, e := compilePattern(name)
      if e != nil {
        return e
      }
      if wl[pkg] == nil {
        wl[pkg] = make(map[string][]*pattern, 8)
      }
      wl[pkg][typ] = append(wl[pkg][typ], p)
    }
    if is.Active {
      c.UseWhitelist = true
      c.whitelist = wl
    }
  case IssueCompress:
    var ps []*pattern
    for _, item := range is.Items {
      p, e := compilePattern(strings.TrimSpace(item.Value))
      if e != nil {
        return e
      }
      ps = append(ps, p)
    }
    if is.Active {
      c.UseCompress = true
      c.compress = append(c.compress, ps...)
    }
  case IssueSign:
    return c.applySign(is)
  case IssueKeepMapping:
    return c.applyKeepMapping(is)
  default:
    c.warn("unknown issue " + is.Id + ", ignore it")
  }
  return nil
}

func (c *Config) applyProperty(is *Issue) error {
  for _, item := range is.Items {
    v := strings.TrimSpace(item.Value)
    switch item.Name {
    case itemSevenZip:
      if is.Active {
        c.UseExternalCompressor = v == "true"
      }
    case itemKeepRoot:
      if is.Active {
        c.KeepRoot = v == "true"
      }
    case itemMetaName:
      if is.Active {
        c.MetaName = v
      }
    default:
      c.warn("unknown item " + item.Name + " in issue " + is.Id + ", ignore it")
    }
  }
  return nil
}

func (c *Config) applySign(is *Issue) error {
  d := SignData{}
  for _, item := range is.Items {
    v := strings.TrimSpace(item.Value)
    switch item.Name {
    case itemPath:
      d.Path = v
    case itemKeyPass:
      d.KeyPass = v
    case itemStorePass:
      d.StorePass = v
    case itemAlias:
      d.Alias = v
    default:
      c.warn("unknown item " + item.Name + " in issue " + is.Id + ", ignore it")
    }
  }
  if !is.Active {
    return nil
  }
  if c.direct[IssueSign] {
    c.warn("sign data already set directly, ignore the sign issue")
    return nil
  }
  if !file.IsFile(d.Path) {
    return base.PolicyConfigf("apply rules", "signature file %s does not exist", d.Path)
  }
  c.UseSign = true
  c.Sign = &d
  return nil
}

func (c *Config) applyKeepMapping(is *Issue) error {
  if !is.Active {
    c.UseKeepMapping = c.direct[IssueKeepMapping]
    return nil
  }
  if c.direct[IssueKeepMapping] {
    c.warn("mapping " + c.MappingPath + " already set directly, ignore the keepmapping issue")
    return nil
  }
  for _, item := range is.Items {
    path := strings.TrimSpace(item.Value)
    m, e := readMapping(path)
    if e != nil {
      return e
    }
    c.UseKeepMapping = true
    c.MappingPath = path
    c.Mapping = m
    base.Logger().Info().Str("path", path).Msg("keep mapping")
  }
  return nil
}

func (c *Config) warn(msg string) {
  c.Warnings = append(c.Warnings, msg)
  base.Logger().Warn().Msg(msg)
}

func copyWhitelist(src map[string]map[string][]*pattern) map[string]map[string][]*pattern {
  dst := make(map[string]map[string][]*pattern, len(src))
  for pkg, types := range src {
    dst[pkg] = make(map[string][]*pattern, len(types))
    for typ, ps := range types {
      dst[pkg][typ] = append([]*pattern(nil), ps...)
    }
  }
  return dst
}

// Whitelisted reports whether pkg.R.typ.name must keep its name.
func (c *Config) Whitelisted(pkg, typ, name string) bool {
  if !c.UseWhitelist {
    return false
  }
  return matchAny(c.whitelist[pkg][typ], name)
}

// CompressMatch reports whether path is forced to be deflated.
func (c *Config) CompressMatch(path string) bool {
  return c.UseCompress && matchAny(c.compress, path)
}
