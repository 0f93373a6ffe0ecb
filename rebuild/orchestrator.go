package rebuild

import (
  "archive/zip"
  "io/ioutil"
  "os"
  "path/filepath"
  "sort"
  "strings"

  "github.com/dustin/go-humanize"
  "github.com/kwf2030/apkres/apk"
  "github.com/kwf2030/apkres/base"
  "github.com/kwf2030/apkres/file"
  "github.com/kwf2030/apkres/pipeline"
  "github.com/kwf2030/apkres/policy"
  "github.com/pkg/errors"
)

// Stage names, in running order.
const (
  StageConfigure = "configure"
  StageUnzip     = "unzip"
  StageProbe     = "probe"
  StageDecode    = "decode"
  StageCopyLoose = "copy-loose"
  StagePolicy    = "policy"
  StageEncode    = "encode"
  StagePack      = "pack"
  StageInstall   = "install"
)

const (
  mappingPrefix  = "resource_mapping_"
  unsignedSuffix = "_unsigned.apk"
  treeDir        = "apk"
)

// Signer signs a rebuilt archive in place, it is an external tool.
type Signer interface {
  Sign(apkPath string, d policy.SignData) error
}

type Options struct {
  // 输入的apk
  Input string

  // 输出目录，成功后才出现
  OutDir string

  RulesPath   string
  MappingPath string

  // bbolt文件，没有指定MappingPath时从这里取上一次的mapping
  StorePath string

  // 解析manifest引用时优先的语言，比如zh-CN
  Locale string

  // 同时输出未签名的apk
  Zip bool

  Signer Signer

  // 不为nil时代替默认的策略，RulesPath和MappingPath仍然生效
  Config *policy.Config

  // 默认OpenZip
  Open func(path string) (Container, error)
}

type Result struct {
  Name string

  // 是否有resources.arsc
  HasTable bool

  Entries int
  Renamed int
  Files   int
  Loose   int

  Manifest *apk.ManifestMeta

  MappingPath string
  ZipPath     string
  TableSHA256 string

  Warnings []string
}

// Orchestrator rebuilds one container through a fixed sequence of stages.
// Every stage works on the complete output of the previous one, the first error stops the run
// and nothing is left in OutDir.
type Orchestrator struct {
  opts     Options
  pipeline *pipeline.Pipeline
}

func New(opts Options) *Orchestrator {
  o := &Orchestrator{opts: opts, pipeline: pipeline.New()}
  o.pipeline.
    AddLast(StageConfigure, stage(StageConfigure, (*job).configure)).
    AddLast(StageUnzip, stage(StageUnzip, (*job).unzip)).
    AddLast(StageProbe, stage(StageProbe, (*job).probe)).
    AddLast(StageDecode, stage(StageDecode, (*job).decode)).
    AddLast(StageCopyLoose, stage(StageCopyLoose, (*job).copyLoose)).
    AddLast(StagePolicy, stage(StagePolicy, (*job).remap)).
    AddLast(StageEncode, stage(StageEncode, (*job).encode)).
    AddLast(StagePack, stage(StagePack, (*job).pack)).
    AddLast(StageInstall, stage(StageInstall, (*job).install))
  return o
}

// Pipeline exposes the stages so callers can add hooks between them.
func (o *Orchestrator) Pipeline() *pipeline.Pipeline {
  return o.pipeline
}

func stage(name string, fn func(*job) error) pipeline.HandlerFunc {
  return func(data interface{}) error {
    base.Logger().Debug().Str("stage", name).Msg("enter")
    return fn(data.(*job))
  }
}

// Run rebuilds the container, it must not be called concurrently on the same Orchestrator.
func (o *Orchestrator) Run() (*Result, error) {
  if o.opts.Input == "" || o.opts.OutDir == "" {
    return nil, errors.Wrap(base.ErrInvalidArgument, "input and output are required")
  }
  name := filepath.Base(o.opts.Input)
  name = strings.TrimSuffix(name, filepath.Ext(name))
  j := &job{opts: &o.opts, result: &Result{Name: name}}
  defer j.cleanup()
  if e := o.pipeline.Run(j); e != nil {
    base.Logger().Error().Err(e).Str("input", o.opts.Input).Msg("rebuild failed")
    return nil, e
  }
  base.Logger().Info().
    Str("input", o.opts.Input).
    Str("out", o.opts.OutDir).
    Int("renamed", j.result.Renamed).
    Int("files", j.result.Files).
    Int("loose", j.result.Loose).
    Msg("rebuild done")
  return j.result, nil
}

// job is the state of one run.
type job struct {
  opts   *Options
  result *Result

  config *policy.Config
  engine *policy.Engine
  store  *policy.Store

  container Container
  entries   []*Entry
  methods   map[string]uint16

  // tmp下的src是解压目录，out是安装前的输出目录
  tmp    string
  srcDir string
  outDir string

  hasTable bool
  table    *apk.Table

  // 表中引用的文件路径
  referenced map[string]bool

  // 新路径 -> 原路径
  origin map[string]string
}

func (j *job) cleanup() {
  if j.container != nil {
    j.container.Close()
  }
  if j.store != nil {
    j.store.Close()
  }
  if j.tmp != "" {
    os.RemoveAll(j.tmp)
  }
}

func (j *job) warn(msg string) {
  j.result.Warnings = append(j.result.Warnings, msg)
  base.Logger().Warn().Msg(msg)
}

// configure builds the policy, every config error is reported before anything is written.
func (j *job) configure() error {
  c := j.opts.Config
  if c == nil {
    c = policy.NewConfig()
  }
  if j.opts.MappingPath != "" {
    if e := c.SetKeepMapping(j.opts.MappingPath); e != nil {
      return e
    }
  }
  if j.opts.RulesPath != "" {
    if e := c.LoadRules(j.opts.RulesPath); e != nil {
      return e
    }
  }
  if j.opts.StorePath != "" {
    s, e := policy.OpenStore(j.opts.StorePath)
    if e != nil {
      return e
    }
    j.store = s
    if c.Mapping == nil && c.UseKeepMapping {
      m, e := s.Load(j.result.Name)
      if e != nil {
        return e
      }
      if m != nil {
        c.SetMapping("store:"+j.result.Name, m)
        base.Logger().Info().Str("name", j.result.Name).Msg("prior mapping loaded from store")
      }
    }
  }
  j.config = c
  j.engine = policy.NewEngine(c)
  j.result.Warnings = append(j.result.Warnings, c.Warnings...)
  return nil
}

func (j *job) unzip() error {
  open := j.opts.Open
  if open == nil {
    open = func(path string) (Container, error) { return OpenZip(path) }
  }
  c, e := open(j.opts.Input)
  if e != nil {
    return e
  }
  j.container = c

  parent := filepath.Dir(filepath.Clean(j.opts.OutDir))
  if e = os.MkdirAll(parent, 0755); e != nil {
    return errors.Wrapf(e, "create %s", parent)
  }
  j.tmp, e = ioutil.TempDir(parent, "."+filepath.Base(j.opts.OutDir)+"-")
  if e != nil {
    return errors.Wrap(e, "create temp dir")
  }
  j.srcDir = filepath.Join(j.tmp, "src")
  j.outDir = filepath.Join(j.tmp, "out")
  if e = os.MkdirAll(filepath.Join(j.outDir, treeDir), 0755); e != nil {
    return errors.Wrap(e, "create output tree")
  }

  if j.entries, e = extract(c, j.srcDir); e != nil {
    return e
  }
  j.methods = make(map[string]uint16, len(j.entries))
  var size uint64
  for _, en := range j.entries {
    j.methods[en.Name] = en.Method
    size += en.Size
  }
  j.result.Entries = len(j.entries)
  base.Logger().Info().
    Str("input", j.opts.Input).
    Int("entries", len(j.entries)).
    Str("size", humanize.Bytes(size)).
    Msg("unzipped")
  return nil
}

// probe tells whether the container has a resource table, a container without one is not an error.
func (j *job) probe() error {
  _, j.hasTable = j.methods[tableEntry]
  j.result.HasTable = j.hasTable
  if !j.hasTable {
    e := base.MissingEntryf(StageProbe, "%s not in %s", tableEntry, j.opts.Input)
    base.Logger().Info().Err(e).Msg("no resources, skip table stages")
  }
  return nil
}

func (j *job) src(name string) string {
  return filepath.Join(j.srcDir, filepath.FromSlash(name))
}

func (j *job) tree(name string) string {
  return filepath.Join(j.outDir, treeDir, filepath.FromSlash(name))
}

func (j *job) decode() error {
  j.referenced = make(map[string]bool, 64)
  if j.hasTable {
    data, e := ioutil.ReadFile(j.src(tableEntry))
    if e != nil {
      return errors.Wrapf(e, "read %s", tableEntry)
    }
    if j.table, e = apk.ParseTable(data); e != nil {
      return e
    }
    j.table.Walk(func(_ *apk.Package, _ *apk.Type, _ int, en *apk.Entry) {
      if en.IsComplex() || en.Value.DataType != apk.TypeString {
        return
      }
      if s, ok := j.table.StrPool.Get(en.Value.Data); ok && strings.HasPrefix(s, "res/") {
        j.referenced[s] = true
      }
    })
    base.Logger().Info().
      Int("packages", len(j.table.Packages)).
      Int("files", len(j.referenced)).
      Str("size", humanize.Bytes(uint64(len(data)))).
      Msg("table decoded")
  }
  return j.decodeManifest()
}

// 清单只用来获取基本信息，不存在时跳过
func (j *job) decodeManifest() error {
  if _, ok := j.methods[manifestEntry]; !ok {
    return nil
  }
  data, e := ioutil.ReadFile(j.src(manifestEntry))
  if e != nil {
    return errors.Wrapf(e, "read %s", manifestEntry)
  }
  if apk.IsPlainXml(data) {
    return nil
  }
  d := apk.NewDecoder(j.table)
  if j.opts.Locale != "" {
    d.Locale = apk.ParseLocale(j.opts.Locale)
  }
  events, e := d.Decode(data)
  if e != nil {
    return e
  }
  meta := &apk.ManifestMeta{}
  apk.Broadcast(events, meta)
  j.result.Manifest = meta
  for _, w := range d.Warnings {
    j.result.Warnings = append(j.result.Warnings, w.String())
  }
  return nil
}

// copyLoose copies every file the table does not reference unchanged.
func (j *job) copyLoose() error {
  var size int64
  for _, en := range j.entries {
    if j.referenced[en.Name] || (j.hasTable && en.Name == tableEntry) {
      continue
    }
    n, e := file.Copy(j.src(en.Name), j.tree(en.Name))
    if e != nil {
      return errors.Wrapf(e, "copy %s", en.Name)
    }
    size += n
    j.result.Loose++
  }
  base.Logger().Info().Int("files", j.result.Loose).Str("size", humanize.Bytes(uint64(size))).Msg("loose files copied")
  return nil
}

// remap renames the table entries and copies every referenced file to its new path.
func (j *job) remap() error {
  j.origin = make(map[string]string, len(j.referenced))
  if !j.hasTable {
    return nil
  }
  plan := j.engine.Apply(j.table)
  j.result.Renamed = plan.Renamed

  paths := make([]string, 0, len(j.referenced))
  for k := range j.referenced {
    paths = append(paths, k)
  }
  sort.Strings(paths)
  var copies []string
  for _, path := range paths {
    newPath, ok := plan.Files[path]
    if !ok {
      newPath = path
    }
    if _, ok := j.methods[path]; !ok {
      j.warn("file " + path + " referenced by the table is not in the container")
      continue
    }
    // 新路径不能覆盖原样拷贝的文件或另一个被引用的文件
    if s, ok := j.origin[newPath]; ok {
      return base.PolicyConfigf(StagePolicy, "%s and %s both map to %s", s, path, newPath)
    }
    if j.isLoose(newPath) {
      return base.PolicyConfigf(StagePolicy, "%s maps to %s which is an unreferenced file of the container", path, newPath)
    }
    j.origin[newPath] = path
    copies = append(copies, newPath)
  }
  for _, newPath := range copies {
    path := j.origin[newPath]
    if _, e := file.Copy(j.src(path), j.tree(newPath)); e != nil {
      return errors.Wrapf(e, "copy %s", path)
    }
    if newPath != path {
      j.result.Files++
    }
  }
  return nil
}

func (j *job) isLoose(name string) bool {
  if j.hasTable && name == tableEntry {
    return true
  }
  _, ok := j.methods[name]
  return ok && !j.referenced[name]
}

func (j *job) encode() error {
  if !j.hasTable {
    return nil
  }
  data, e := j.table.Encode()
  if e != nil {
    return e
  }
  if e = file.Write(j.tree(tableEntry), data); e != nil {
    return errors.Wrapf(e, "write %s", tableEntry)
  }
  j.origin[tableEntry] = tableEntry
  if j.result.TableSHA256, e = file.BytesSHA256(data); e != nil {
    return e
  }

  name := mappingPrefix + j.result.Name + ".txt"
  f, e := os.Create(filepath.Join(j.outDir, name))
  if e != nil {
    return errors.Wrapf(e, "create %s", name)
  }
  _, e = j.engine.Mapping().WriteTo(f)
  if e1 := f.Close(); e == nil {
    e = e1
  }
  if e != nil {
    return errors.Wrapf(e, "write %s", name)
  }
  j.result.MappingPath = filepath.Join(j.opts.OutDir, name)
  base.Logger().Info().Str("size", humanize.Bytes(uint64(len(data)))).Str("sha256", j.result.TableSHA256).Msg("table encoded")
  return nil
}

// pack writes the rebuilt tree into an unsigned archive, keeping the original entry order.
func (j *job) pack() error {
  if !j.opts.Zip {
    return nil
  }
  files, e := file.List(filepath.Join(j.outDir, treeDir))
  if e != nil {
    return errors.Wrap(e, "list output")
  }
  order := make(map[string]int, len(j.entries))
  for i, en := range j.entries {
    order[en.Name] = i
  }
  originOf := func(name string) string {
    if s, ok := j.origin[name]; ok {
      return s
    }
    return name
  }
  sort.SliceStable(files, func(a, b int) bool {
    return order[originOf(files[a])] < order[originOf(files[b])]
  })

  zfs := make([]zipFile, 0, len(files))
  for _, name := range files {
    orig := originOf(name)
    method := j.engine.Compression(orig, j.methods[orig])
    if method != zip.Store {
      method = zip.Deflate
    }
    zfs = append(zfs, zipFile{name: name, path: j.tree(name), method: method})
  }
  name := j.result.Name + unsignedSuffix
  dst := filepath.Join(j.outDir, name)
  if e = writeZip(dst, zfs); e != nil {
    return e
  }
  j.result.ZipPath = filepath.Join(j.opts.OutDir, name)

  if j.config.UseSign {
    if j.opts.Signer == nil {
      j.warn("sign enabled but no signer given, the archive stays unsigned")
    } else if e = j.opts.Signer.Sign(dst, *j.config.Sign); e != nil {
      return errors.Wrap(e, "sign")
    }
  }
  if fi, e := os.Stat(dst); e == nil {
    base.Logger().Info().Str("path", j.result.ZipPath).Str("size", humanize.Bytes(uint64(fi.Size()))).Msg("archive written")
  }
  return nil
}

// install moves the finished output into place, replacing an older output.
// The older output is moved into the temp dir first and moved back when the rename fails.
func (j *job) install() error {
  old := ""
  if file.Exist(j.opts.OutDir) {
    old = filepath.Join(j.tmp, "old")
    if e := os.Rename(j.opts.OutDir, old); e != nil {
      return errors.Wrapf(e, "move %s aside", j.opts.OutDir)
    }
  }
  if e := os.Rename(j.outDir, j.opts.OutDir); e != nil {
    if old != "" {
      if e1 := os.Rename(old, j.opts.OutDir); e1 != nil {
        base.Logger().Error().Err(e1).Str("path", j.opts.OutDir).Msg("restore previous output")
      }
    }
    return errors.Wrapf(e, "install %s", j.opts.OutDir)
  }
  if j.store != nil && j.hasTable {
    if e := j.store.Save(j.result.Name, j.engine.Mapping()); e != nil {
      j.warn("save mapping to store: " + e.Error())
    }
  }
  return nil
}
