package rebuild

import (
  "archive/zip"
  "errors"
  "io/ioutil"
  "os"
  "path/filepath"
  "testing"

  "github.com/kwf2030/apkres/apk"
  "github.com/kwf2030/apkres/base"
  "github.com/kwf2030/apkres/pipeline"
  "github.com/kwf2030/apkres/policy"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
)

const none = 0xFFFFFFFF

type fixture struct {
  name   string
  data   []byte
  method uint16
}

func strValue(i uint32) apk.Value {
  return apk.Value{Size: 8, DataType: apk.TypeString, Data: i}
}

func newTable(t *testing.T) []byte {
  global := apk.NewStrPool(true, "res/drawable/icon.png", "Hello", "res/layout/main.xml")
  p := &apk.Package{
    Id:          0x7f,
    Name:        "com.app",
    TypeStrPool: apk.NewStrPool(false, "drawable", "string", "layout"),
    KeyStrPool:  apk.NewStrPool(true, "icon", "app_name", "main"),
  }
  p.Chunks = []apk.Chunk{
    p.TypeStrPool,
    p.KeyStrPool,
    &apk.TypeSpec{Id: 1, Flags: []uint32{0}},
    &apk.Type{Id: 1, Config: apk.NewConfig(apk.AnyLocale), Entries: []*apk.Entry{{Key: 0, Value: strValue(0)}}},
    &apk.TypeSpec{Id: 2, Flags: []uint32{0}},
    &apk.Type{Id: 2, Config: apk.NewConfig(apk.AnyLocale), Entries: []*apk.Entry{{Key: 1, Value: strValue(1)}}},
    &apk.TypeSpec{Id: 3, Flags: []uint32{0}},
    &apk.Type{Id: 3, Config: apk.NewConfig(apk.AnyLocale), Entries: []*apk.Entry{{Key: 2, Value: strValue(2)}}},
  }
  data, e := (&apk.Table{StrPool: global, Packages: []*apk.Package{p}, Chunks: []apk.Chunk{global, p}}).Encode()
  require.Nil(t, e)
  return data
}

func newManifest(t *testing.T) []byte {
  pool := apk.NewStrPool(false, "label", "android", "http://schemas.android.com/apk/res/android", "manifest", "package", "com.app", "application")
  node := func(line uint32) apk.XmlNode { return apk.XmlNode{LineNumber: line, Comment: none} }
  f := &apk.XmlFile{
    StrPool: pool,
    ResIds:  []uint32{0x01010001},
    Nodes: []apk.Chunk{
      &apk.XmlNamespace{XmlNode: node(1), Prefix: 1, Uri: 2},
      &apk.XmlElement{XmlNode: node(1), Ns: none, Name: 3, Attrs: []apk.XmlAttr{
        {Ns: none, Name: 4, RawValue: 5, Value: strValue(5)},
      }},
      &apk.XmlElement{XmlNode: node(2), Ns: none, Name: 6, Attrs: []apk.XmlAttr{
        {Ns: 2, Name: 0, RawValue: none, Value: apk.Value{Size: 8, DataType: apk.TypeReference, Data: 0x7f020000}},
      }},
      &apk.XmlEndElement{XmlNode: node(2), Ns: none, Name: 6},
      &apk.XmlEndElement{XmlNode: node(3), Ns: none, Name: 3},
      &apk.XmlNamespace{XmlNode: node(3), End: true, Prefix: 1, Uri: 2},
    },
  }
  data, e := f.Encode()
  require.Nil(t, e)
  return data
}

func apkFixtures(t *testing.T) []fixture {
  return []fixture{
    {"AndroidManifest.xml", newManifest(t), zip.Deflate},
    {"classes.dex", []byte("dex"), zip.Store},
    {"resources.arsc", newTable(t), zip.Store},
    {"res/drawable/icon.png", []byte("png"), zip.Store},
    {"res/layout/main.xml", []byte("xml"), zip.Deflate},
    {"res/raw/loose.txt", []byte("loose"), zip.Deflate},
    {"assets/a.txt", []byte("asset"), zip.Store},
  }
}

func writeApk(t *testing.T, fixtures []fixture) string {
  path := filepath.Join(t.TempDir(), "app.apk")
  f, e := os.Create(path)
  require.Nil(t, e)
  zw := zip.NewWriter(f)
  for _, fx := range fixtures {
    w, e := zw.CreateHeader(&zip.FileHeader{Name: fx.name, Method: fx.method})
    require.Nil(t, e)
    _, e = w.Write(fx.data)
    require.Nil(t, e)
  }
  require.Nil(t, zw.Close())
  require.Nil(t, f.Close())
  return path
}

func readFile(t *testing.T, path string) string {
  data, e := ioutil.ReadFile(path)
  require.Nil(t, e)
  return string(data)
}

const wantMapping = `res path mapping:
    res/drawable/icon.png -> r/drawable/a.png
    res/layout/main.xml -> r/layout/a.xml
res id mapping:
    com.app.R.drawable.icon -> com.app.R.drawable.a
    com.app.R.layout.main -> com.app.R.layout.a
    com.app.R.string.app_name -> com.app.R.string.a
`

func TestRebuild(t *testing.T) {
  c := policy.NewConfig()
  require.Nil(t, c.ParseRules([]byte("issues:\n  - id: compress\n    isactive: true\n    items:\n      - name: issue\n        value: assets/*\n"), "yaml"))
  out := filepath.Join(t.TempDir(), "out")
  r, e := New(Options{Input: writeApk(t, apkFixtures(t)), OutDir: out, Zip: true, Config: c}).Run()
  require.Nil(t, e)

  assert.Equal(t, "app", r.Name)
  assert.True(t, r.HasTable)
  assert.Equal(t, 7, r.Entries)
  assert.Equal(t, 3, r.Renamed)
  assert.Equal(t, 2, r.Files)
  assert.Equal(t, 4, r.Loose)
  assert.Len(t, r.TableSHA256, 64)
  assert.Empty(t, r.Warnings)
  require.NotNil(t, r.Manifest)
  assert.Equal(t, "com.app", r.Manifest.Package)
  assert.Equal(t, "Hello", r.Manifest.Label)

  tree := filepath.Join(out, "apk")
  assert.Equal(t, "png", readFile(t, filepath.Join(tree, "r", "drawable", "a.png")))
  assert.Equal(t, "xml", readFile(t, filepath.Join(tree, "r", "layout", "a.xml")))
  assert.Equal(t, "loose", readFile(t, filepath.Join(tree, "res", "raw", "loose.txt")))
  assert.Equal(t, "asset", readFile(t, filepath.Join(tree, "assets", "a.txt")))
  assert.Equal(t, "dex", readFile(t, filepath.Join(tree, "classes.dex")))
  _, e = os.Stat(filepath.Join(tree, "res", "drawable", "icon.png"))
  assert.True(t, os.IsNotExist(e))

  table, e := apk.ParseTable([]byte(readFile(t, filepath.Join(tree, "resources.arsc"))))
  require.Nil(t, e)
  assert.Equal(t, "drawable/a", table.ResourceName(0x7f010000))
  assert.Equal(t, "string/a", table.ResourceName(0x7f020000))
  v, ok := table.Resolve(0x7f030000, apk.AnyLocale)
  require.True(t, ok)
  assert.Equal(t, "r/layout/a.xml", v.Entry.Value.Format(table.StrPool))

  assert.Equal(t, filepath.Join(out, "resource_mapping_app.txt"), r.MappingPath)
  assert.Equal(t, wantMapping, readFile(t, r.MappingPath))

  assert.Equal(t, filepath.Join(out, "app_unsigned.apk"), r.ZipPath)
  zr, e := zip.OpenReader(r.ZipPath)
  require.Nil(t, e)
  defer zr.Close()
  var names []string
  methods := map[string]uint16{}
  for _, f := range zr.File {
    names = append(names, f.Name)
    methods[f.Name] = f.Method
  }
  assert.Equal(t, []string{
    "AndroidManifest.xml", "classes.dex", "resources.arsc", "r/drawable/a.png",
    "r/layout/a.xml", "res/raw/loose.txt", "assets/a.txt",
  }, names)
  assert.Equal(t, map[string]uint16{
    "AndroidManifest.xml": zip.Deflate,
    "classes.dex":         zip.Store,
    "resources.arsc":      zip.Store,
    "r/drawable/a.png":    zip.Store,
    "r/layout/a.xml":      zip.Deflate,
    "res/raw/loose.txt":   zip.Deflate,
    "assets/a.txt":        zip.Deflate,
  }, methods)
}

func TestRebuildResourceLess(t *testing.T) {
  in := writeApk(t, []fixture{
    {"classes.dex", []byte("dex"), zip.Deflate},
    {"assets/a.txt", []byte("asset"), zip.Store},
  })
  out := filepath.Join(t.TempDir(), "out")
  r, e := New(Options{Input: in, OutDir: out}).Run()
  require.Nil(t, e)
  assert.False(t, r.HasTable)
  assert.Equal(t, 0, r.Renamed)
  assert.Equal(t, 0, r.Files)
  assert.Equal(t, 2, r.Loose)
  assert.Empty(t, r.MappingPath)
  assert.Empty(t, r.TableSHA256)
  assert.Nil(t, r.Manifest)

  assert.Equal(t, "asset", readFile(t, filepath.Join(out, "apk", "assets", "a.txt")))
  _, e = os.Stat(filepath.Join(out, "apk", "resources.arsc"))
  assert.True(t, os.IsNotExist(e))
  _, e = os.Stat(filepath.Join(out, "resource_mapping_app.txt"))
  assert.True(t, os.IsNotExist(e))
}

func TestRebuildPolicyError(t *testing.T) {
  bad := filepath.Join(t.TempDir(), "mapping.txt")
  require.Nil(t, ioutil.WriteFile(bad, []byte("res id mapping:\n    foo -> bar\n"), 0644))
  parent := t.TempDir()
  _, e := New(Options{Input: writeApk(t, apkFixtures(t)), OutDir: filepath.Join(parent, "out"), MappingPath: bad}).Run()
  assert.True(t, base.IsKind(e, base.KindPolicyConfig), "%v", e)
  fis, e := ioutil.ReadDir(parent)
  require.Nil(t, e)
  assert.Empty(t, fis)
}

func TestRebuildStructuralError(t *testing.T) {
  fixtures := apkFixtures(t)
  fixtures[2].data = fixtures[2].data[:len(fixtures[2].data)-4]
  parent := t.TempDir()
  _, e := New(Options{Input: writeApk(t, fixtures), OutDir: filepath.Join(parent, "out")}).Run()
  assert.True(t, base.IsKind(e, base.KindStructural), "%v", e)
  fis, e := ioutil.ReadDir(parent)
  require.Nil(t, e)
  assert.Empty(t, fis)
}

// 最后一步之前失败时输出目录不存在，临时目录被删除
func TestRebuildNothingInstalledOnFailure(t *testing.T) {
  boom := errors.New("boom")
  parent := t.TempDir()
  out := filepath.Join(parent, "out")
  o := New(Options{Input: writeApk(t, apkFixtures(t)), OutDir: out, Zip: true})
  o.Pipeline().AddBefore("boom", pipeline.HandlerFunc(func(interface{}) error { return boom }), StageInstall)
  assert.Equal(t, []string{
    StageConfigure, StageUnzip, StageProbe, StageDecode, StageCopyLoose,
    StagePolicy, StageEncode, StagePack, "boom", StageInstall,
  }, o.Pipeline().Names())

  _, e := o.Run()
  assert.Equal(t, boom, e)
  fis, e := ioutil.ReadDir(parent)
  require.Nil(t, e)
  assert.Empty(t, fis)
}

func TestRebuildKeepRootCollision(t *testing.T) {
  fixtures := append(apkFixtures(t), fixture{"res/drawable/a.png", []byte("other"), zip.Store})
  c := policy.NewConfig()
  c.KeepRoot = true
  parent := t.TempDir()
  _, e := New(Options{Input: writeApk(t, fixtures), OutDir: filepath.Join(parent, "out"), Config: c}).Run()
  assert.True(t, base.IsKind(e, base.KindPolicyConfig), "%v", e)
  fis, e := ioutil.ReadDir(parent)
  require.Nil(t, e)
  assert.Empty(t, fis)

  // 没有冲突时保留res目录
  c = policy.NewConfig()
  c.KeepRoot = true
  out := filepath.Join(parent, "out")
  _, e = New(Options{Input: writeApk(t, apkFixtures(t)), OutDir: out, Config: c}).Run()
  require.Nil(t, e)
  assert.Equal(t, "png", readFile(t, filepath.Join(out, "apk", "res", "drawable", "a.png")))
}

func TestRebuildReplacesOutput(t *testing.T) {
  out := filepath.Join(t.TempDir(), "out")
  require.Nil(t, os.MkdirAll(out, 0755))
  require.Nil(t, ioutil.WriteFile(filepath.Join(out, "stale.txt"), []byte("stale"), 0644))

  _, e := New(Options{Input: writeApk(t, apkFixtures(t)), OutDir: out}).Run()
  require.Nil(t, e)
  _, e = os.Stat(filepath.Join(out, "stale.txt"))
  assert.True(t, os.IsNotExist(e))
  assert.Equal(t, "dex", readFile(t, filepath.Join(out, "apk", "classes.dex")))
}

// 安装失败时之前的输出保持不变
func TestRebuildKeepsOutputWhenInstallFails(t *testing.T) {
  parent := t.TempDir()
  out := filepath.Join(parent, "out")
  require.Nil(t, os.MkdirAll(out, 0755))
  require.Nil(t, ioutil.WriteFile(filepath.Join(out, "prev.txt"), []byte("prev"), 0644))

  o := New(Options{Input: writeApk(t, apkFixtures(t)), OutDir: out})
  o.Pipeline().AddBefore("lose-output", pipeline.HandlerFunc(func(data interface{}) error {
    return os.RemoveAll(data.(*job).outDir)
  }), StageInstall)
  _, e := o.Run()
  require.NotNil(t, e)

  assert.Equal(t, "prev", readFile(t, filepath.Join(out, "prev.txt")))
  fis, e := ioutil.ReadDir(parent)
  require.Nil(t, e)
  require.Len(t, fis, 1)
  assert.Equal(t, "out", fis[0].Name())
}

func TestRebuildStore(t *testing.T) {
  in := writeApk(t, apkFixtures(t))
  dir := t.TempDir()
  store := filepath.Join(dir, "mapping.db")

  r1, e := New(Options{Input: in, OutDir: filepath.Join(dir, "out1"), StorePath: store}).Run()
  require.Nil(t, e)
  r2, e := New(Options{Input: in, OutDir: filepath.Join(dir, "out2"), StorePath: store}).Run()
  require.Nil(t, e)
  assert.Equal(t, readFile(t, r1.MappingPath), readFile(t, r2.MappingPath))
  assert.Equal(t, r1.TableSHA256, r2.TableSHA256)

  s, e := policy.OpenStore(store)
  require.Nil(t, e)
  defer s.Close()
  names, e := s.Names()
  require.Nil(t, e)
  assert.Equal(t, []string{"app"}, names)
}

type fakeSigner struct {
  path string
  data policy.SignData
}

func (s *fakeSigner) Sign(apkPath string, d policy.SignData) error {
  s.path, s.data = apkPath, d
  return nil
}

func TestRebuildSign(t *testing.T) {
  dir := t.TempDir()
  ks := filepath.Join(dir, "release.keystore")
  require.Nil(t, ioutil.WriteFile(ks, []byte("key"), 0600))
  c := policy.NewConfig()
  require.Nil(t, c.SetSignData(policy.SignData{Path: ks, Alias: "release"}))

  signer := &fakeSigner{}
  _, e := New(Options{Input: writeApk(t, apkFixtures(t)), OutDir: filepath.Join(dir, "out"), Zip: true, Config: c, Signer: signer}).Run()
  require.Nil(t, e)
  assert.Equal(t, "app_unsigned.apk", filepath.Base(signer.path))
  assert.Equal(t, "release", signer.data.Alias)

  // 没有签名工具时只给出警告
  c2 := policy.NewConfig()
  require.Nil(t, c2.SetSignData(policy.SignData{Path: ks}))
  r, e := New(Options{Input: writeApk(t, apkFixtures(t)), OutDir: filepath.Join(dir, "out2"), Zip: true, Config: c2}).Run()
  require.Nil(t, e)
  assert.Len(t, r.Warnings, 1)
}

func TestSafeName(t *testing.T) {
  for _, s := range []string{"a", "res/a.png", "META-INF/MANIFEST.MF"} {
    assert.True(t, safeName(s), s)
  }
  for _, s := range []string{"", "/etc/passwd", "../a", "res/../../a", `res\a`, "res/./a", "res//a"} {
    assert.False(t, safeName(s), s)
  }
}
