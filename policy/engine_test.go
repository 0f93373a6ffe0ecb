package policy

import (
  "archive/zip"
  "bytes"
  "testing"

  "github.com/kwf2030/apkres/apk"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
)

const (
  idIcon    = apk.ResId(0x7f010000)
  idLogo    = apk.ResId(0x7f010001)
  idAppName = apk.ResId(0x7f020000)
  idTitle   = apk.ResId(0x7f020001)
  idMain    = apk.ResId(0x7f030000)
)

func strValue(i uint32) apk.Value {
  return apk.Value{Size: 8, DataType: apk.TypeString, Data: i}
}

func newTable(t *testing.T) *apk.Table {
  return newTableWithTitle(t, 3)
}

// title是字符串资源，值是全局池中的第title个字符串
func newTableWithTitle(t *testing.T, title uint32) *apk.Table {
  global := apk.NewStrPool(true, "res/drawable/icon.png", "res/drawable-hdpi/logo.9.png", "Hello", "res/x/title.txt", "res/layout/main.xml")
  p := &apk.Package{
    Id:          0x7f,
    Name:        "com.app",
    TypeStrPool: apk.NewStrPool(false, "drawable", "string", "layout"),
    KeyStrPool:  apk.NewStrPool(true, "icon", "logo", "app_name", "title", "main"),
  }
  p.Chunks = []apk.Chunk{
    p.TypeStrPool,
    p.KeyStrPool,
    &apk.TypeSpec{Id: 1, Flags: []uint32{0, 0}},
    &apk.Type{Id: 1, Config: apk.NewConfig(apk.AnyLocale), Entries: []*apk.Entry{{Key: 0, Value: strValue(0)}, nil}},
    &apk.Type{Id: 1, Config: apk.NewConfig(apk.AnyLocale), Entries: []*apk.Entry{nil, {Key: 1, Value: strValue(1)}}},
    &apk.TypeSpec{Id: 2, Flags: []uint32{0, 0}},
    &apk.Type{Id: 2, Config: apk.NewConfig(apk.AnyLocale), Entries: []*apk.Entry{{Key: 2, Value: strValue(2)}, {Key: 3, Value: strValue(title)}}},
    &apk.TypeSpec{Id: 3, Flags: []uint32{0}},
    &apk.Type{Id: 3, Config: apk.NewConfig(apk.AnyLocale), Entries: []*apk.Entry{{Key: 4, Value: strValue(4)}}},
  }
  data, e := (&apk.Table{StrPool: global, Packages: []*apk.Package{p}, Chunks: []apk.Chunk{global, p}}).Encode()
  require.Nil(t, e)
  table, e := apk.ParseTable(data)
  require.Nil(t, e)
  return table
}

func whitelistConfig(t *testing.T) *Config {
  c := NewConfig()
  require.Nil(t, c.ParseRules([]byte(`
issues:
  - id: whitelist
    isactive: true
    items:
      - name: issue
        value: com.app.R.string.app_*
  - id: compress
    isactive: true
    items:
      - name: issue
        value: "*.png"
`), "yaml"))
  return c
}

func resolvedPath(table *apk.Table, id apk.ResId) string {
  v, _ := table.Resolve(id, apk.AnyLocale)
  return v.Entry.Value.Format(table.StrPool)
}

func TestEngineApply(t *testing.T) {
  table := newTable(t)
  en := NewEngine(whitelistConfig(t))
  plan := en.Apply(table)
  assert.Equal(t, 4, plan.Renamed)

  assert.Equal(t, "drawable/a", table.ResourceName(idIcon))
  assert.Equal(t, "drawable/b", table.ResourceName(idLogo))
  assert.Equal(t, "string/app_name", table.ResourceName(idAppName))
  assert.Equal(t, "string/a", table.ResourceName(idTitle))
  assert.Equal(t, "layout/a", table.ResourceName(idMain))

  assert.Equal(t, "r/drawable/a.png", resolvedPath(table, idIcon))
  assert.Equal(t, "r/drawable-hdpi/b.9.png", resolvedPath(table, idLogo))
  assert.Equal(t, "r/layout/a.xml", resolvedPath(table, idMain))
  // 字符串资源的值不是文件
  assert.Equal(t, "res/x/title.txt", resolvedPath(table, idTitle))
  assert.Equal(t, map[string]string{
    "res/drawable/icon.png":        "r/drawable/a.png",
    "res/drawable-hdpi/logo.9.png": "r/drawable-hdpi/b.9.png",
    "res/layout/main.xml":          "r/layout/a.xml",
  }, plan.Files)

  m := en.Mapping()
  s, _ := m.Lookup("com.app", "string", "title")
  assert.Equal(t, "a", s)
  _, ok := m.Lookup("com.app", "string", "app_name")
  assert.False(t, ok)

  assert.Equal(t, uint16(zip.Deflate), en.Compression("res/drawable/icon.png", zip.Store))
  assert.Equal(t, uint16(zip.Store), en.Compression("res/raw/a.ogg", zip.Store))
}

func TestEngineStable(t *testing.T) {
  run := func(prior *Mapping) (*apk.Table, *Mapping) {
    c := whitelistConfig(t)
    if prior != nil {
      c.SetMapping("prior", prior)
    }
    en := NewEngine(c)
    table := newTable(t)
    en.Apply(table)
    return table, en.Mapping()
  }

  t1, m1 := run(nil)
  var buf bytes.Buffer
  _, e := m1.WriteTo(&buf)
  require.Nil(t, e)
  prior, e := ParseMapping(&buf)
  require.Nil(t, e)

  t2, m2 := run(prior)
  t3, _ := run(prior)
  for _, id := range []apk.ResId{idIcon, idLogo, idAppName, idTitle, idMain} {
    assert.Equal(t, t1.ResourceName(id), t2.ResourceName(id))
    assert.Equal(t, t2.ResourceName(id), t3.ResourceName(id))
    assert.Equal(t, resolvedPath(t1, id), resolvedPath(t2, id))
  }
  assert.Equal(t, m1, m2)
}

func TestEnginePriorMapping(t *testing.T) {
  prior := NewMapping()
  prior.Put("com.app", "drawable", "logo", "a")
  prior.PutFile("res/layout/main.xml", "r/l/m.xml")
  c := whitelistConfig(t)
  c.SetMapping("prior", prior)
  en := NewEngine(c)
  table := newTable(t)
  en.Apply(table)

  // icon不能再用a
  assert.Equal(t, "drawable/b", table.ResourceName(idIcon))
  assert.Equal(t, "drawable/a", table.ResourceName(idLogo))
  assert.Equal(t, "r/drawable/b.png", resolvedPath(table, idIcon))
  assert.Equal(t, "r/layout/m.xml", resolvedPath(table, idMain))
  assert.Equal(t, "r/l/m.xml", en.Mapping().Files["res/layout/main.xml"])
}

func TestEngineKeepRoot(t *testing.T) {
  c := NewConfig()
  c.KeepRoot = true
  en := NewEngine(c)
  assert.Equal(t, "res/drawable/a.png", en.FilePath("res/drawable/icon.png", "a"))
  assert.Equal(t, "assets/x.png", en.FilePath("assets/x.png", "a"))
  assert.Equal(t, "res/raw/b", en.FilePath("res/raw/noext", "b"))
}

func TestEngineApplySharedString(t *testing.T) {
  // string/title与drawable/icon共用全局池中的同一个字符串
  table := newTableWithTitle(t, 0)
  poolLen := table.StrPool.Len()
  en := NewEngine(whitelistConfig(t))
  plan := en.Apply(table)

  assert.Equal(t, "r/drawable/a.png", resolvedPath(table, idIcon))
  assert.Equal(t, "res/drawable/icon.png", resolvedPath(table, idTitle))
  assert.Equal(t, "r/drawable/a.png", plan.Files["res/drawable/icon.png"])
  s, _ := table.StrPool.Get(0)
  assert.Equal(t, "res/drawable/icon.png", s)
  // 每个新路径只追加一次
  assert.Equal(t, poolLen+3, table.StrPool.Len())

  data, e := table.Encode()
  require.Nil(t, e)
  t1, e := apk.ParseTable(data)
  require.Nil(t, e)
  assert.Equal(t, "r/drawable/a.png", resolvedPath(t1, idIcon))
  assert.Equal(t, "res/drawable/icon.png", resolvedPath(t1, idTitle))
}
