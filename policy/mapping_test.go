package policy

import (
  "bytes"
  "strings"
  "testing"

  "github.com/kwf2030/apkres/base"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
)

func TestParseMapping(t *testing.T) {
  doc := `res path mapping:
    res/drawable/a.png -> res/drawable/b.png
res id mapping:
    com.app.R.string.app_name -> com.app.R.string.a
com.app.R.drawable.icon -> com.app.R.drawable.b

`
  m, e := ParseMapping(strings.NewReader(doc))
  require.Nil(t, e)
  assert.Equal(t, "a", m.Res["com.app"]["string"]["app_name"])
  assert.Equal(t, "b", m.Res["com.app"]["drawable"]["icon"])
  assert.Equal(t, map[string]string{"res/drawable/a.png": "res/drawable/b.png"}, m.Files)
  _, ok := m.Lookup("com.app", "drawable", "a.png")
  assert.False(t, ok)
  res, files := m.Len()
  assert.Equal(t, 2, res)
  assert.Equal(t, 1, files)
}

func TestParseMappingMissingMarker(t *testing.T) {
  _, e := ParseMapping(strings.NewReader("    com.app.string.app_name -> com.app.string.a\n"))
  assert.True(t, base.IsKind(e, base.KindPolicyConfig), "%v", e)

  _, e = ParseMapping(strings.NewReader("com.app.R.string -> a\n"))
  assert.True(t, base.IsKind(e, base.KindPolicyConfig), "%v", e)
}

func TestMappingWriteTo(t *testing.T) {
  m := NewMapping()
  m.Put("com.app", "string", "title", "b")
  m.Put("com.app", "string", "app_name", "a")
  m.Put("com.app", "drawable", "icon", "a")
  m.PutFile("res/drawable/icon.png", "r/drawable/a.png")

  var buf bytes.Buffer
  n, e := m.WriteTo(&buf)
  require.Nil(t, e)
  assert.Equal(t, int64(buf.Len()), n)
  assert.Equal(t, `res path mapping:
    res/drawable/icon.png -> r/drawable/a.png
res id mapping:
    com.app.R.drawable.icon -> com.app.R.drawable.a
    com.app.R.string.app_name -> com.app.R.string.a
    com.app.R.string.title -> com.app.R.string.b
`, buf.String())

  m2, e := ParseMapping(&buf)
  require.Nil(t, e)
  assert.Equal(t, m, m2)
}
