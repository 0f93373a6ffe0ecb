package policy

import (
  "testing"

  "github.com/stretchr/testify/assert"
)

func TestShortName(t *testing.T) {
  assert.Equal(t, "a", shortName(0))
  assert.Equal(t, "z", shortName(25))
  assert.Equal(t, "aa", shortName(26))
  assert.Equal(t, "ab", shortName(27))
  assert.Equal(t, "zz", shortName(701))
  assert.Equal(t, "aaa", shortName(702))
}

func TestNameGenerator(t *testing.T) {
  g := NewNameGenerator("b")
  g.Reserve("c")
  assert.Equal(t, "a", g.Next())
  assert.Equal(t, "d", g.Next())

  seen := map[string]bool{}
  for i := 0; i < 26*30; i++ {
    s := g.Next()
    assert.False(t, seen[s], s)
    seen[s] = true
  }
  assert.False(t, seen["do"])
  assert.False(t, seen["if"])
  assert.False(t, seen["b"])
  assert.True(t, seen["dp"])
}

func TestPattern(t *testing.T) {
  p, e := compilePattern("app_*")
  assert.Nil(t, e)
  assert.True(t, p.match("app_name"))
  assert.True(t, p.match("app_"))
  assert.False(t, p.match("my_app_name"))

  p, _ = compilePattern("res/raw/?.ogg")
  assert.True(t, p.match("res/raw/a.ogg"))
  assert.False(t, p.match("res/raw/ab.ogg"))
  assert.False(t, p.match("res/raw/axogg"))
}
