package policy

import (
  "path/filepath"
  "testing"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
  s, e := OpenStore(filepath.Join(t.TempDir(), "mapping.db"))
  require.Nil(t, e)
  defer s.Close()

  m, e := s.Load("app.apk")
  require.Nil(t, e)
  assert.Nil(t, m)

  m = NewMapping()
  m.Put("com.app", "string", "app_name", "a")
  m.PutFile("res/drawable/icon.png", "r/drawable/a.png")
  require.Nil(t, s.Save("app.apk", m))

  m2, e := s.Load("app.apk")
  require.Nil(t, e)
  assert.Equal(t, m, m2)

  names, e := s.Names()
  require.Nil(t, e)
  assert.Equal(t, []string{"app.apk"}, names)
}
