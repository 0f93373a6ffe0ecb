package apk

import (
  "testing"

  "github.com/stretchr/testify/assert"
)

func TestConfigLocale(t *testing.T) {
  c := NewConfig(Locale{"en", "US"})
  assert.Equal(t, Locale{"en", "US"}, c.Locale())
  assert.Equal(t, "en-rUS", c.String())
  assert.False(t, c.IsDefault())

  d := NewConfig(AnyLocale)
  assert.True(t, d.IsDefault())
  assert.Equal(t, "default", d.String())
}

func TestPackedLocale(t *testing.T) {
  packed := packLocale("fil", 'a')
  assert.NotZero(t, packed[0]&0x80)
  assert.Equal(t, "fil", unpackLocale(packed, 'a'))
  assert.Equal(t, "419", unpackLocale(packLocale("419", '0'), '0'))
  assert.Equal(t, "", unpackLocale([]byte{0, 0}, 'a'))
}
