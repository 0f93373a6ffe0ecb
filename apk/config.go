package apk

import (
  "fmt"
  "strings"

  "github.com/kwf2030/apkres/base"
  "github.com/kwf2030/apkres/conv"
)

// ResTable_config中各字段的偏移
const (
  cfgMcc        = 4
  cfgMnc        = 6
  cfgLanguage   = 8
  cfgCountry    = 10
  cfgDensity    = 14
  cfgSdkVersion = 24
  cfgMinSize    = 28
)

// Config is the qualifier vector of a Type chunk. Only the locale is interpreted,
// everything else passes through untouched in Raw.
type Config struct {
  // 整个ResTable_config，前4个字节是它自己的大小
  Raw []byte
}

// NewConfig builds a 64-byte configuration carrying only a locale.
func NewConfig(l Locale) Config {
  raw := make([]byte, 64)
  conv.PutUint32L(raw, 64)
  copy(raw[cfgLanguage:cfgLanguage+2], packLocale(l.Language, 'a'))
  copy(raw[cfgCountry:cfgCountry+2], packLocale(l.Region, '0'))
  return Config{Raw: raw}
}

func parseConfig(r *conv.Reader, limit int) (Config, error) {
  const op = "decode config"
  start := r.Pos()
  size, e := r.ReadUint32()
  if e != nil {
    return Config{}, base.Structural(op, e)
  }
  if size < cfgMinSize || start+int(size) > limit {
    return Config{}, base.Structuralf(op, "config at 0x%x has size %d, header allows %d", start, size, limit-start)
  }
  raw, e := r.Slice(start, start+int(size))
  if e != nil {
    return Config{}, base.Structural(op, e)
  }
  cp := make([]byte, len(raw))
  copy(cp, raw)
  return Config{Raw: cp}, nil
}

func (c Config) Size() int {
  return len(c.Raw)
}

func (c Config) u16(off int) uint16 {
  if off+2 > len(c.Raw) {
    return 0
  }
  return conv.BytesToUint16L(c.Raw[off:])
}

func (c Config) Mcc() uint16        { return c.u16(cfgMcc) }
func (c Config) Mnc() uint16        { return c.u16(cfgMnc) }
func (c Config) Density() uint16    { return c.u16(cfgDensity) }
func (c Config) SdkVersion() uint16 { return c.u16(cfgSdkVersion) }

func (c Config) Language() string {
  if len(c.Raw) < cfgLanguage+2 {
    return ""
  }
  return unpackLocale(c.Raw[cfgLanguage:cfgLanguage+2], 'a')
}

func (c Config) Region() string {
  if len(c.Raw) < cfgCountry+2 {
    return ""
  }
  return unpackLocale(c.Raw[cfgCountry:cfgCountry+2], '0')
}

func (c Config) Locale() Locale {
  return Locale{Language: c.Language(), Region: c.Region()}
}

// IsDefault reports whether every qualifier is unset.
func (c Config) IsDefault() bool {
  for _, b := range c.Raw[4:] {
    if b != 0 {
      return false
    }
  }
  return true
}

var densities = map[uint16]string{
  120:    "ldpi",
  160:    "mdpi",
  213:    "tvdpi",
  240:    "hdpi",
  320:    "xhdpi",
  480:    "xxhdpi",
  640:    "xxxhdpi",
  0xFFFE: "anydpi",
  0xFFFF: "nodpi",
}

// String renders the qualifiers this package understands, e.g. "en-rUS-hdpi-v21".
func (c Config) String() string {
  var parts []string
  if v := c.Mcc(); v != 0 {
    parts = append(parts, fmt.Sprintf("mcc%d", v))
  }
  if v := c.Mnc(); v != 0 {
    parts = append(parts, fmt.Sprintf("mnc%d", v))
  }
  if l := c.Language(); l != "" {
    parts = append(parts, l)
  }
  if r := c.Region(); r != "" {
    parts = append(parts, "r"+r)
  }
  if v := c.Density(); v != 0 {
    if name, ok := densities[v]; ok {
      parts = append(parts, name)
    } else {
      parts = append(parts, fmt.Sprintf("%ddpi", v))
    }
  }
  if v := c.SdkVersion(); v != 0 {
    parts = append(parts, fmt.Sprintf("v%d", v))
  }
  if len(parts) == 0 {
    return "default"
  }
  return strings.Join(parts, "-")
}

// 2个字节，最高位为1时是压缩的3个字母（每个5位）
func unpackLocale(b []byte, zero byte) string {
  if b[0] == 0 && b[1] == 0 {
    return ""
  }
  if b[0]&0x80 != 0 {
    first := b[1] & 0x1F
    second := (b[1]&0xE0)>>5 | (b[0]&0x03)<<3
    third := (b[0] & 0x7C) >> 2
    return string([]byte{first + zero, second + zero, third + zero})
  }
  if b[1] == 0 {
    return string(b[:1])
  }
  return string(b)
}

func packLocale(s string, zero byte) []byte {
  switch len(s) {
  case 2:
    return []byte{s[0], s[1]}
  case 3:
    first := s[0] - zero
    second := s[1] - zero
    third := s[2] - zero
    return []byte{0x80 | third<<2 | second>>3, second<<5 | first}
  }
  return []byte{0, 0}
}
