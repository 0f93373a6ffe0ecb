package apk

import (
  "fmt"
  "math"
  "strconv"

  "github.com/kwf2030/apkres/base"
  "github.com/kwf2030/apkres/conv"
)

// Res_value数据类型
const (
  TypeNull             = 0x00
  TypeReference        = 0x01
  TypeAttribute        = 0x02
  TypeString           = 0x03
  TypeFloat            = 0x04
  TypeDimension        = 0x05
  TypeFraction         = 0x06
  TypeDynamicReference = 0x07
  TypeDynamicAttribute = 0x08
  TypeIntDec           = 0x10
  TypeIntHex           = 0x11
  TypeIntBoolean       = 0x12
  TypeIntColorARGB8    = 0x1C
  TypeIntColorRGB8     = 0x1D
  TypeIntColorARGB4    = 0x1E
  TypeIntColorRGB4     = 0x1F
)

const valueSize = 8

// Value is a typed 32-bit datum (Res_value).
type Value struct {
  // 大小，通常是8
  Size uint16

  Res0 uint8

  DataType uint8

  // 数据，TypeString时是全局字符串池的索引
  Data uint32
}

func readValue(r *conv.Reader) (Value, error) {
  const op = "decode value"
  var v Value
  var e error
  if v.Size, e = r.ReadUint16(); e != nil {
    return v, base.Structural(op, e)
  }
  if v.Res0, e = r.ReadUint8(); e != nil {
    return v, base.Structural(op, e)
  }
  if v.DataType, e = r.ReadUint8(); e != nil {
    return v, base.Structural(op, e)
  }
  if v.Data, e = r.ReadUint32(); e != nil {
    return v, base.Structural(op, e)
  }
  if v.Size < valueSize {
    return v, base.Structuralf(op, "value size %d at 0x%x", v.Size, r.Pos()-valueSize)
  }
  if e = r.Skip(int(v.Size) - valueSize); e != nil {
    return v, base.Structural(op, e)
  }
  return v, nil
}

func (v Value) writeTo(w *conv.Writer) {
  size := v.Size
  if size < valueSize {
    size = valueSize
  }
  w.WriteUint16(size)
  w.WriteUint8(v.Res0)
  w.WriteUint8(v.DataType)
  w.WriteUint32(v.Data)
  for i := valueSize; i < int(size); i++ {
    w.WriteUint8(0)
  }
}

func (v Value) encodedSize() int {
  if v.Size < valueSize {
    return valueSize
  }
  return int(v.Size)
}

var (
  dimensionUnits = []string{"px", "dip", "sp", "pt", "in", "mm"}
  fractionUnits  = []string{"%", "%p"}
  radixMults     = []float64{1.0 / (1 << 8), 1.0 / (1 << 15), 1.0 / (1 << 23), 1.0 / (1 << 31)}
)

// complex数据：高24位是尾数，4-5位是基数，低4位是单位
func complexToFloat(data uint32) float64 {
  mantissa := float64(int32(data & 0xFFFFFF00))
  return mantissa * radixMults[(data>>4)&0x3]
}

func formatFloat(f float64) string {
  return strconv.FormatFloat(f, 'g', -1, 32)
}

// Format renders the value as text. pool resolves TypeString, it may be nil.
func (v Value) Format(pool *StrPool) string {
  switch v.DataType {
  case TypeNull:
    return ""
  case TypeReference, TypeDynamicReference:
    if v.Data == 0 {
      return "@null"
    }
    return fmt.Sprintf("@%08x", v.Data)
  case TypeAttribute, TypeDynamicAttribute:
    return fmt.Sprintf("?%08x", v.Data)
  case TypeString:
    if s, ok := pool.Get(v.Data); ok {
      return s
    }
    return ""
  case TypeFloat:
    return formatFloat(float64(math.Float32frombits(v.Data)))
  case TypeDimension:
    unit := v.Data & 0xF
    if int(unit) < len(dimensionUnits) {
      return formatFloat(complexToFloat(v.Data)) + dimensionUnits[unit]
    }
  case TypeFraction:
    unit := v.Data & 0xF
    if int(unit) < len(fractionUnits) {
      return formatFloat(complexToFloat(v.Data)*100) + fractionUnits[unit]
    }
  case TypeIntDec:
    return strconv.Itoa(int(int32(v.Data)))
  case TypeIntHex:
    return fmt.Sprintf("0x%x", v.Data)
  case TypeIntBoolean:
    if v.Data == 0 {
      return "false"
    }
    return "true"
  case TypeIntColorARGB8, TypeIntColorARGB4:
    return fmt.Sprintf("#%08x", v.Data)
  case TypeIntColorRGB8, TypeIntColorRGB4:
    return fmt.Sprintf("#%06x", v.Data&0xFFFFFF)
  }
  return fmt.Sprintf("0x%08x", v.Data)
}
