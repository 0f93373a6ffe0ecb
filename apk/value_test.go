package apk

import (
  "math"
  "testing"

  "github.com/stretchr/testify/assert"
)

func TestValueFormat(t *testing.T) {
  pool := NewStrPool(true, "hello")
  cases := []struct {
    v    Value
    want string
  }{
    {Value{DataType: TypeString, Data: 0}, "hello"},
    {Value{DataType: TypeString, Data: 7}, ""},
    {Value{DataType: TypeIntDec, Data: 0xFFFFFFFF}, "-1"},
    {Value{DataType: TypeIntHex, Data: 0x10}, "0x10"},
    {Value{DataType: TypeIntBoolean, Data: 0xFFFFFFFF}, "true"},
    {Value{DataType: TypeIntBoolean, Data: 0}, "false"},
    {Value{DataType: TypeReference, Data: 0x7F010002}, "@7f010002"},
    {Value{DataType: TypeReference, Data: 0}, "@null"},
    {Value{DataType: TypeAttribute, Data: 0x01010000}, "?01010000"},
    {Value{DataType: TypeFloat, Data: math.Float32bits(1.5)}, "1.5"},
    // 16dip: mantissa 16<<8, radix 0 (23p0), unit 1
    {Value{DataType: TypeDimension, Data: 16<<8 | 0<<4 | 1}, "16dip"},
    {Value{DataType: TypeIntColorARGB8, Data: 0xFF112233}, "#ff112233"},
    {Value{DataType: TypeIntColorRGB8, Data: 0xFF112233}, "#112233"},
  }
  for _, c := range cases {
    assert.Equal(t, c.want, c.v.Format(pool))
  }
}
