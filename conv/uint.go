package conv

import (
  "encoding/binary"
)

func Uint32ToBytesL(i uint32) []byte {
  b := make([]byte, 4)
  binary.LittleEndian.PutUint32(b, i)
  return b
}

func Uint16ToBytesL(i uint16) []byte {
  b := make([]byte, 2)
  binary.LittleEndian.PutUint16(b, i)
  return b
}

func BytesToUint32L(data []byte) uint32 {
  return binary.LittleEndian.Uint32(data)
}

func BytesToUint16L(data []byte) uint16 {
  return binary.LittleEndian.Uint16(data)
}

func PutUint32L(data []byte, i uint32) {
  binary.LittleEndian.PutUint32(data, i)
}

func PutUint16L(data []byte, i uint16) {
  binary.LittleEndian.PutUint16(data, i)
}
