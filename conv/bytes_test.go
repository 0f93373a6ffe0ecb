package conv

import (
  "testing"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
)

func TestReaderLittleEndian(t *testing.T) {
  r := NewReader([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})
  v8, e := r.ReadUint8()
  require.NoError(t, e)
  assert.Equal(t, uint8(0x01), v8)
  v16, e := r.ReadUint16()
  require.NoError(t, e)
  assert.Equal(t, uint16(0x0302), v16)
  v32, e := r.ReadUint32()
  require.NoError(t, e)
  assert.Equal(t, uint32(0x07060504), v32)
  assert.Equal(t, 0, r.Len())
}

func TestReaderShortBuffer(t *testing.T) {
  r := NewReader([]byte{0x01, 0x02, 0x03})
  _, e := r.ReadUint32()
  var sb *ShortBufferError
  require.ErrorAs(t, e, &sb)
  assert.Equal(t, 4, sb.Want)
  assert.Equal(t, 3, sb.Have)
  // a failed read does not move
  assert.Equal(t, 0, r.Pos())

  _, e = r.Slice(2, 8)
  require.Error(t, e)
  require.Error(t, r.Seek(4))
}

func TestWriterPatch(t *testing.T) {
  w := NewWriter()
  w.WriteUint16(0x0102)
  w.WriteUint32(0)
  w.WriteUint8(0xFF)
  w.Pad(4)
  assert.Equal(t, 8, w.Len())
  w.PutUint32At(2, 0xAABBCCDD)
  assert.Equal(t, []byte{0x02, 0x01, 0xDD, 0xCC, 0xBB, 0xAA, 0xFF, 0x00}, w.Bytes())

  r := NewReader(w.Bytes())
  arr, e := r.ReadUint32Array(2)
  require.NoError(t, e)
  assert.Equal(t, []uint32{0xCCDD0102, 0x00FFAABB}, arr)
}
