package pipeline

import (
  "errors"
  "testing"

  "github.com/stretchr/testify/assert"
)

func record(name string, out *[]string) HandlerFunc {
  return func(interface{}) error {
    *out = append(*out, name)
    return nil
  }
}

func TestPipelineOrder(t *testing.T) {
  var got []string
  p := New()
  p.AddLast("b", record("b", &got)).
    AddFirst("a", record("a", &got)).
    AddLast("d", record("d", &got)).
    AddBefore("c", record("c", &got), "d").
    AddAfter("e", record("e", &got), "d")
  assert.Equal(t, 5, p.Len())
  assert.Equal(t, []string{"a", "b", "c", "d", "e"}, p.Names())
  assert.Nil(t, p.Run(nil))
  assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)

  assert.Equal(t, "a", p.First().Name())
  assert.Equal(t, "e", p.Last().Name())
  assert.Nil(t, p.First().Prev())
  assert.Nil(t, p.Last().Next())
  assert.Equal(t, "d", p.Get("c").Next().Name())

  got = nil
  p.Remove("c").Replace("d", record("D", &got))
  assert.Nil(t, p.Run(nil))
  assert.Equal(t, []string{"a", "b", "D", "e"}, got)

  p.Clear()
  assert.Equal(t, 0, p.Len())
  assert.Nil(t, p.First())
  assert.Nil(t, p.Run(nil))
}

func TestPipelineStopsOnError(t *testing.T) {
  var got []string
  fail := errors.New("fail")
  e := New().
    AddLast("a", record("a", &got)).
    AddLast("b", HandlerFunc(func(interface{}) error { return fail })).
    AddLast("c", record("c", &got)).
    Run(nil)
  assert.Equal(t, fail, e)
  assert.Equal(t, []string{"a"}, got)
}

type counter struct{ n int }

// 不调用Fire的handler结束整个链
func (c *counter) Handle(_ *HandlerContext, data interface{}) error {
  c.n += data.(int)
  return nil
}

func TestPipelineData(t *testing.T) {
  c := &counter{}
  var got []string
  p := New().AddLast("count", c).AddLast("after", record("after", &got))
  assert.Nil(t, p.Run(3))
  assert.Equal(t, 3, c.n)
  assert.Empty(t, got)
  assert.Equal(t, c, p.Get("count").Handler())
}
