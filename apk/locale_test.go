package apk

import (
  "testing"

  "github.com/stretchr/testify/assert"
)

func TestMatchLocale(t *testing.T) {
  enUS := Locale{"en", "US"}
  enGB := Locale{"en", "GB"}
  frFR := Locale{"fr", "FR"}
  cases := []struct {
    candidate *Locale
    target    Locale
    want      int
  }{
    {&enUS, Locale{"en", "US"}, 3},
    {&enGB, Locale{"en", "US"}, 0},
    {&enUS, Locale{"en", ""}, 2},
    {&frFR, AnyLocale, 1},
    {nil, enUS, -1},
    {nil, AnyLocale, -1},
    {&frFR, Locale{"en", "US"}, 0},
    {&frFR, Locale{"", "US"}, 1},
    {&Locale{}, AnyLocale, 3},
  }
  for _, c := range cases {
    assert.Equal(t, c.want, MatchLocale(c.candidate, c.target), "%v vs %v", c.candidate, c.target)
  }
}

func TestParseLocale(t *testing.T) {
  assert.Equal(t, Locale{"en", "US"}, ParseLocale("en_US"))
  assert.Equal(t, Locale{"zh", "CN"}, ParseLocale("zh-rCN"))
  assert.Equal(t, Locale{"fr", ""}, ParseLocale("FR"))
  assert.Equal(t, AnyLocale, ParseLocale(" "))
  assert.Equal(t, "en-US", ParseLocale("en-us").String())
}
