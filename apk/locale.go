package apk

import (
  "strings"
)

// Locale is a (language, region) pair. The zero value is AnyLocale.
type Locale struct {
  Language string
  Region   string
}

// AnyLocale matches every candidate with the lowest non-zero score.
var AnyLocale = Locale{}

// DefaultLocale is used to resolve references when the caller did not ask for one.
var DefaultLocale = Locale{Language: "en", Region: "US"}

// ParseLocale accepts "en", "en-US", "en_US" and "en-rUS".
func ParseLocale(s string) Locale {
  s = strings.TrimSpace(s)
  if s == "" {
    return AnyLocale
  }
  s = strings.ReplaceAll(s, "_", "-")
  parts := strings.SplitN(s, "-", 2)
  l := Locale{Language: strings.ToLower(parts[0])}
  if len(parts) == 2 {
    region := parts[1]
    if len(region) == 3 && (region[0] == 'r' || region[0] == 'R') {
      region = region[1:]
    }
    l.Region = strings.ToUpper(region)
  }
  return l
}

func (l Locale) String() string {
  if l.Region == "" {
    return l.Language
  }
  return l.Language + "-" + l.Region
}

// MatchLocale scores how well candidate serves a request for target, higher is better.
// A nil candidate is undefined and scores -1 so it is never selected.
func MatchLocale(candidate *Locale, target Locale) int {
  if candidate == nil {
    return -1
  }
  if candidate.Language == target.Language {
    if candidate.Region == target.Region {
      return 3
    }
    if target.Region == "" {
      return 2
    }
    return 0
  }
  if target.Region == "" || target.Language == "" {
    return 1
  }
  return 0
}
