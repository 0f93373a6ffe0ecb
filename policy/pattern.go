package policy

import (
  "regexp"
  "strings"

  "github.com/kwf2030/apkres/base"
)

type pattern struct {
  content string
  regex   *regexp.Regexp
}

// compilePattern turns a wildcard pattern into an anchored regular expression,
// '*' matches any run of characters and '?' matches exactly one.
func compilePattern(s string) (*pattern, error) {
  var sb strings.Builder
  sb.WriteByte('^')
  for _, c := range s {
    switch c {
    case '*':
      sb.WriteString(".*")
    case '?':
      sb.WriteByte('.')
    default:
      sb.WriteString(regexp.QuoteMeta(string(c)))
    }
  }
  sb.WriteByte('$')
  re, e := regexp.Compile(sb.String())
  if e != nil {
    return nil, base.PolicyConfigf("compile pattern", "%q: %v", s, e)
  }
  return &pattern{content: s, regex: re}, nil
}

func (p *pattern) match(s string) bool {
  return p.regex.MatchString(s)
}

func matchAny(patterns []*pattern, s string) bool {
  for _, p := range patterns {
    if p.match(s) {
      return true
    }
  }
  return false
}
