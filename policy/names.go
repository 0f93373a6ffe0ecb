package policy

var javaKeywords = map[string]bool{
  "abstract": true, "assert": true, "boolean": true, "break": true, "byte": true, "case": true,
  "catch": true, "char": true, "class": true, "const": true, "continue": true, "default": true,
  "do": true, "double": true, "else": true, "enum": true, "extends": true, "false": true,
  "final": true, "finally": true, "float": true, "for": true, "goto": true, "if": true,
  "implements": true, "import": true, "instanceof": true, "int": true, "interface": true,
  "long": true, "native": true, "new": true, "null": true, "package": true, "private": true,
  "protected": true, "public": true, "return": true, "short": true, "static": true,
  "strictfp": true, "super": true, "switch": true, "synchronized": true, "this": true,
  "throw": true, "throws": true, "transient": true, "true": true, "try": true, "void": true,
  "volatile": true, "while": true,
}

// NameGenerator yields a, b ... z, aa, ab ... skipping java keywords and reserved names.
// The sequence only depends on the reserved set, so two runs with the same input agree.
type NameGenerator struct {
  next     int
  reserved map[string]bool
}

func NewNameGenerator(reserved ...string) *NameGenerator {
  g := &NameGenerator{reserved: make(map[string]bool, len(reserved))}
  for _, s := range reserved {
    g.reserved[s] = true
  }
  return g
}

func (g *NameGenerator) Reserve(name string) {
  g.reserved[name] = true
}

func (g *NameGenerator) Next() string {
  for {
    s := shortName(g.next)
    g.next++
    if javaKeywords[s] || g.reserved[s] {
      continue
    }
    g.reserved[s] = true
    return s
  }
}

// 0 -> a, 25 -> z, 26 -> aa
func shortName(i int) string {
  var buf [16]byte
  n := len(buf)
  for {
    n--
    buf[n] = byte('a' + i%26)
    i = i/26 - 1
    if i < 0 {
      break
    }
  }
  return string(buf[n:])
}
