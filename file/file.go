package file

import (
  "io"
  "io/ioutil"
  "os"
  "path/filepath"
  "sort"
)

func Exist(path string) bool {
  if path == "" {
    return false
  }
  _, e := os.Stat(path)
  if e != nil {
    return false
  }
  return true
}

func IsFile(path string) bool {
  if path == "" {
    return false
  }
  f, e := os.Stat(path)
  if e != nil {
    return false
  }
  return !f.IsDir()
}

func IsDir(path string) bool {
  if path == "" {
    return false
  }
  f, e := os.Stat(path)
  if e != nil {
    return false
  }
  return f.IsDir()
}

// Copy copies src to dst, the parent directories of dst are created.
func Copy(src, dst string) (int64, error) {
  in, e := os.Open(src)
  if e != nil {
    return 0, e
  }
  defer in.Close()
  if e = os.MkdirAll(filepath.Dir(dst), 0755); e != nil {
    return 0, e
  }
  out, e := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
  if e != nil {
    return 0, e
  }
  n, e := io.Copy(out, in)
  if e1 := out.Close(); e == nil {
    e = e1
  }
  return n, e
}

// Write writes data to path, the parent directories are created.
func Write(path string, data []byte) error {
  if e := os.MkdirAll(filepath.Dir(path), 0755); e != nil {
    return e
  }
  return ioutil.WriteFile(path, data, 0644)
}

// List returns the regular files under dir as sorted slash-separated relative paths.
func List(dir string) ([]string, error) {
  var ret []string
  e := filepath.Walk(dir, func(path string, info os.FileInfo, e error) error {
    if e != nil {
      return e
    }
    if !info.Mode().IsRegular() {
      return nil
    }
    rel, e := filepath.Rel(dir, path)
    if e != nil {
      return e
    }
    ret = append(ret, filepath.ToSlash(rel))
    return nil
  })
  if e != nil {
    return nil, e
  }
  sort.Strings(ret)
  return ret, nil
}
