package rebuild

import (
  "archive/zip"
  "io"
  "os"
  "path"
  "path/filepath"
  "strings"

  "github.com/kwf2030/apkres/base"
  "github.com/pkg/errors"
)

const (
  tableEntry    = "resources.arsc"
  manifestEntry = "AndroidManifest.xml"
)

// Entry describes one file of a container.
type Entry struct {
  Name string

  // zip.Store或zip.Deflate
  Method uint16

  Size uint64
}

// Container is an opened input archive, it is owned by one Orchestrator run.
type Container interface {
  Entries() []*Entry
  Open(name string) (io.ReadCloser, error)
  Close() error
}

type ZipContainer struct {
  rc      *zip.ReadCloser
  entries []*Entry
  files   map[string]*zip.File
}

func OpenZip(path string) (*ZipContainer, error) {
  rc, e := zip.OpenReader(path)
  if e != nil {
    return nil, errors.Wrapf(e, "open container %s", path)
  }
  c := &ZipContainer{rc: rc, files: make(map[string]*zip.File, len(rc.File))}
  for _, f := range rc.File {
    if f.FileInfo().IsDir() {
      continue
    }
    if _, ok := c.files[f.Name]; ok {
      continue
    }
    c.files[f.Name] = f
    c.entries = append(c.entries, &Entry{Name: f.Name, Method: f.Method, Size: f.UncompressedSize64})
  }
  return c, nil
}

// Entries returns the files in archive order, duplicated names keep the first one.
func (c *ZipContainer) Entries() []*Entry {
  return c.entries
}

func (c *ZipContainer) Open(name string) (io.ReadCloser, error) {
  f, ok := c.files[name]
  if !ok {
    return nil, base.MissingEntryf("open entry", "%s not found", name)
  }
  return f.Open()
}

func (c *ZipContainer) Close() error {
  return c.rc.Close()
}

// safeName rejects entry names escaping the extraction directory.
func safeName(name string) bool {
  if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
    return false
  }
  clean := path.Clean(name)
  return clean == name && clean != ".." && !strings.HasPrefix(clean, "../")
}

// extract writes every entry of c under dir and returns the entries.
func extract(c Container, dir string) ([]*Entry, error) {
  entries := c.Entries()
  for _, en := range entries {
    if !safeName(en.Name) {
      return nil, base.Structuralf("unzip", "unsafe entry name %q", en.Name)
    }
    if e := extractOne(c, en.Name, filepath.Join(dir, filepath.FromSlash(en.Name))); e != nil {
      return nil, e
    }
  }
  return entries, nil
}

func extractOne(c Container, name, dst string) error {
  r, e := c.Open(name)
  if e != nil {
    return e
  }
  defer r.Close()
  if e = os.MkdirAll(filepath.Dir(dst), 0755); e != nil {
    return errors.Wrapf(e, "unzip %s", name)
  }
  f, e := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
  if e != nil {
    return errors.Wrapf(e, "unzip %s", name)
  }
  if _, e = io.Copy(f, r); e != nil {
    f.Close()
    return base.Structural("unzip "+name, e)
  }
  return f.Close()
}

// zipFile is one file of the rebuilt archive.
type zipFile struct {
  name   string
  path   string
  method uint16
}

// writeZip writes files into a new archive at dst in the given order.
func writeZip(dst string, files []zipFile) error {
  out, e := os.Create(dst)
  if e != nil {
    return errors.Wrapf(e, "create %s", dst)
  }
  zw := zip.NewWriter(out)
  for _, zf := range files {
    if e = addZipFile(zw, zf); e != nil {
      zw.Close()
      out.Close()
      return e
    }
  }
  if e = zw.Close(); e != nil {
    out.Close()
    return errors.Wrapf(e, "close %s", dst)
  }
  return out.Close()
}

func addZipFile(zw *zip.Writer, zf zipFile) error {
  in, e := os.Open(zf.path)
  if e != nil {
    return errors.Wrapf(e, "zip %s", zf.name)
  }
  defer in.Close()
  w, e := zw.CreateHeader(&zip.FileHeader{Name: zf.name, Method: zf.method})
  if e != nil {
    return errors.Wrapf(e, "zip %s", zf.name)
  }
  _, e = io.Copy(w, in)
  return errors.Wrapf(e, "zip %s", zf.name)
}
