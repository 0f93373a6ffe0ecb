package policy

import (
  "bytes"
  "time"

  "github.com/pkg/errors"
  "go.etcd.io/bbolt"
)

var bucketMappings = []byte("mappings")

// Store keeps the mapping of every container across runs, keyed by container name.
type Store struct {
  db *bbolt.DB
}

func OpenStore(path string) (*Store, error) {
  db, e := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
  if e != nil {
    return nil, errors.Wrapf(e, "open store %s", path)
  }
  e = db.Update(func(tx *bbolt.Tx) error {
    _, e := tx.CreateBucketIfNotExists(bucketMappings)
    return e
  })
  if e != nil {
    db.Close()
    return nil, errors.Wrap(e, "create bucket")
  }
  return &Store{db: db}, nil
}

// Load returns the mapping saved for name, or nil when there is none.
func (s *Store) Load(name string) (*Mapping, error) {
  var m *Mapping
  e := s.db.View(func(tx *bbolt.Tx) error {
    v := tx.Bucket(bucketMappings).Get([]byte(name))
    if v == nil {
      return nil
    }
    var e error
    m, e = ParseMapping(bytes.NewReader(v))
    return e
  })
  return m, e
}

func (s *Store) Save(name string, m *Mapping) error {
  var buf bytes.Buffer
  if _, e := m.WriteTo(&buf); e != nil {
    return e
  }
  return s.db.Update(func(tx *bbolt.Tx) error {
    return tx.Bucket(bucketMappings).Put([]byte(name), buf.Bytes())
  })
}

func (s *Store) Names() ([]string, error) {
  var ret []string
  e := s.db.View(func(tx *bbolt.Tx) error {
    return tx.Bucket(bucketMappings).ForEach(func(k, _ []byte) error {
      ret = append(ret, string(k))
      return nil
    })
  })
  return ret, e
}

func (s *Store) Close() error {
  return s.db.Close()
}
