package apk

type Namespace struct {
  Prefix string
  Uri    string
}

// Namespaces is the stack of prefix bindings of the elements currently open.
// It belongs to one decode and is not shared.
type Namespaces struct {
  stack []Namespace

  // 栈顶还没被元素消费的数量
  fresh int
}

func (n *Namespaces) Push(prefix, uri string) {
  n.stack = append(n.stack, Namespace{Prefix: prefix, Uri: uri})
  n.fresh++
}

// Pop removes the innermost binding equal to (prefix, uri).
func (n *Namespaces) Pop(prefix, uri string) {
  for i := len(n.stack) - 1; i >= 0; i-- {
    if n.stack[i].Prefix == prefix && n.stack[i].Uri == uri {
      if i >= len(n.stack)-n.fresh {
        n.fresh--
      }
      n.stack = append(n.stack[:i], n.stack[i+1:]...)
      return
    }
  }
}

// Prefix returns the prefix of the innermost declaration of uri.
func (n *Namespaces) Prefix(uri string) (string, bool) {
  for i := len(n.stack) - 1; i >= 0; i-- {
    if n.stack[i].Uri == uri {
      return n.stack[i].Prefix, true
    }
  }
  return "", false
}

// Consume returns the bindings pushed since the last call, they belong to the next element.
func (n *Namespaces) Consume() []Namespace {
  if n.fresh == 0 {
    return nil
  }
  ret := make([]Namespace, n.fresh)
  copy(ret, n.stack[len(n.stack)-n.fresh:])
  n.fresh = 0
  return ret
}

func (n *Namespaces) Len() int {
  return len(n.stack)
}
