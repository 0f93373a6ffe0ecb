package pipeline

import "sync"

// Pipeline is an ordered chain of handlers, data flows from the first handler to the last.
// Handlers are looked up by name, the first match wins.
type Pipeline struct {
  head *HandlerContext
  tail *HandlerContext
  len  int
  mu   *sync.RWMutex
}

func New() *Pipeline {
  p := &Pipeline{
    head: &HandlerContext{handler: &defaultHandler{}},
    tail: &HandlerContext{},
    mu:   &sync.RWMutex{},
  }
  p.head.pipeline = p
  p.head.next = p.tail
  p.tail.pipeline = p
  p.tail.prev = p.head
  return p
}

// Run sends data through the chain and returns the first error, handlers after it are not called.
func (p *Pipeline) Run(data interface{}) error {
  return p.head.handler.Handle(p.head, data)
}

func (p *Pipeline) AddFirst(name string, h Handler) *Pipeline {
  if h != nil {
    p.mu.Lock()
    p.link(p.head, &HandlerContext{pipeline: p, name: name, handler: h})
    p.mu.Unlock()
  }
  return p
}

func (p *Pipeline) AddLast(name string, h Handler) *Pipeline {
  if h != nil {
    p.mu.Lock()
    p.link(p.tail.prev, &HandlerContext{pipeline: p, name: name, handler: h})
    p.mu.Unlock()
  }
  return p
}

func (p *Pipeline) AddBefore(name string, h Handler, mark string) *Pipeline {
  if h != nil {
    p.mu.Lock()
    if markCtx := p.GetUnsafe(mark); markCtx != nil {
      p.link(markCtx.prev, &HandlerContext{pipeline: p, name: name, handler: h})
    }
    p.mu.Unlock()
  }
  return p
}

func (p *Pipeline) AddAfter(name string, h Handler, mark string) *Pipeline {
  if h != nil {
    p.mu.Lock()
    if markCtx := p.GetUnsafe(mark); markCtx != nil {
      p.link(markCtx, &HandlerContext{pipeline: p, name: name, handler: h})
    }
    p.mu.Unlock()
  }
  return p
}

// 把ctx插到prev后面
func (p *Pipeline) link(prev, ctx *HandlerContext) {
  ctx.prev = prev
  ctx.next = prev.next
  prev.next.prev = ctx
  prev.next = ctx
  p.len++
}

func (p *Pipeline) Remove(name string) *Pipeline {
  p.mu.Lock()
  if ctx := p.GetUnsafe(name); ctx != nil {
    ctx.prev.next = ctx.next
    ctx.next.prev = ctx.prev
    p.len--
  }
  p.mu.Unlock()
  return p
}

func (p *Pipeline) Replace(name string, h Handler) *Pipeline {
  if h != nil {
    p.mu.Lock()
    if ctx := p.GetUnsafe(name); ctx != nil {
      ctx.handler = h
    }
    p.mu.Unlock()
  }
  return p
}

func (p *Pipeline) First() *HandlerContext {
  p.mu.RLock()
  var ctx *HandlerContext
  if p.len != 0 {
    ctx = p.head.next
  }
  p.mu.RUnlock()
  return ctx
}

func (p *Pipeline) Last() *HandlerContext {
  p.mu.RLock()
  var ctx *HandlerContext
  if p.len != 0 {
    ctx = p.tail.prev
  }
  p.mu.RUnlock()
  return ctx
}

func (p *Pipeline) Get(name string) *HandlerContext {
  p.mu.RLock()
  ctx := p.GetUnsafe(name)
  p.mu.RUnlock()
  return ctx
}

func (p *Pipeline) GetUnsafe(name string) *HandlerContext {
  if p.len == 0 {
    return nil
  }
  for ctx := p.head.next; ctx != nil && ctx != p.tail; ctx = ctx.next {
    if ctx.name == name {
      return ctx
    }
  }
  return nil
}

// Names returns the handler names in order.
func (p *Pipeline) Names() []string {
  p.mu.RLock()
  ret := make([]string, 0, p.len)
  for ctx := p.head.next; ctx != p.tail; ctx = ctx.next {
    ret = append(ret, ctx.name)
  }
  p.mu.RUnlock()
  return ret
}

func (p *Pipeline) Len() int {
  p.mu.RLock()
  n := p.len
  p.mu.RUnlock()
  return n
}

func (p *Pipeline) Clear() {
  p.mu.Lock()
  p.head.next = p.tail
  p.tail.prev = p.head
  p.len = 0
  p.mu.Unlock()
}
