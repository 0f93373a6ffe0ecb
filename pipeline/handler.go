package pipeline

type HandlerContext struct {
  prev     *HandlerContext
  next     *HandlerContext
  pipeline *Pipeline
  name     string
  handler  Handler
}

func (ctx *HandlerContext) Prev() *HandlerContext {
  ctx.pipeline.mu.RLock()
  ret := ctx.prev
  if ret == ctx.pipeline.head {
    ret = nil
  }
  ctx.pipeline.mu.RUnlock()
  return ret
}

func (ctx *HandlerContext) Next() *HandlerContext {
  ctx.pipeline.mu.RLock()
  ret := ctx.next
  if ret == ctx.pipeline.tail {
    ret = nil
  }
  ctx.pipeline.mu.RUnlock()
  return ret
}

func (ctx *HandlerContext) Pipeline() *Pipeline {
  return ctx.pipeline
}

func (ctx *HandlerContext) Name() string {
  return ctx.name
}

func (ctx *HandlerContext) Handler() Handler {
  return ctx.handler
}

// Fire passes data to the next handler and returns its error,
// a handler that does not call Fire ends the chain.
func (ctx *HandlerContext) Fire(data interface{}) error {
  ctx.pipeline.mu.RLock()
  next := ctx.next
  ctx.pipeline.mu.RUnlock()
  if next != nil && next.handler != nil {
    return next.handler.Handle(next, data)
  }
  return nil
}

type Handler interface {
  Handle(*HandlerContext, interface{}) error
}

// HandlerFunc is a Handler that runs fn and then fires the next handler when fn succeeds.
type HandlerFunc func(data interface{}) error

func (fn HandlerFunc) Handle(ctx *HandlerContext, data interface{}) error {
  if e := fn(data); e != nil {
    return e
  }
  return ctx.Fire(data)
}

type defaultHandler struct{}

func (*defaultHandler) Handle(ctx *HandlerContext, data interface{}) error {
  return ctx.Fire(data)
}
