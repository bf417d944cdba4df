package runtime

type frame struct {
	owner       *Owner
	computation *Computation
	tracking    bool
}

// ExecutionContext is the stack of what is currently running. Each Run
// method pushes a frame and pops it when fn returns or panics.
type ExecutionContext struct {
	stack []frame
}

func NewContext() *ExecutionContext {
	return &ExecutionContext{}
}

func (ctx *ExecutionContext) current() frame {
	if len(ctx.stack) == 0 {
		return frame{tracking: true}
	}
	return ctx.stack[len(ctx.stack)-1]
}

func (ctx *ExecutionContext) run(f frame, fn func()) {
	ctx.stack = append(ctx.stack, f)
	defer func() { ctx.stack = ctx.stack[:len(ctx.stack)-1] }()

	fn()
}

// RunWithOwner runs fn with o as the owner of anything it creates. Reads
// keep tracking into the enclosing computation.
func (ctx *ExecutionContext) RunWithOwner(o *Owner, fn func()) {
	cur := ctx.current()
	ctx.run(frame{owner: o, computation: cur.computation, tracking: cur.tracking}, fn)
}

func (ctx *ExecutionContext) RunWithComputation(c *Computation, fn func()) {
	ctx.run(frame{owner: c.owner, computation: c, tracking: true}, fn)
}

func (ctx *ExecutionContext) RunUntracked(fn func()) {
	cur := ctx.current()
	ctx.run(frame{owner: cur.owner, computation: cur.computation, tracking: false}, fn)
}

func (ctx *ExecutionContext) Owner() *Owner {
	return ctx.current().owner
}

// Computation returns the computation reads should be attributed to, or nil
// when nothing is running or tracking is off.
func (ctx *ExecutionContext) Computation() *Computation {
	cur := ctx.current()
	if !cur.tracking {
		return nil
	}
	return cur.computation
}

func (ctx *ExecutionContext) Depth() int {
	return len(ctx.stack)
}
