//go:build !wasm

package runtime

import (
	"sync"

	"github.com/petermattis/goid"
)

var runtimes sync.Map

// Default returns the runtime of the calling goroutine, creating it on first
// use.
func Default() *Runtime {
	gid := goid.Get()

	if r, ok := runtimes.Load(gid); ok {
		return r.(*Runtime)
	}

	r := New()
	runtimes.Store(gid, r)
	return r
}

// SetDefault replaces the runtime of the calling goroutine.
func SetDefault(r *Runtime) {
	runtimes.Store(goid.Get(), r)
}
