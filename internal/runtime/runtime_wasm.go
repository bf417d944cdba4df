//go:build wasm

package runtime

import "sync"

var (
	once          sync.Once
	globalRuntime *Runtime
)

func Default() *Runtime {
	once.Do(func() {
		if globalRuntime == nil {
			globalRuntime = New()
		}
	})

	return globalRuntime
}

func SetDefault(r *Runtime) {
	once.Do(func() {})
	globalRuntime = r
}
