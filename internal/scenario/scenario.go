// Package scenario builds small reactive graphs that exhibit one pattern
// each, for demos and for exercising the detectors end to end.
package scenario

import (
	"fmt"
	"slices"

	"github.com/AnatoleLucet/sigscope/internal/runtime"
)

type Scenario struct {
	Name        string
	Description string
	// Run builds the graph on r and drives it. The returned owner holds
	// everything created, except what the scenario leaves unowned on purpose.
	Run func(r *runtime.Runtime) *runtime.Owner
}

var scenarios = []Scenario{
	{"diamond", "one signal feeding two memos that join in an effect", Diamond},
	{"chain", "a signal behind seven levels of memos", Chain},
	{"orphan", "an effect created outside any owner", Orphan},
	{"hot", "a signal written thirty times in a row", Hot},
	{"fanout", "a signal read by sixty effects", Fanout},
	{"stale", "a memo nobody reads", Stale},
}

// All returns every scenario in a stable order.
func All() []Scenario {
	return slices.Clone(scenarios)
}

func Names() []string {
	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	return names
}

func Lookup(name string) (Scenario, error) {
	for _, s := range scenarios {
		if s.Name == name {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("scenario: unknown scenario %q", name)
}

func Diamond(r *runtime.Runtime) *runtime.Owner {
	root := r.NewRoot("diamond")
	root.Run(func() error {
		count := r.NewSignal("count", 1)
		double := r.NewMemo("double", func() any { return count.Read().(int) * 2 })
		triple := r.NewMemo("triple", func() any { return count.Read().(int) * 3 })
		r.NewEffect("sum", func() {
			_ = double.Read().(int) + triple.Read().(int)
		})

		count.Write(2)
		return nil
	})
	return root
}

func Chain(r *runtime.Runtime) *runtime.Owner {
	root := r.NewRoot("chain")
	root.Run(func() error {
		input := r.NewSignal("input", 0)

		var prev interface{ Read() any } = input
		for i := range 7 {
			src := prev
			prev = r.NewMemo(fmt.Sprintf("step-%d", i+1), func() any { return src.Read().(int) + 1 })
		}
		last := prev
		r.NewEffect("output", func() { last.Read() })

		input.Write(1)
		return nil
	})
	return root
}

// Orphan creates its effect outside the returned owner, which only holds
// the signal.
func Orphan(r *runtime.Runtime) *runtime.Owner {
	root := r.NewRoot("orphan")

	var ticks *runtime.Signal
	root.Run(func() error {
		ticks = r.NewSignal("ticks", 0)
		return nil
	})

	r.NewEffect("logger", func() { ticks.Read() })
	ticks.Write(1)
	return root
}

func Hot(r *runtime.Runtime) *runtime.Owner {
	root := r.NewRoot("hot")
	root.Run(func() error {
		pointer := r.NewSignal("pointer", 0)
		r.NewEffect("cursor", func() { pointer.Read() })

		for i := range 30 {
			pointer.Write(i + 1)
		}
		return nil
	})
	return root
}

func Fanout(r *runtime.Runtime) *runtime.Owner {
	root := r.NewRoot("fanout")
	root.Run(func() error {
		theme := r.NewSignal("theme", "light")
		for i := range 60 {
			r.NewEffect(fmt.Sprintf("widget-%d", i+1), func() { theme.Read() })
		}

		theme.Write("dark")
		return nil
	})
	return root
}

func Stale(r *runtime.Runtime) *runtime.Owner {
	root := r.NewRoot("stale")
	root.Run(func() error {
		items := r.NewSignal("items", []string{"a", "b"})
		r.NewMemo("count", func() any { return len(items.Read().([]string)) })

		items.Write([]string{"a", "b", "c"})
		return nil
	})
	return root
}
