//go:build !wasm

package internal

import (
	"sync"

	"github.com/petermattis/goid"
)

// runtimes is keyed by goroutine id. An entry lives until ReleaseRuntime is
// called from its goroutine.
var runtimes sync.Map

func GetRuntime() *Runtime {
	gid := goid.Get()

	if r, ok := runtimes.Load(gid); ok {
		return r.(*Runtime)
	}

	r := NewRuntime()
	runtimes.Store(gid, r)
	return r
}

// ReleaseRuntime settles the calling goroutine's turn and forgets its runtime.
// Worker goroutines that touched observers call it before they exit.
func ReleaseRuntime() error {
	gid := goid.Get()

	r, ok := runtimes.Load(gid)
	if !ok {
		return nil
	}

	err := r.(*Runtime).Settle()
	runtimes.Delete(gid)
	return err
}
