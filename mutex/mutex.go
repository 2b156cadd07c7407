// Package mutex defines the four-operation mutual exclusion contract
// shared by every lock algorithm in this module, and a registry the
// benchmark CLI uses to select one by name at runtime.
//
// Construction (each algorithm subpackage's own New function) stands
// in for the original C's separate mtx_init step; Go has no equivalent
// need for a caller to pre-allocate storage and initialise it in
// place, so New returns a ready-to-use value.
package mutex

import (
	"fmt"
	"sort"
	"sync"
)

// Interface is the contract every algorithm package in this module
// implements: backoff, spinlockrd, ticket, k42, k42alt, spinlist,
// parking, parkingfair, and wtflock.
type Interface interface {
	// TryLock attempts to take the lock without blocking. It returns
	// true iff the caller became the owner. Never blocks. Some
	// algorithms (ticket) may legitimately always return false;
	// callers must tolerate that.
	TryLock() bool

	// Lock blocks until the caller becomes the owner.
	Lock()

	// Unlock releases the lock. Must only be called by the current
	// owner. Parking-style algorithms panic on a detected
	// mis-release; the others leave it as undefined behaviour.
	Unlock()
}

// Factory constructs a fresh, ready-to-use Interface value.
type Factory func() Interface

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{}
)

// Register adds name to the algorithm registry. Algorithm packages
// call this from their own init(), so importing a package for its
// side effect (typically via a blank import in cmd/mutexbench) is
// enough to make it selectable by name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[name]; dup {
		panic("mutex: Register called twice for algorithm " + name)
	}
	registry[name] = f
}

// New constructs the named algorithm's mutex, or an error if name was
// never registered.
func New(name string) (Interface, error) {
	registryMu.Lock()
	f, ok := registry[name]
	registryMu.Unlock()

	if !ok {
		return nil, fmt.Errorf("mutex: unknown algorithm %q (known: %v)", name, Names())
	}
	return f(), nil
}

// Names returns the registered algorithm names in sorted order.
func Names() []string {
	registryMu.Lock()
	defer registryMu.Unlock()

	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
