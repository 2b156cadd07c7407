// Package gid stands in for pthread_self() in the original C mutex
// algorithms. Go exposes no public goroutine identity, so the
// parking-style algorithms (mutex/parking, mutex/parkingfair,
// mutex/wtflock) that need to recognise "the same caller came back
// without unlocking" obtain a process-wide unique, word-aligned token
// from this package instead of a thread handle.
package gid

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"unsafe"
)

// tokens maps a goroutine's runtime-assigned numeric id to the token
// value handed out for it. Entries are never evicted: this module is a
// long-running benchmark process, not a server that needs to reclaim
// storage for goroutines that have long since exited.
var tokens sync.Map // map[uint64]*uint32

// Self returns a token uniquely identifying the calling goroutine for
// as long as it exists. Repeated calls from the same goroutine return
// the same value; the value's low two bits are always zero, so
// algorithms may use them to tag auxiliary state the way the original
// C packs flags into a thread handle's low bits.
func Self() uintptr {
	id := goroutineID()
	if v, ok := tokens.Load(id); ok {
		return tokenAddr(v)
	}
	v, _ := tokens.LoadOrStore(id, new(uint32))
	return tokenAddr(v)
}

func tokenAddr(v interface{}) uintptr {
	p := v.(*uint32)
	return uintptr(unsafe.Pointer(p))
}

// goroutineID parses the numeric id out of the "goroutine N [state]:"
// header that runtime.Stack always writes first. This is the same
// technique long used by third-party goroutine-id packages; it costs a
// small stack capture and is exercised by every algorithm that stores
// its owner's identity (backoff, spinlockrd, spinlist, and the parking
// variants), not by ticket or the MCS variants, which never need
// caller identity.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		// Should be unreachable given runtime.Stack's documented
		// format; fall back to id 0, which no user goroutine's id
		// takes. Every caller that hits this shares one token.
		return 0
	}
	return id
}
