// Package byteslice pools power-of-two sized byte slices so hot read
// paths avoid a fresh allocation per delivered event.
package byteslice

import (
	"math"
	"math/bits"
	"sync"
	"unsafe"
)

// One pool per power-of-two size class.
var classes [32]sync.Pool

// Get returns a slice of length size backed by a pooled array of the
// next power-of-two capacity.
func Get(size int) []byte {
	if size <= 0 {
		return nil
	}
	if size > math.MaxInt32 {
		return make([]byte, size)
	}
	idx := class(uint32(size))
	ptr, _ := classes[idx].Get().(unsafe.Pointer)
	if ptr == nil {
		return make([]byte, 1<<idx)[:size]
	}
	return unsafe.Slice((*byte)(ptr), 1<<idx)[:size]
}

// Put recycles buf's backing array. The caller must not touch buf
// again; slices not sized by Get fall into the previous class.
func Put(buf []byte) {
	size := cap(buf)
	if size == 0 || size > math.MaxInt32 {
		return
	}
	idx := class(uint32(size))
	if size != 1<<idx {
		idx--
	}
	classes[idx].Put(unsafe.Pointer(&buf[:1][0]))
}

func class(n uint32) uint32 {
	return uint32(bits.Len32(n - 1))
}
