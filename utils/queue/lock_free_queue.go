/*
Package queue implements the Michael-Scott lock-free FIFO used for the
deferred task queues. Producers and consumers never take a lock; the
first node is a blank sentinel.
*/
package queue

import (
	"sync/atomic"
	"unsafe"
)

type TaskQueue interface {
	Enqueue(interface{})
	Dequeue() interface{}
	IsEmpty() bool
	Len() int32
}

type Queue struct {
	head   unsafe.Pointer
	tail   unsafe.Pointer
	length int32
}

type node struct {
	value interface{}
	next  unsafe.Pointer
}

func NewQueue() TaskQueue {
	n := unsafe.Pointer(&node{})
	return &Queue{head: n, tail: n}
}

func (that *Queue) Enqueue(task interface{}) {
	n := &node{value: task}
	for {
		tail := load(&that.tail)
		next := load(&tail.next)
		if tail != load(&that.tail) {
			continue
		}
		if next == nil {
			if cas(&tail.next, next, n) {
				cas(&that.tail, tail, n)
				atomic.AddInt32(&that.length, 1)
				return
			}
		} else {
			cas(&that.tail, tail, next)
		}
	}
}

func (that *Queue) Dequeue() interface{} {
	for {
		head := load(&that.head)
		tail := load(&that.tail)
		next := load(&head.next)
		if head != load(&that.head) {
			continue
		}
		if head == tail {
			if next == nil {
				return nil
			}
			cas(&that.tail, tail, next)
			continue
		}
		task := next.value
		if cas(&that.head, head, next) {
			atomic.AddInt32(&that.length, -1)
			return task
		}
	}
}

func (that *Queue) IsEmpty() bool {
	return atomic.LoadInt32(&that.length) == 0
}

func (that *Queue) Len() int32 {
	return atomic.LoadInt32(&that.length)
}

func load(p *unsafe.Pointer) (n *node) {
	return (*node)(atomic.LoadPointer(p))
}

func cas(p *unsafe.Pointer, old, new *node) bool {
	return atomic.CompareAndSwapPointer(p, unsafe.Pointer(old), unsafe.Pointer(new))
}
