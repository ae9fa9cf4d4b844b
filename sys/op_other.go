//go:build !windows

package sys

// PeekOp carries one in-flight preview read. Off windows there is no
// overlapped payload; only the owner back-reference is needed.
type PeekOp struct {
	Owner interface{}
}
