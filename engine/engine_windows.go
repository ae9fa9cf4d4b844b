//go:build windows

package engine

import (
	"github.com/moqsien/gkmux/iface"
	"github.com/moqsien/gkmux/poll"
	"github.com/moqsien/gkmux/sys"
)

func newMux(opts *iface.Options) (iface.IMux, error) {
	src, err := sys.NewIOCPSource()
	if err != nil {
		return nil, err
	}
	m := poll.NewMux(src, opts)
	if !m.IsValid() {
		src.Close()
		return nil, ErrBackend
	}
	return m, nil
}
