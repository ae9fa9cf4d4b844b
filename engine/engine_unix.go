//go:build linux || darwin

package engine

import (
	"github.com/moqsien/gkmux/iface"
	"github.com/moqsien/gkmux/poll"
)

func newMux(opts *iface.Options) (iface.IMux, error) {
	p := poll.NewPoller(opts)
	if !p.IsValid() {
		return nil, ErrBackend
	}
	return p, nil
}
