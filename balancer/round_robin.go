package balancer

import (
	"net"

	"github.com/moqsien/gkmux/iface"
)

type RoundRobin struct {
	loopList  []iface.IELoop
	size      int
	nextIndex int
}

func (that *RoundRobin) Len() int { return that.size }

func (that *RoundRobin) Iterator(f iface.BalancerIterFunc) {
	for key, val := range that.loopList {
		if !f(key, val) {
			break
		}
	}
}

func (that *RoundRobin) Register(e iface.IELoop) {
	that.loopList = append(that.loopList, e)
	that.size++
}

func (that *RoundRobin) Next(addr ...net.Addr) (e iface.IELoop) {
	e = that.loopList[that.nextIndex]
	if that.nextIndex++; that.nextIndex >= that.size {
		that.nextIndex = 0
	}
	return
}
