package balancer

import (
	"net"

	"github.com/moqsien/gkmux/iface"
)

type LeastConn struct {
	loopList []iface.IELoop
	size     int
}

func (that *LeastConn) Len() int { return that.size }

func (that *LeastConn) Iterator(f iface.BalancerIterFunc) {
	for k, v := range that.loopList {
		if !f(k, v) {
			break
		}
	}
}

func (that *LeastConn) Register(e iface.IELoop) {
	that.loopList = append(that.loopList, e)
	that.size++
}

func (that *LeastConn) Next(addr ...net.Addr) (e iface.IELoop) {
	min := that.loopList[0]
	for _, v := range that.loopList {
		if v.GetConnCount() < min.GetConnCount() {
			min = v
		}
	}
	return min
}
