package proxy

import (
	"sync/atomic"
)

// balancer hands out targets in a round robin fashion.
type balancer struct {
	targets []string
	next    atomic.Uint32
}

func newBalancer(targets []string) *balancer {
	return &balancer{targets: append([]string{}, targets...)}
}

func (b *balancer) nextTarget() string {
	n := b.next.Add(1) - 1
	return b.targets[int(n%uint32(len(b.targets)))]
}
