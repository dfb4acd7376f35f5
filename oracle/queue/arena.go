package queue

import (
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

// Arena holds every network queue, indexed by network id. It is built once
// and never changes.
type Arena struct {
	queues []*NetworkQueue
	byID   map[string]*NetworkQueue
}

// NewArena indexes queues and points each of them at the arena for
// acknowledgment routing.
func NewArena(queues ...*NetworkQueue) *Arena {
	a := &Arena{
		queues: queues,
		byID:   make(map[string]*NetworkQueue, len(queues)),
	}
	for _, q := range queues {
		a.byID[q.ID()] = q
	}
	for _, q := range queues {
		q.SetNetworkQueues(a)
	}
	return a
}

// Get returns the queue of the network with the given config id.
func (a *Arena) Get(id string) (*NetworkQueue, bool) {
	q, ok := a.byID[id]
	return q, ok
}

// ByNetwork returns the first queue whose provider serves network.
func (a *Arena) ByNetwork(network types.Network) (*NetworkQueue, bool) {
	for _, q := range a.queues {
		if q.provider.Descriptor().Network.Matches(network) {
			return q, true
		}
	}
	return nil, false
}

func (a *Arena) All() []*NetworkQueue {
	return append([]*NetworkQueue(nil), a.queues...)
}

func (a *Arena) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(a.queues))
	for _, q := range a.queues {
		out = append(out, q.Snapshot())
	}
	return out
}
