package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/GPTx-global/oracle-relayer/oracle/log"
	"github.com/GPTx-global/oracle-relayer/oracle/metrics"
	"github.com/GPTx-global/oracle-relayer/oracle/provider"
	"github.com/GPTx-global/oracle-relayer/oracle/retry"
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

// DefaultInterval is how often a queue checks for work.
const DefaultInterval = 100 * time.Millisecond

// Lookup finds the queue serving a network.
type Lookup interface {
	ByNetwork(network types.Network) (*NetworkQueue, bool)
}

type entry struct {
	id   string
	item types.Item
}

// NetworkQueue serializes every chain-mutating call made against one network.
// At most one item is in flight at a time; an item whose identity is pending
// or in flight is not admitted again.
type NetworkQueue struct {
	id       string
	provider provider.Provider
	policy   retry.Policy

	mu       sync.Mutex
	pending  []entry
	inFlight map[string]struct{}
	siblings Lookup
}

// New creates the queue of p. Failed items are attempted policy.MaxAttempts
// times in total before they are dropped.
func New(p provider.Provider, policy retry.Policy) *NetworkQueue {
	return &NetworkQueue{
		id:       p.Descriptor().ID,
		provider: p,
		policy:   policy,
		inFlight: make(map[string]struct{}),
	}
}

func (q *NetworkQueue) ID() string {
	return q.id
}

func (q *NetworkQueue) Provider() provider.Provider {
	return q.provider
}

// SetNetworkQueues sets where acknowledgments are routed.
func (q *NetworkQueue) SetNetworkQueues(siblings Lookup) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.siblings = siblings
}

// Contains reports whether an item with the same identity is pending or in flight.
func (q *NetworkQueue) Contains(item types.Item) bool {
	id := types.PairID(item)

	q.mu.Lock()
	defer q.mu.Unlock()

	return q.containsLocked(id)
}

func (q *NetworkQueue) containsLocked(id string) bool {
	if _, ok := q.inFlight[id]; ok {
		return true
	}
	for _, e := range q.pending {
		if e.id == id {
			return true
		}
	}
	return false
}

// Enqueue appends item unless its identity is already pending or in flight.
// It reports whether the item was added.
func (q *NetworkQueue) Enqueue(item types.Item) bool {
	kind := types.Classify(item)
	if kind == types.KindUnknown {
		log.Errorf("[%s] Refusing to queue an item of unknown kind", q.id)
		return false
	}
	id := types.PairID(item)

	q.mu.Lock()
	if q.containsLocked(id) {
		q.mu.Unlock()
		metrics.ItemDeduplicated(q.id, kind.String())
		return false
	}
	q.pending = append(q.pending, entry{id: id, item: item})
	depth := len(q.pending)
	q.mu.Unlock()

	metrics.ItemEnqueued(q.id, kind.String())
	metrics.QueueDepth(q.id, depth)
	log.Debugf("[%s] Added %q to queue", q.id, id)
	return true
}

// ProcessOne takes the head of the queue and runs it to completion. It does
// nothing while another item is in flight or when the queue is empty, and
// reports whether it processed an item.
func (q *NetworkQueue) ProcessOne(ctx context.Context) bool {
	q.mu.Lock()
	if len(q.inFlight) > 0 || len(q.pending) == 0 {
		q.mu.Unlock()
		return false
	}
	head := q.pending[0]
	q.pending[0] = entry{}
	q.pending = q.pending[1:]
	q.inFlight[head.id] = struct{}{}
	depth := len(q.pending)
	q.mu.Unlock()

	defer q.release(head.id)
	metrics.QueueDepth(q.id, depth)

	kind := head.item.Kind().String()
	logger := log.WithFields(logrus.Fields{
		"network": q.id,
		"kind":    kind,
		"attempt": uuid.NewString(),
	})
	logger.Debugf("[%s] Processing %q", q.id, head.id)

	start := time.Now()
	answer, err := q.process(ctx, head.item)
	if err != nil {
		logger.Errorf("[%s] Dropped %q: %v", q.id, head.id, err)
		metrics.ItemDropped(q.id, kind)
		return true
	}

	metrics.ItemProcessed(q.id, kind, start)
	logger.Debugf("[%s] Completed processing %q with answer %q", q.id, head.id, answer)

	if req, ok := head.item.(*types.OracleRequest); ok {
		q.acknowledge(req)
	}
	return true
}

func (q *NetworkQueue) release(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.inFlight, id)
}

// process dispatches item, repeating failed attempts as the policy allows.
func (q *NetworkQueue) process(ctx context.Context, item types.Item) (string, error) {
	var answer string
	err := retry.Do(ctx, q.policy, func() error {
		var err error
		answer, err = q.dispatch(ctx, item)
		return err
	}, retryable(item))
	return answer, err
}

// retryable picks which failures of item are attempted again. Request and
// acknowledgment transactions are only resent on nonce races and transport
// errors; a revert is final.
func retryable(item types.Item) retry.IsRetryable {
	switch item.(type) {
	case *types.OracleRequest, *types.ResolveRequest:
		return retry.TransactionIsRetryable
	default:
		return retry.DefaultIsRetryable
	}
}

func (q *NetworkQueue) dispatch(ctx context.Context, item types.Item) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Debugf("[%s] %s", q.id, debug.Stack())
			err = fmt.Errorf("provider panicked: %v", r)
		}
	}()

	oracle := q.provider.Descriptor().OracleContractAddress

	switch it := item.(type) {
	case *types.OracleRequest:
		return q.provider.ResolveRequest(ctx, oracle, it)
	case *types.ResolveRequest:
		return "", q.provider.MarkAsResolved(ctx, oracle, it)
	case *types.Batch:
		return q.provider.ResolveBatch(ctx, it)
	case *types.PushJob:
		return q.provider.ResolvePair(ctx, it)
	default:
		return "", errorsmod.Wrapf(types.ErrInvalidRequest, "unexpected item %T", item)
	}
}

// acknowledge queues the ResolveRequest of req on its origin network.
func (q *NetworkQueue) acknowledge(req *types.OracleRequest) {
	q.mu.Lock()
	siblings := q.siblings
	q.mu.Unlock()

	var origin *NetworkQueue
	ok := false
	if siblings != nil {
		origin, ok = siblings.ByNetwork(req.Block.Network)
	}
	if !ok {
		log.Errorf("[%s] No queue for origin network %s, request %s stays unacknowledged",
			q.id, req.Block.Network, types.PairID(types.NewResolveRequest(req)))
		metrics.RoutingError(q.id)
		return
	}

	origin.Enqueue(types.NewResolveRequest(req))
}

// Start processes one item per interval until ctx is done.
func (q *NetworkQueue) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	log.Infof("[%s] Queue started, checking every %v", q.id, interval)

	provider.Every(ctx, interval, func(ctx context.Context) {
		q.ProcessOne(ctx)
	})

	log.Infof("[%s] Queue stopped", q.id)
}

// Snapshot is a point-in-time view of a queue.
type Snapshot struct {
	Network  string   `json:"network"`
	Pending  []string `json:"pending"`
	InFlight []string `json:"in_flight"`
}

func (q *NetworkQueue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Snapshot{
		Network:  q.id,
		Pending:  make([]string, 0, len(q.pending)),
		InFlight: make([]string, 0, len(q.inFlight)),
	}
	for _, e := range q.pending {
		s.Pending = append(s.Pending, e.id)
	}
	for id := range q.inFlight {
		s.InFlight = append(s.InFlight, id)
	}
	return s
}
