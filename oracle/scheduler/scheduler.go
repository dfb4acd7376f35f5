package scheduler

import (
	"context"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/robfig/cron/v3"

	"github.com/GPTx-global/oracle-relayer/oracle/log"
	"github.com/GPTx-global/oracle-relayer/oracle/queue"
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

// Queues finds a network queue by network id.
type Queues interface {
	Get(id string) (*queue.NetworkQueue, bool)
}

type job struct {
	entry cron.EntryID
	item  types.Item
	queue *queue.NetworkQueue
}

// Scheduler pushes every configured batch and standalone pair onto its network
// queue once per interval. Dedup in the queue keeps at most one instance alive.
type Scheduler struct {
	cron     *cron.Cron
	queues   Queues
	jobStore cmap.ConcurrentMap[string, job]
}

func New(queues Queues) *Scheduler {
	logger := cron.PrintfLogger(log.Logger())
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger))),
		queues:   queues,
		jobStore: cmap.New[job](),
	}
}

// AddBatch schedules batch. A batch with the same identity is only scheduled once.
func (s *Scheduler) AddBatch(batch types.Batch) error {
	b := batch
	return s.add(&b, batch.NetworkID, batch.Description, batch.Interval)
}

// AddPair schedules a standalone push job under its own identity.
func (s *Scheduler) AddPair(pair types.PushJob) error {
	p := pair
	return s.add(&p, pair.NetworkID, pair.Pair, pair.Interval)
}

func (s *Scheduler) add(item types.Item, networkID, name string, interval int64) error {
	q, ok := s.queues.Get(networkID)
	if !ok {
		return errorsmod.Wrapf(types.ErrUnknownNetwork, "%s %q references network %q", item.Kind(), name, networkID)
	}
	if interval <= 0 {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "%s %q: interval must be positive", item.Kind(), name)
	}

	id := types.PairID(item)
	if s.jobStore.Has(id) {
		log.Warnf("[%s] %q is configured twice, scheduling it once", networkID, id)
		return nil
	}

	every := time.Duration(interval) * time.Millisecond
	entry, err := s.cron.AddFunc(fmt.Sprintf("@every %s", every), func() {
		push(q, item)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %q: %w", id, err)
	}

	s.jobStore.Set(id, job{entry: entry, item: item, queue: q})
	log.Debugf("[%s] Scheduled %q every %v", networkID, id, every)
	return nil
}

// Start pushes everything right away and then on its interval.
func (s *Scheduler) Start() {
	for item := range s.jobStore.IterBuffered() {
		push(item.Val.queue, item.Val.item)
	}
	s.cron.Start()
	log.Infof("Scheduler started with %d jobs", s.jobStore.Count())
}

// Stop stops scheduling and waits for a running push to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Scheduled returns the identities of everything scheduled.
func (s *Scheduler) Scheduled() []string {
	return s.jobStore.Keys()
}

func push(q *queue.NetworkQueue, item types.Item) {
	q.Enqueue(item)
}
