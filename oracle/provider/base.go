package provider

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/GPTx-global/oracle-relayer/oracle/delayer"
	"github.com/GPTx-global/oracle-relayer/oracle/log"
	"github.com/GPTx-global/oracle-relayer/oracle/metrics"
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

// Base carries the parts every adapter shares: its descriptor, its delayer
// and the polling loops that feed the delayer.
type Base struct {
	descriptor Descriptor
	delayer    *delayer.Delayer
	wg         sync.WaitGroup
}

func NewBase(descriptor Descriptor) *Base {
	return &Base{
		descriptor: descriptor,
		delayer:    delayer.New(descriptor.ID),
	}
}

func (b *Base) Descriptor() Descriptor {
	return b.descriptor
}

func (b *Base) Delayer() *delayer.Delayer {
	return b.delayer
}

func (b *Base) OnRequests(handler delayer.Handler) {
	b.delayer.OnRequestReady(handler)
}

// Poll fetches the head every interval and hands it to the delayer.
func (b *Base) Poll(ctx context.Context, interval time.Duration, head func(ctx context.Context) (types.Block, error)) {
	b.Go(func() {
		Every(ctx, interval, func(ctx context.Context) {
			block, err := head(ctx)
			if err != nil {
				log.Errorf("[%s] Failed to fetch latest block: %v", b.descriptor.ID, err)
				return
			}
			metrics.BlockHeight(b.descriptor.ID, block.Number)
			b.delayer.SetBlock(block)
		})
	})
}

// Fetch runs detect every interval and buffers what it finds in the delayer.
func (b *Base) Fetch(ctx context.Context, interval time.Duration, detect func(ctx context.Context) ([]types.OracleRequest, error)) {
	b.Go(func() {
		Every(ctx, interval, func(ctx context.Context) {
			requests, err := detect(ctx)
			if err != nil {
				log.Errorf("[%s] Failed to fetch requests: %v", b.descriptor.ID, err)
				return
			}
			for _, request := range requests {
				b.delayer.AddRequest(request)
			}
		})
	})
}

// Go runs fn in a goroutine that Wait waits for.
func (b *Base) Go(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

// Wait blocks until every loop started by the adapter has returned.
func (b *Base) Wait() {
	b.wg.Wait()
}

// Every calls fn right away and then interval after each call returns, until
// ctx is done. A slow call delays the next one instead of overlapping it.
func Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			fn(ctx)
			timer.Reset(interval)
		}
	}
}

// ResolveBatch resolves every job of batch in order and joins the answers
// with commas. A job that fails leaves its slot empty.
func ResolveBatch(ctx context.Context, resolver PairResolver, batch *types.Batch) (string, error) {
	answers := make([]string, len(batch.Pairs))
	for i := range batch.Pairs {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		job := batch.Pairs[i]
		answer, err := resolver.ResolvePair(ctx, &job)
		if err != nil {
			log.Errorf("[%s] Failed to resolve %s in batch %q: %v", batch.NetworkID, job.Pair, batch.Description, err)
			continue
		}
		answers[i] = answer
	}

	return strings.Join(answers, ","), nil
}
