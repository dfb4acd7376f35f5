// Package providertest provides an in-memory Provider for tests.
package providertest

import (
	"context"
	"sync"
	"time"

	"github.com/GPTx-global/oracle-relayer/oracle/provider"
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

const (
	MethodStartPolling   = "StartPolling"
	MethodStartFetching  = "StartFetching"
	MethodResolveRequest = "ResolveRequest"
	MethodMarkAsResolved = "MarkAsResolved"
	MethodResolveBatch   = "ResolveBatch"
	MethodResolvePair    = "ResolvePair"
)

// Call is one recorded invocation.
type Call struct {
	Method string
	Oracle string
	// PairID is the identity of the item the call was made for, if any.
	PairID string
	Item   types.Item
}

// Provider records every call and answers with the configured funcs. Unset
// funcs succeed with an empty answer.
type Provider struct {
	*provider.Base

	ResolveRequestFunc func(ctx context.Context, oracle string, req *types.OracleRequest) (string, error)
	MarkAsResolvedFunc func(ctx context.Context, oracle string, req *types.ResolveRequest) error
	ResolvePairFunc    func(ctx context.Context, job *types.PushJob) (string, error)
	HealthCheckFunc    func(ctx context.Context) error

	mu    sync.Mutex
	calls []Call
}

var _ provider.Provider = (*Provider)(nil)

func New(id string, network types.Network) *Provider {
	return &Provider{
		Base: provider.NewBase(provider.Descriptor{
			ID:                    id,
			Network:               network,
			OracleContractAddress: "0xoracle-" + id,
		}),
	}
}

// EVM builds a fake for an EVM network with the given bridge chain id.
func EVM(id string, bridgeChainID types.BridgeChainID) *Provider {
	return New(id, types.Network{Type: types.NetworkEVM, BridgeChainID: bridgeChainID})
}

func (p *Provider) StartPolling(context.Context) error {
	p.record(Call{Method: MethodStartPolling})
	return nil
}

func (p *Provider) StartFetching(_ context.Context, contract string, _ time.Duration) error {
	p.record(Call{Method: MethodStartFetching, Oracle: contract})
	return nil
}

func (p *Provider) ResolveRequest(ctx context.Context, oracle string, req *types.OracleRequest) (string, error) {
	p.record(Call{Method: MethodResolveRequest, Oracle: oracle, PairID: types.PairID(req), Item: req})
	if p.ResolveRequestFunc != nil {
		return p.ResolveRequestFunc(ctx, oracle, req)
	}
	return "", nil
}

func (p *Provider) MarkAsResolved(ctx context.Context, oracle string, req *types.ResolveRequest) error {
	p.record(Call{Method: MethodMarkAsResolved, Oracle: oracle, PairID: types.PairID(req), Item: req})
	if p.MarkAsResolvedFunc != nil {
		return p.MarkAsResolvedFunc(ctx, oracle, req)
	}
	return nil
}

func (p *Provider) ResolveBatch(ctx context.Context, batch *types.Batch) (string, error) {
	p.record(Call{Method: MethodResolveBatch, PairID: types.PairID(batch), Item: batch})
	return provider.ResolveBatch(ctx, pairResolver{p}, batch)
}

func (p *Provider) ResolvePair(ctx context.Context, job *types.PushJob) (string, error) {
	p.record(Call{Method: MethodResolvePair, PairID: types.PairID(job), Item: job})
	return p.resolvePair(ctx, job)
}

func (p *Provider) resolvePair(ctx context.Context, job *types.PushJob) (string, error) {
	if p.ResolvePairFunc != nil {
		return p.ResolvePairFunc(ctx, job)
	}
	return job.Pair, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	if p.HealthCheckFunc != nil {
		return p.HealthCheckFunc(ctx)
	}
	return nil
}

// Detect simulates a request showing up on chain.
func (p *Provider) Detect(req types.OracleRequest) {
	if req.Block.Network == (types.Network{}) {
		req.Block.Network = p.Descriptor().Network
	}
	p.Delayer().AddRequest(req)
}

// SetHead simulates the block poller seeing a new head.
func (p *Provider) SetHead(number uint64) {
	p.Delayer().SetBlock(types.Block{Number: number, Network: p.Descriptor().Network})
}

// Calls returns the recorded calls of method, or every call when method is empty.
func (p *Provider) Calls(method string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []Call
	for _, c := range p.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (p *Provider) record(c Call) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, c)
}

// pairResolver resolves batch jobs without recording them as ResolvePair calls.
type pairResolver struct{ p *Provider }

func (r pairResolver) ResolvePair(ctx context.Context, job *types.PushJob) (string, error) {
	return r.p.resolvePair(ctx, job)
}
