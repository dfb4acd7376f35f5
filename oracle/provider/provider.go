package provider

import (
	"context"
	"time"

	"github.com/GPTx-global/oracle-relayer/oracle/delayer"
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

// Descriptor identifies the network a provider serves.
type Descriptor struct {
	ID                    string
	Network               types.Network
	OracleContractAddress string
}

// Provider is what the relayer needs from a network adapter.
//
// StartPolling and StartFetching launch background loops bound to ctx and
// return once they are running. The resolve calls mutate chain state and are
// only ever issued by the network's own queue, one at a time.
type Provider interface {
	Descriptor() Descriptor

	// StartPolling refreshes the latest block and feeds it to the delayer.
	StartPolling(ctx context.Context) error
	// StartFetching detects requests emitted by contract and feeds them to the delayer.
	StartFetching(ctx context.Context, contract string, interval time.Duration) error
	// OnRequests registers a handler for requests that reached their confirmations.
	OnRequests(handler delayer.Handler)

	ResolveRequest(ctx context.Context, oracle string, req *types.OracleRequest) (string, error)
	MarkAsResolved(ctx context.Context, oracle string, req *types.ResolveRequest) error
	ResolveBatch(ctx context.Context, batch *types.Batch) (string, error)
	ResolvePair(ctx context.Context, job *types.PushJob) (string, error)

	HealthCheck(ctx context.Context) error
}

// PairResolver resolves a single push job.
type PairResolver interface {
	ResolvePair(ctx context.Context, job *types.PushJob) (string, error)
}
