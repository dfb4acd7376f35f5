package searcher

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"github.com/GPTx-global/oracle-relayer/oracle/config"
	"github.com/GPTx-global/oracle-relayer/oracle/delayer"
	"github.com/GPTx-global/oracle-relayer/oracle/log"
	"github.com/GPTx-global/oracle-relayer/oracle/metrics"
	"github.com/GPTx-global/oracle-relayer/oracle/queue"
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

// Search connects every request listener to the queues: requests its network
// detects are routed, once confirmed, to the queue of their destination.
// A listener naming an unconfigured network is an error and nothing is started.
func Search(ctx context.Context, listeners []config.RequestListener, arena *queue.Arena) error {
	sources := make([]*queue.NetworkQueue, len(listeners))
	for i, l := range listeners {
		q, ok := arena.Get(l.NetworkID)
		if !ok {
			return errorsmod.Wrapf(types.ErrUnknownNetwork, "could not find provider for listener network %q", l.NetworkID)
		}
		sources[i] = q
	}

	route := Route(arena)
	routed := make(map[string]struct{})

	for i, l := range listeners {
		from := sources[i]
		if _, ok := routed[from.ID()]; !ok {
			from.Provider().OnRequests(route)
			routed[from.ID()] = struct{}{}
		}

		if err := from.Provider().StartFetching(ctx, l.ContractAddress, l.Interval.Std()); err != nil {
			return fmt.Errorf("failed to start fetching %s on %s: %w", l.ContractAddress, l.NetworkID, err)
		}
		log.Infof("[%s] Listening for requests on %s every %v", l.NetworkID, l.ContractAddress, l.Interval)
	}

	return nil
}

// Route returns the handler that queues a confirmed request on its destination.
// Requests for a network without a queue are logged and dropped.
func Route(lookup queue.Lookup) delayer.Handler {
	return func(request types.OracleRequest) {
		dest, ok := lookup.ByNetwork(request.ToNetwork)
		if !ok {
			err := errorsmod.Wrapf(types.ErrNoRoute, "could not find network %s with chain id %d",
				request.ToNetwork.Type, request.ToNetwork.BridgeChainID)
			log.Errorf("[%s] %v", request.Block.Network, err)
			metrics.RoutingError(request.Block.Network.String())
			return
		}

		dest.Enqueue(&request)
	}
}
