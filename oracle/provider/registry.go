package provider

import (
	"context"
	"strings"
	"sync"

	errorsmod "cosmossdk.io/errors"

	"github.com/GPTx-global/oracle-relayer/oracle/config"
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

// Factory builds the adapter of one configured network.
type Factory func(ctx context.Context, network config.Network) (Provider, error)

// Registry maps network kinds to adapter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[types.NetworkType]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[types.NetworkType]Factory)}
}

// Register installs the factory for kind, replacing any previous one.
func (r *Registry) Register(kind types.NetworkType, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[normalize(kind)] = factory
}

// New builds the adapter for network. Kinds without a factory are rejected.
func (r *Registry) New(ctx context.Context, network config.Network) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[normalize(network.Type)]
	r.mu.RUnlock()

	if !ok {
		return nil, errorsmod.Wrapf(types.ErrUnsupportedNetwork, "network %s has type %q", network.ID, network.Type)
	}

	p, err := factory(ctx, network)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "network %s", network.ID)
	}
	return p, nil
}

func normalize(kind types.NetworkType) types.NetworkType {
	return types.NetworkType(strings.ToLower(string(kind)))
}
