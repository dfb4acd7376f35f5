package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GPTx-global/oracle-relayer/oracle/config"
	"github.com/GPTx-global/oracle-relayer/oracle/evm"
	"github.com/GPTx-global/oracle-relayer/oracle/health"
	"github.com/GPTx-global/oracle-relayer/oracle/log"
	"github.com/GPTx-global/oracle-relayer/oracle/provider"
	"github.com/GPTx-global/oracle-relayer/oracle/queue"
	"github.com/GPTx-global/oracle-relayer/oracle/retry"
	"github.com/GPTx-global/oracle-relayer/oracle/scheduler"
	"github.com/GPTx-global/oracle-relayer/oracle/searcher"
	"github.com/GPTx-global/oracle-relayer/oracle/server"
	"github.com/GPTx-global/oracle-relayer/oracle/sources"
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

const shutdownTimeout = 10 * time.Second

type Daemon struct {
	cfg *config.Config

	providers []provider.Provider
	arena     *queue.Arena
	scheduler *scheduler.Scheduler
	health    *health.Checker
	server    *server.Server

	cancel context.CancelFunc
	group  *errgroup.Group
}

type options struct {
	registry  *provider.Registry
	providers []provider.Provider
}

type Option func(*options)

// WithRegistry builds the network adapters with registry instead of DefaultRegistry.
func WithRegistry(registry *provider.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithProviders uses already built adapters instead of building them from the config.
func WithProviders(providers ...provider.Provider) Option {
	return func(o *options) { o.providers = providers }
}

// DefaultRegistry knows every supported network type.
func DefaultRegistry() *provider.Registry {
	registry := provider.NewRegistry()
	registry.Register(types.NetworkEVM, evm.Factory(sources.NewResolver()))
	return registry
}

// New connects to every configured network and wires the queues, the
// scheduler and the status server. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Daemon, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Daemon{cfg: cfg, providers: o.providers}
	if d.providers == nil {
		if o.registry == nil {
			o.registry = DefaultRegistry()
		}
		for _, n := range cfg.Networks {
			p, err := o.registry.New(ctx, n)
			if err != nil {
				return nil, fmt.Errorf("failed to create provider for %s: %w", n.ID, err)
			}
			log.Infof("[%s] Connected to %s", n.ID, n.Descriptor())
			d.providers = append(d.providers, p)
		}
	}

	policy := retry.FromConfig(cfg.Relayer.Failure)
	queues := make([]*queue.NetworkQueue, 0, len(d.providers))
	for _, p := range d.providers {
		queues = append(queues, queue.New(p, policy))
	}
	d.arena = queue.NewArena(queues...)

	d.scheduler = scheduler.New(d.arena)
	for _, b := range cfg.Batches {
		if err := d.scheduler.AddBatch(b); err != nil {
			return nil, err
		}
	}
	for _, p := range cfg.Pairs {
		if err := d.scheduler.AddPair(p); err != nil {
			return nil, err
		}
	}

	d.health = health.NewChecker(cfg.Relayer.HealthInterval.Std())
	for _, p := range d.providers {
		d.health.AddCheck(health.ProviderCheck(p))
	}

	if cfg.Relayer.StatusAddr != "" {
		d.server = server.New(cfg.Relayer.StatusAddr, d.health, d.arena)
	}

	return d, nil
}

// Start binds the status address, then launches block polling, request
// detection, the queues, the scheduler and the status server. It returns once
// everything is running; nothing is started when the address cannot be bound.
func (d *Daemon) Start(ctx context.Context) error {
	if d.server != nil {
		if err := d.server.Listen(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)

	for _, p := range d.providers {
		if err := p.StartPolling(ctx); err != nil {
			cancel()
			d.closeServer()
			return fmt.Errorf("failed to start polling %s: %w", p.Descriptor().ID, err)
		}
	}

	if err := searcher.Search(ctx, d.cfg.RequestListeners, d.arena); err != nil {
		cancel()
		d.closeServer()
		return err
	}

	d.cancel, d.group = cancel, group

	interval := d.cfg.Relayer.QueueInterval.Std()
	for _, q := range d.arena.All() {
		q := q
		d.group.Go(func() error {
			q.Start(ctx, interval)
			return nil
		})
	}

	d.scheduler.Start()

	d.group.Go(func() error {
		d.health.Start(ctx)
		return nil
	})

	if d.server != nil {
		d.group.Go(d.server.Start)
		d.group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return d.server.Shutdown(shutdownCtx)
		})
	}

	log.Infof("Relayer started with %d networks", len(d.providers))
	return nil
}

func (d *Daemon) closeServer() {
	if d.server == nil {
		return
	}
	if err := d.server.Shutdown(context.Background()); err != nil {
		log.Warnf("Failed to close status server: %v", err)
	}
}

// Wait blocks until the daemon stops and returns the first error that stopped it.
// A component failing cancels every other one.
func (d *Daemon) Wait() error {
	if d.group == nil {
		return nil
	}
	return d.group.Wait()
}

// Stop cancels every loop and waits for them to return.
func (d *Daemon) Stop() error {
	if d.cancel == nil {
		return nil
	}
	d.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	d.scheduler.Stop(ctx)

	err := d.Wait()
	for _, p := range d.providers {
		if w, ok := p.(interface{ Wait() }); ok {
			w.Wait()
		}
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	log.Info("Relayer stopped")
	return err
}

func (d *Daemon) Arena() *queue.Arena {
	return d.arena
}

func (d *Daemon) Health() *health.Checker {
	return d.health
}
