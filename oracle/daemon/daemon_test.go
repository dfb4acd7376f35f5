package daemon_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	sdkmath "cosmossdk.io/math"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/GPTx-global/oracle-relayer/oracle/config"
	"github.com/GPTx-global/oracle-relayer/oracle/daemon"
	"github.com/GPTx-global/oracle-relayer/oracle/log"
	"github.com/GPTx-global/oracle-relayer/oracle/provider"
	"github.com/GPTx-global/oracle-relayer/oracle/provider/providertest"
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Relayer.QueueInterval = config.Duration(5 * time.Millisecond)
	cfg.Relayer.StatusAddr = "127.0.0.1:0"
	cfg.Relayer.HealthInterval = config.Duration(time.Hour)
	cfg.Networks = []config.Network{
		{ID: "origin", Type: types.NetworkEVM, BridgeChainID: 1},
		{ID: "dest", Type: types.NetworkEVM, BridgeChainID: 2},
	}
	cfg.RequestListeners = []config.RequestListener{
		{NetworkID: "origin", ContractAddress: "0xoracle-origin", Interval: config.Duration(time.Second)},
	}
	cfg.Batches = []types.Batch{
		{
			NetworkID:       "dest",
			Description:     "majors",
			ContractAddress: "0xbatch",
			Interval:        60_000,
			Pairs: []types.PushJob{
				{Pair: "BTC/USD", ContractAddress: "0xbtc", NetworkID: "dest", Interval: 60_000},
				{Pair: "ETH/USD", ContractAddress: "0xeth", NetworkID: "dest", Interval: 60_000},
			},
		},
	}
	return cfg
}

var _ = Describe("Daemon", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		cfg    *config.Config
		origin *providertest.Provider
		dest   *providertest.Provider
		d      *daemon.Daemon

		destDown atomic.Bool
	)

	BeforeEach(func() {
		log.InitLogger(log.Options{Level: "error"})

		ctx, cancel = context.WithCancel(context.Background())
		cfg = testConfig()
		origin = providertest.EVM("origin", 1)
		dest = providertest.EVM("dest", 2)
		destDown.Store(false)
		dest.HealthCheckFunc = func(context.Context) error {
			if destDown.Load() {
				return errors.New("rpc down")
			}
			return nil
		}
	})

	AfterEach(func() {
		if d != nil {
			Expect(d.Stop()).To(Succeed())
			d = nil
		}
		cancel()
	})

	Context("when started", func() {
		BeforeEach(func() {
			var err error
			d, err = daemon.New(ctx, cfg, daemon.WithProviders(origin, dest))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Start(ctx)).To(Succeed())
		})

		It("polls every network and listens on the configured contract", func() {
			Expect(origin.Calls(providertest.MethodStartPolling)).To(HaveLen(1))
			Expect(dest.Calls(providertest.MethodStartPolling)).To(HaveLen(1))

			fetching := origin.Calls(providertest.MethodStartFetching)
			Expect(fetching).To(HaveLen(1))
			Expect(fetching[0].Oracle).To(Equal("0xoracle-origin"))
			Expect(dest.Calls(providertest.MethodStartFetching)).To(BeEmpty())
		})

		It("pushes configured batches right away", func() {
			Eventually(func() []providertest.Call {
				return dest.Calls(providertest.MethodResolveBatch)
			}).Should(HaveLen(1))
			Expect(dest.Calls(providertest.MethodResolveBatch)[0].PairID).To(Equal("dest-majors-BTC/USD-60000"))
		})

		It("relays a confirmed request and acknowledges it on the origin", func() {
			origin.Detect(types.OracleRequest{
				RequestID:             sdkmath.NewInt(7),
				ToNetwork:             types.Network{Type: types.NetworkEVM, BridgeChainID: 2},
				ToContractAddress:     "0xdest",
				ConfirmationsRequired: 3,
				Block:                 types.Block{Number: 100},
			})

			origin.SetHead(102)
			Consistently(func() []providertest.Call {
				return dest.Calls(providertest.MethodResolveRequest)
			}, 50*time.Millisecond).Should(BeEmpty())

			origin.SetHead(103)
			Eventually(func() []providertest.Call {
				return dest.Calls(providertest.MethodResolveRequest)
			}).Should(HaveLen(1))
			Expect(dest.Calls(providertest.MethodResolveRequest)[0].PairID).To(Equal("0xdest-100-3-2-1"))

			Eventually(func() []providertest.Call {
				return origin.Calls(providertest.MethodMarkAsResolved)
			}).Should(HaveLen(1))
			Expect(origin.Calls(providertest.MethodMarkAsResolved)[0].PairID).To(Equal("resolve-7"))
		})

		It("reports provider health", func() {
			d.Health().RunChecks(ctx)
			Expect(d.Health().IsHealthy()).To(BeTrue())

			destDown.Store(true)
			d.Health().RunChecks(ctx)
			Expect(d.Health().IsHealthy()).To(BeFalse())
			Expect(d.Health().GetStatus()["rpc/dest"].LastError).To(Equal("rpc down"))
		})

		It("stops every loop when the parent context ends", func() {
			cancel()

			done := make(chan error, 1)
			go func() { done <- d.Wait() }()
			Eventually(done).Should(Receive())
		})

		It("exposes one queue per network", func() {
			snapshots := d.Arena().Snapshots()
			Expect(snapshots).To(HaveLen(2))
			Expect([]string{snapshots[0].Network, snapshots[1].Network}).To(ConsistOf("origin", "dest"))
		})
	})

	Context("when the config is inconsistent", func() {
		AfterEach(func() {
			d = nil
		})

		It("rejects a batch for an unknown network", func() {
			cfg.Batches[0].NetworkID = "nowhere"

			var err error
			d, err = daemon.New(ctx, cfg, daemon.WithProviders(origin, dest))
			Expect(err).To(MatchError(types.ErrUnknownNetwork))
		})

		It("refuses to start with a listener on an unknown network", func() {
			cfg.RequestListeners[0].NetworkID = "nowhere"

			var err error
			d, err = daemon.New(ctx, cfg, daemon.WithProviders(origin, dest))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Start(ctx)).To(MatchError(types.ErrUnknownNetwork))
			Expect(origin.Calls(providertest.MethodStartFetching)).To(BeEmpty())
		})

		It("starts nothing when the status address is taken", func() {
			taken, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			defer taken.Close()
			cfg.Relayer.StatusAddr = taken.Addr().String()

			d, err = daemon.New(ctx, cfg, daemon.WithProviders(origin, dest))
			Expect(err).NotTo(HaveOccurred())

			Expect(d.Start(ctx)).To(MatchError(ContainSubstring(taken.Addr().String())))
			Expect(origin.Calls(providertest.MethodStartPolling)).To(BeEmpty())
			Expect(origin.Calls(providertest.MethodStartFetching)).To(BeEmpty())
			Expect(d.Stop()).To(Succeed())
		})

		It("fails when a network type has no adapter", func() {
			var err error
			d, err = daemon.New(ctx, cfg, daemon.WithRegistry(provider.NewRegistry()))
			Expect(err).To(MatchError(types.ErrUnsupportedNetwork))
		})
	})
})
