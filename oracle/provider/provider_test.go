package provider_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/suite"

	"github.com/GPTx-global/oracle-relayer/oracle/config"
	"github.com/GPTx-global/oracle-relayer/oracle/log"
	"github.com/GPTx-global/oracle-relayer/oracle/provider"
	"github.com/GPTx-global/oracle-relayer/oracle/provider/providertest"
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

type ProviderTestSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
}

func TestProviderTestSuite(t *testing.T) {
	suite.Run(t, new(ProviderTestSuite))
}

func (s *ProviderTestSuite) SetupTest() {
	log.InitLogger(log.Options{Level: "error"})
	s.ctx, s.cancel = context.WithCancel(context.Background())
}

func (s *ProviderTestSuite) TearDownTest() {
	s.cancel()
}

func (s *ProviderTestSuite) TestEveryRunsImmediatelyAndStops() {
	var calls atomic.Int32
	done := make(chan struct{})

	go func() {
		provider.Every(s.ctx, 5*time.Millisecond, func(context.Context) { calls.Add(1) })
		close(done)
	}()

	s.Require().Eventually(func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	s.cancel()
	s.Require().Eventually(func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func (s *ProviderTestSuite) TestEveryDoesNotOverlap() {
	var running, overlapped atomic.Int32
	var calls atomic.Int32

	go provider.Every(s.ctx, time.Millisecond, func(context.Context) {
		if running.Add(1) > 1 {
			overlapped.Add(1)
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		calls.Add(1)
	})

	s.Require().Eventually(func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	s.Zero(overlapped.Load())
}

func (s *ProviderTestSuite) TestPollFeedsDelayer() {
	base := provider.NewBase(provider.Descriptor{ID: "origin"})
	var height atomic.Uint64
	height.Store(100)

	var mu sync.Mutex
	var released []types.OracleRequest
	base.OnRequests(func(req types.OracleRequest) {
		mu.Lock()
		released = append(released, req)
		mu.Unlock()
	})
	base.Delayer().AddRequest(types.OracleRequest{RequestID: sdkmath.NewInt(1), ConfirmationsRequired: 2, Block: types.Block{Number: 100}})

	base.Poll(s.ctx, time.Millisecond, func(context.Context) (types.Block, error) {
		return types.Block{Number: height.Load()}, nil
	})

	s.Require().Eventually(func() bool { return base.Delayer().LatestBlock() != nil }, time.Second, time.Millisecond)
	height.Store(102)
	s.Require().Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(released) == 1
	}, time.Second, time.Millisecond)

	s.cancel()
	base.Wait()
}

func (s *ProviderTestSuite) TestPollSurvivesErrors() {
	base := provider.NewBase(provider.Descriptor{ID: "origin"})
	var calls atomic.Int32

	base.Poll(s.ctx, time.Millisecond, func(context.Context) (types.Block, error) {
		if calls.Add(1) < 3 {
			return types.Block{}, errors.New("rpc down")
		}
		return types.Block{Number: 7}, nil
	})

	s.Require().Eventually(func() bool {
		b := base.Delayer().LatestBlock()
		return b != nil && b.Number == 7
	}, time.Second, time.Millisecond)
}

func (s *ProviderTestSuite) TestFetchBuffersRequests() {
	base := provider.NewBase(provider.Descriptor{ID: "origin"})

	base.Fetch(s.ctx, time.Millisecond, func(context.Context) ([]types.OracleRequest, error) {
		return []types.OracleRequest{
			{RequestID: sdkmath.NewInt(1), ToContractAddress: "0xa", Block: types.Block{Number: 1}},
			{RequestID: sdkmath.NewInt(2), ToContractAddress: "0xb", Block: types.Block{Number: 1}},
		}, nil
	})

	s.Require().Eventually(func() bool { return base.Delayer().Pending() == 2 }, time.Second, time.Millisecond)
	// repeated detections of the same requests stay deduplicated
	time.Sleep(10 * time.Millisecond)
	s.Equal(2, base.Delayer().Pending())
}

func (s *ProviderTestSuite) TestResolveBatchKeepsOrderAndEmptySlots() {
	fake := providertest.EVM("eth", 1)
	fake.ResolvePairFunc = func(_ context.Context, job *types.PushJob) (string, error) {
		if job.Pair == "ETH/USD" {
			return "", errors.New("no sources answered")
		}
		return job.Pair + "=1", nil
	}
	batch := &types.Batch{
		NetworkID: "eth",
		Pairs:     []types.PushJob{{Pair: "BTC/USD"}, {Pair: "ETH/USD"}, {Pair: "SOL/USD"}},
	}

	answer, err := provider.ResolveBatch(s.ctx, fake, batch)

	s.NoError(err)
	s.Equal("BTC/USD=1,,SOL/USD=1", answer)
}

func (s *ProviderTestSuite) TestResolveBatchStopsOnCancel() {
	fake := providertest.EVM("eth", 1)
	s.cancel()

	_, err := provider.ResolveBatch(s.ctx, fake, &types.Batch{Pairs: []types.PushJob{{Pair: "BTC/USD"}}})

	s.ErrorIs(err, context.Canceled)
}

func (s *ProviderTestSuite) TestRegistry() {
	registry := provider.NewRegistry()
	registry.Register("EVM", func(_ context.Context, n config.Network) (provider.Provider, error) {
		return providertest.New(n.ID, n.Descriptor()), nil
	})

	p, err := registry.New(s.ctx, config.Network{ID: "eth", Type: types.NetworkEVM, BridgeChainID: 1})
	s.Require().NoError(err)
	s.Equal("eth", p.Descriptor().ID)

	_, err = registry.New(s.ctx, config.Network{ID: "near", Type: types.NetworkNear})
	s.ErrorIs(err, types.ErrUnsupportedNetwork)
}

func (s *ProviderTestSuite) TestRegistryWrapsFactoryError() {
	registry := provider.NewRegistry()
	registry.Register(types.NetworkEVM, func(context.Context, config.Network) (provider.Provider, error) {
		return nil, types.ErrMissingSecret
	})

	_, err := registry.New(s.ctx, config.Network{ID: "eth", Type: types.NetworkEVM})

	s.ErrorIs(err, types.ErrMissingSecret)
	s.Contains(err.Error(), "network eth")
}
