package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/GPTx-global/oracle-relayer/oracle/config"
	"github.com/GPTx-global/oracle-relayer/oracle/log"
	"github.com/GPTx-global/oracle-relayer/oracle/provider"
	"github.com/GPTx-global/oracle-relayer/oracle/sources"
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

// maxBlockRange caps how many blocks one log query covers.
const maxBlockRange = 5000

// Client is the part of an Ethereum JSON-RPC client the adapter needs.
type Client interface {
	bind.ContractBackend
	bind.DeployBackend
}

type chainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

var waitMined = bind.WaitMined

type priceFeed struct {
	address  common.Address
	decimals uint8
}

// Provider is the adapter for EVM networks.
type Provider struct {
	*provider.Base

	cfg      config.Network
	client   Client
	wallet   *Wallet
	chainID  *big.Int
	resolver *sources.Resolver
	feeds    cmap.ConcurrentMap[string, priceFeed]

	mu   sync.Mutex
	next map[common.Address]uint64
}

var _ provider.Provider = (*Provider)(nil)

// Factory dials the network's RPC endpoint and builds its adapter.
func Factory(resolver *sources.Resolver) provider.Factory {
	return func(ctx context.Context, network config.Network) (provider.Provider, error) {
		client, err := ethclient.DialContext(ctx, network.RPC)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", network.RPC, err)
		}
		return New(ctx, network, client, resolver)
	}
}

func New(ctx context.Context, network config.Network, client Client, resolver *sources.Resolver) (*Provider, error) {
	secret, err := network.Secret()
	if err != nil {
		return nil, err
	}

	wallet, err := NewWallet(secret)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrMissingSecret, "network %s: %v", network.ID, err)
	}

	chainID, err := resolveChainID(ctx, network, client)
	if err != nil {
		return nil, err
	}

	if resolver == nil {
		resolver = sources.NewResolver()
	}
	if network.GasLimit == 0 {
		network.GasLimit = config.DefaultGasLimit
	}

	p := &Provider{
		Base: provider.NewBase(provider.Descriptor{
			ID:                    network.ID,
			Network:               network.Descriptor(),
			OracleContractAddress: network.OracleContractAddress,
		}),
		cfg:      network,
		client:   client,
		wallet:   wallet,
		chainID:  chainID,
		resolver: resolver,
		feeds:    cmap.New[priceFeed](),
		next:     make(map[common.Address]uint64),
	}

	log.Infof("[%s] Using address: %s", network.ID, wallet.Address.Hex())
	return p, nil
}

func resolveChainID(ctx context.Context, network config.Network, client Client) (*big.Int, error) {
	if network.ChainID != 0 {
		return new(big.Int).SetUint64(network.ChainID), nil
	}

	reader, ok := client.(chainIDReader)
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrInvalidConfig, "network %s: chain_id is required", network.ID)
	}

	chainID, err := reader.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain id: %w", err)
	}
	return chainID, nil
}

// Address is the account the adapter signs with.
func (p *Provider) Address() common.Address {
	return p.wallet.Address
}

func (p *Provider) StartPolling(ctx context.Context) error {
	p.Poll(ctx, p.cfg.BlockPollingInterval.Std(), p.latestBlock)
	return nil
}

func (p *Provider) StartFetching(ctx context.Context, contract string, interval time.Duration) error {
	if !common.IsHexAddress(contract) {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "%q is not an address", contract)
	}
	address := common.HexToAddress(contract)

	start := p.cfg.StartBlock
	if start == 0 {
		head, err := p.client.HeaderByNumber(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to fetch latest block: %w", err)
		}
		start = head.Number.Uint64() + 1
	}

	p.mu.Lock()
	if _, ok := p.next[address]; !ok {
		p.next[address] = start
	}
	p.mu.Unlock()

	p.Fetch(ctx, interval, func(ctx context.Context) ([]types.OracleRequest, error) {
		return p.fetchRequests(ctx, address)
	})
	return nil
}

func (p *Provider) latestBlock(ctx context.Context) (types.Block, error) {
	header, err := p.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return types.Block{}, err
	}
	log.Debugf("[%s] Fetched block #%d", p.cfg.ID, header.Number.Uint64())
	return p.snapshot(header), nil
}

func (p *Provider) snapshot(header *ethtypes.Header) types.Block {
	return types.Block{
		Hash:         header.Hash().Hex(),
		ReceiptsRoot: header.ReceiptHash.Hex(),
		Number:       header.Number.Uint64(),
		Network:      p.Descriptor().Network,
	}
}

// fetchRequests scans the blocks since the last scan for OracleRequest logs.
// The scan position only advances when the whole range was read.
func (p *Provider) fetchRequests(ctx context.Context, contract common.Address) ([]types.OracleRequest, error) {
	head, err := p.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest block: %w", err)
	}

	p.mu.Lock()
	from := p.next[contract]
	p.mu.Unlock()

	to := head.Number.Uint64()
	if from > to {
		return nil, nil
	}
	if to-from+1 > maxBlockRange {
		to = from + maxBlockRange - 1
	}

	logs, err := p.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{contract},
		Topics:    [][]common.Hash{{oracleRequestTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs %d..%d: %w", from, to, err)
	}

	blocks := make(map[uint64]types.Block)
	requests := make([]types.OracleRequest, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}

		block, ok := blocks[l.BlockNumber]
		if !ok {
			header, err := p.client.HeaderByNumber(ctx, new(big.Int).SetUint64(l.BlockNumber))
			if err != nil {
				return nil, fmt.Errorf("failed to fetch block #%d: %w", l.BlockNumber, err)
			}
			if header == nil {
				return nil, fmt.Errorf("block #%d not found", l.BlockNumber)
			}
			block = p.snapshot(header)
			blocks[l.BlockNumber] = block
		}

		request, err := parseOracleRequest(l, block)
		if err != nil {
			log.Warnf("[%s] Skipping request in tx %s: %v", p.cfg.ID, l.TxHash.Hex(), err)
			continue
		}
		requests = append(requests, request)
	}

	p.mu.Lock()
	p.next[contract] = to + 1
	p.mu.Unlock()

	if len(requests) > 0 {
		log.Debugf("[%s] Found %d requests in blocks %d..%d", p.cfg.ID, len(requests), from, to)
	}
	return requests, nil
}

func parseOracleRequest(l ethtypes.Log, block types.Block) (types.OracleRequest, error) {
	if len(l.Topics) != 2 || l.Topics[0] != oracleRequestTopic {
		return types.OracleRequest{}, errorsmod.Wrap(types.ErrInvalidRequest, "not an OracleRequest log")
	}

	var ev oracleRequestEvent
	if err := oracleABI.UnpackIntoInterface(&ev, eventOracleRequest, l.Data); err != nil {
		return types.OracleRequest{}, errorsmod.Wrapf(types.ErrInvalidRequest, "failed to decode log: %v", err)
	}

	return types.OracleRequest{
		RequestID: sdkmath.NewIntFromBigInt(new(big.Int).SetBytes(l.Topics[1].Bytes())),
		ToNetwork: types.Network{
			Type:          types.NetworkType(strings.ToLower(ev.ToNetworkType)),
			BridgeChainID: types.BridgeChainID(ev.ToBridgeChainID),
		},
		FromOracleAddress:     l.Address.Hex(),
		ToContractAddress:     ev.ToContract.Hex(),
		ConfirmationsRequired: ev.Confirmations,
		Block:                 block,
		Args:                  ev.Args,
	}, nil
}

// ResolveRequest writes the origin block header of req to the oracle contract.
func (p *Provider) ResolveRequest(ctx context.Context, oracle string, req *types.OracleRequest) (string, error) {
	if req.RequestID.IsNil() {
		return "", errorsmod.Wrap(types.ErrInvalidRequest, "request id is missing")
	}

	receipt, err := p.transact(ctx, oracle, oracleABI, methodUpdateBlockHeader,
		req.RequestID.BigInt(),
		uint64(req.Block.Network.BridgeChainID),
		common.HexToHash(req.Block.Hash),
		common.HexToHash(req.Block.ReceiptsRoot),
		req.Confirmations,
	)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// MarkAsResolved tells the origin oracle contract that req was processed.
func (p *Provider) MarkAsResolved(ctx context.Context, oracle string, req *types.ResolveRequest) error {
	if req.RequestID.IsNil() {
		return errorsmod.Wrap(types.ErrInvalidRequest, "request id is missing")
	}

	_, err := p.transact(ctx, oracle, oracleABI, methodProceedUpdateBlockHeader, req.RequestID.BigInt())
	return err
}

func (p *Provider) ResolveBatch(ctx context.Context, batch *types.Batch) (string, error) {
	return provider.ResolveBatch(ctx, p, batch)
}

// ResolvePair resolves the sources of job and transmits the answer to its feed.
func (p *Provider) ResolvePair(ctx context.Context, job *types.PushJob) (string, error) {
	feed, err := p.priceFeed(ctx, job)
	if err != nil {
		return "", err
	}

	answer, err := p.resolver.Resolve(ctx, job.Sources, feed.decimals)
	if err != nil {
		return "", fmt.Errorf("could not resolve %s: %w", job.Pair, err)
	}

	value, ok := new(big.Int).SetString(answer, 10)
	if !ok {
		return "", fmt.Errorf("answer %q for %s is not an integer", answer, job.Pair)
	}

	if _, err := p.transact(ctx, feed.address.Hex(), priceFeedABI, methodTransmit, value); err != nil {
		return "", err
	}
	return answer, nil
}

// priceFeed returns the cached feed of job, reading its decimals on first use.
func (p *Provider) priceFeed(ctx context.Context, job *types.PushJob) (priceFeed, error) {
	if feed, ok := p.feeds.Get(job.ContractAddress); ok {
		return feed, nil
	}

	if !common.IsHexAddress(job.ContractAddress) {
		return priceFeed{}, errorsmod.Wrapf(types.ErrInvalidConfig, "pair %s: %q is not an address", job.Pair, job.ContractAddress)
	}
	feed := priceFeed{address: common.HexToAddress(job.ContractAddress)}

	decimals, err := p.readDecimals(ctx, feed.address)
	switch {
	case err == nil:
		feed.decimals = decimals
	case job.DefaultDecimals != nil:
		log.Warnf("[%s] Could not read decimals of %s, using %d: %v", p.cfg.ID, job.ContractAddress, *job.DefaultDecimals, err)
		feed.decimals = *job.DefaultDecimals
	default:
		return priceFeed{}, fmt.Errorf("failed to read decimals of %s: %w", job.ContractAddress, err)
	}

	log.Infof("[%s] - Using decimals: %d", types.PairID(job), feed.decimals)
	p.feeds.Set(job.ContractAddress, feed)
	return feed, nil
}

func (p *Provider) readDecimals(ctx context.Context, address common.Address) (uint8, error) {
	bound := bind.NewBoundContract(address, priceFeedABI, p.client, p.client, p.client)

	var out []interface{}
	if err := bound.Call(&bind.CallOpts{Context: ctx}, &out, methodDecimals); err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("decimals returned %d values", len(out))
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// transact sends one transaction and waits for it to be mined. Nonces come
// from the pending state; the network queue guarantees one transaction at a time.
func (p *Provider) transact(ctx context.Context, contract string, parsed abi.ABI, method string, args ...interface{}) (*ethtypes.Receipt, error) {
	if !common.IsHexAddress(contract) {
		return nil, errorsmod.Wrapf(types.ErrInvalidConfig, "%q is not an address", contract)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(p.wallet.key, p.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = p.cfg.GasLimit

	bound := bind.NewBoundContract(common.HexToAddress(contract), parsed, p.client, p.client, p.client)
	tx, err := bound.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}
	log.Debugf("[%s] Sent %s in %s", p.cfg.ID, method, tx.Hash().Hex())

	receipt, err := waitMined(ctx, p.client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s transaction %s reverted", method, tx.Hash().Hex())
	}

	return receipt, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.HeaderByNumber(ctx, nil); err != nil {
		return fmt.Errorf("rpc %s unreachable: %w", p.cfg.RPC, err)
	}
	return nil
}
