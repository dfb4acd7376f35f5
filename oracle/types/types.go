package types

import (
	"fmt"
	"strconv"

	sdkmath "cosmossdk.io/math"
)

// Kind discriminates the shapes of work a network queue can hold.
type Kind byte

const (
	KindUnknown Kind = iota
	KindOracleRequest
	KindBatch
	KindResolve
	KindPushJob
)

func (k Kind) String() string {
	switch k {
	case KindOracleRequest:
		return "request"
	case KindBatch:
		return "batch"
	case KindResolve:
		return "resolve"
	case KindPushJob:
		return "push"
	default:
		return "unknown"
	}
}

// Item is a unit of work. Only the types in this package implement it.
type Item interface {
	Kind() Kind
	isItem()
}

// OracleRequest is a cross-chain request detected on its origin network.
type OracleRequest struct {
	RequestID             sdkmath.Int
	ToNetwork             Network
	FromOracleAddress     string
	ToContractAddress     string
	ConfirmationsRequired uint64
	Confirmations         uint64
	// Block is the origin block the request was emitted in.
	Block Block
	Args  []string
}

// Source describes one HTTP price source of a push job.
type Source struct {
	EndPoint   string `json:"end_point" toml:"end_point"`
	SourcePath string `json:"source_path" toml:"source_path"`
	Multiplier string `json:"multiplier,omitempty" toml:"multiplier,omitempty"`
}

// PushJob pushes one price pair to a feed contract on its own network.
type PushJob struct {
	Description     string   `json:"description" toml:"description"`
	Pair            string   `json:"pair" toml:"pair"`
	ContractAddress string   `json:"contract_address" toml:"contract_address"`
	Sources         []Source `json:"sources" toml:"sources"`
	// Interval is in milliseconds.
	Interval        int64  `json:"interval" toml:"interval"`
	NetworkID       string `json:"network_id" toml:"network_id"`
	DefaultDecimals *uint8 `json:"default_decimals,omitempty" toml:"default_decimals,omitempty"`
}

// Batch groups push jobs that are resolved together on one network.
type Batch struct {
	Pairs           []PushJob `json:"pairs" toml:"pairs"`
	ContractAddress string    `json:"contract_address" toml:"contract_address"`
	Description     string    `json:"description" toml:"description"`
	// Interval is in milliseconds.
	Interval  int64  `json:"interval" toml:"interval"`
	NetworkID string `json:"network_id" toml:"network_id"`
}

// ResolveRequest acknowledges on the origin network that a request was processed.
type ResolveRequest struct {
	RequestID sdkmath.Int
}

func (*OracleRequest) Kind() Kind  { return KindOracleRequest }
func (*Batch) Kind() Kind          { return KindBatch }
func (*ResolveRequest) Kind() Kind { return KindResolve }
func (*PushJob) Kind() Kind        { return KindPushJob }

func (*OracleRequest) isItem()  {}
func (*Batch) isItem()          {}
func (*ResolveRequest) isItem() {}
func (*PushJob) isItem()        {}

// Classify returns the shape of item.
func Classify(item Item) Kind {
	if item == nil {
		return KindUnknown
	}
	return item.Kind()
}

// PairID derives the deduplication key of item.
func PairID(item Item) string {
	switch it := item.(type) {
	case *ResolveRequest:
		return fmt.Sprintf("%s-%s", KindResolve, requestIDString(it.RequestID))
	case *Batch:
		first := ""
		if len(it.Pairs) > 0 {
			first = it.Pairs[0].Pair
		}
		return fmt.Sprintf("%s-%s-%s-%s", it.NetworkID, it.Description, first, strconv.FormatInt(it.Interval, 10))
	case *OracleRequest:
		return fmt.Sprintf("%s-%d-%d-%d-%d",
			it.ToContractAddress,
			it.Block.Number,
			it.ConfirmationsRequired,
			it.ToNetwork.BridgeChainID,
			it.Block.Network.BridgeChainID,
		)
	case *PushJob:
		return fmt.Sprintf("%s-%s-%s", it.NetworkID, it.Pair, it.ContractAddress)
	default:
		return ""
	}
}

func requestIDString(id sdkmath.Int) string {
	if id.IsNil() {
		return "0"
	}
	return id.String()
}

// NewResolveRequest builds the acknowledgment for a processed request.
func NewResolveRequest(req *OracleRequest) *ResolveRequest {
	return &ResolveRequest{RequestID: req.RequestID}
}
