package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const (
	eventOracleRequest = "OracleRequest"

	methodUpdateBlockHeader        = "updateBlockHeader"
	methodProceedUpdateBlockHeader = "proceedUpdateBlockHeader"
	methodDecimals                 = "decimals"
	methodTransmit                 = "transmit"
)

const oracleABIJSON = `[
	{
		"type": "event",
		"name": "OracleRequest",
		"anonymous": false,
		"inputs": [
			{"name": "requestId", "type": "uint256", "indexed": true},
			{"name": "toBridgeChainId", "type": "uint64", "indexed": false},
			{"name": "toNetworkType", "type": "string", "indexed": false},
			{"name": "toContract", "type": "address", "indexed": false},
			{"name": "confirmations", "type": "uint64", "indexed": false},
			{"name": "args", "type": "string[]", "indexed": false}
		]
	},
	{
		"type": "function",
		"name": "updateBlockHeader",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "requestId", "type": "uint256"},
			{"name": "remoteChainId", "type": "uint64"},
			{"name": "blockHash", "type": "bytes32"},
			{"name": "receiptsRoot", "type": "bytes32"},
			{"name": "confirmations", "type": "uint64"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "proceedUpdateBlockHeader",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "requestId", "type": "uint256"}],
		"outputs": []
	}
]`

const priceFeedABIJSON = `[
	{
		"type": "function",
		"name": "decimals",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint8"}]
	},
	{
		"type": "function",
		"name": "transmit",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "_answer", "type": "int192"}],
		"outputs": []
	}
]`

var (
	oracleABI    = mustParseABI(oracleABIJSON)
	priceFeedABI = mustParseABI(priceFeedABIJSON)

	oracleRequestTopic common.Hash = oracleABI.Events[eventOracleRequest].ID
)

// oracleRequestEvent holds the non-indexed fields of an OracleRequest log.
type oracleRequestEvent struct {
	ToBridgeChainID uint64         `abi:"toBridgeChainId"`
	ToNetworkType   string         `abi:"toNetworkType"`
	ToContract      common.Address `abi:"toContract"`
	Confirmations   uint64         `abi:"confirmations"`
	Args            []string       `abi:"args"`
}

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
