package types

import (
	"fmt"
	"strings"
)

// NetworkType is the kind of chain a network adapter talks to.
type NetworkType string

const (
	NetworkEVM  NetworkType = "evm"
	NetworkNear NetworkType = "near"
)

// BridgeChainID is the bridge-wide identifier of a chain. It is not the EVM chain id.
type BridgeChainID uint64

// Network is how requests refer to a chain: kind plus bridge chain id.
type Network struct {
	BridgeChainID BridgeChainID `json:"bridge_chain_id" toml:"bridge_chain_id"`
	Type          NetworkType   `json:"type" toml:"type"`
}

// Matches reports whether both descriptors name the same chain.
func (n Network) Matches(other Network) bool {
	return strings.EqualFold(string(n.Type), string(other.Type)) && n.BridgeChainID == other.BridgeChainID
}

func (n Network) String() string {
	return fmt.Sprintf("%s-%d", n.Type, n.BridgeChainID)
}

// Block is the snapshot of a block a request was observed in.
type Block struct {
	Hash         string  `json:"hash"`
	ReceiptsRoot string  `json:"receipts_root"`
	Number       uint64  `json:"number"`
	Network      Network `json:"network"`
}
