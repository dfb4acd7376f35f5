package types_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/suite"

	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

type TypesTestSuite struct {
	suite.Suite
}

func TestTypesTestSuite(t *testing.T) {
	suite.Run(t, new(TypesTestSuite))
}

func (suite *TypesTestSuite) TestPairID_Resolve() {
	item := &types.ResolveRequest{RequestID: sdkmath.NewInt(42)}

	suite.Equal("resolve-42", types.PairID(item))
}

func (suite *TypesTestSuite) TestPairID_ResolveLargeRequestID() {
	id, ok := sdkmath.NewIntFromString("340282366920938463463374607431768211457")
	suite.Require().True(ok)

	suite.Equal("resolve-340282366920938463463374607431768211457", types.PairID(&types.ResolveRequest{RequestID: id}))
}

func (suite *TypesTestSuite) TestPairID_Batch() {
	batch := &types.Batch{
		NetworkID:   "eth",
		Description: "d",
		Interval:    60,
		Pairs: []types.PushJob{
			{Pair: "BTC/USD"},
			{Pair: "ETH/USD"},
		},
	}

	suite.Equal("eth-d-BTC/USD-60", types.PairID(batch))
}

func (suite *TypesTestSuite) TestPairID_EmptyBatch() {
	batch := &types.Batch{NetworkID: "eth", Description: "d", Interval: 60}

	suite.Equal("eth-d--60", types.PairID(batch))
}

func (suite *TypesTestSuite) TestPairID_OracleRequest() {
	req := &types.OracleRequest{
		RequestID:             sdkmath.NewInt(7),
		ToNetwork:             types.Network{Type: types.NetworkEVM, BridgeChainID: 2},
		ToContractAddress:     "0xdest",
		ConfirmationsRequired: 10,
		Block: types.Block{
			Number:  1234,
			Network: types.Network{Type: types.NetworkEVM, BridgeChainID: 1},
		},
	}

	suite.Equal("0xdest-1234-10-2-1", types.PairID(req))
}

func (suite *TypesTestSuite) TestPairID_OracleRequestIgnoresVolatileFields() {
	base := types.OracleRequest{
		RequestID:             sdkmath.NewInt(7),
		ToNetwork:             types.Network{Type: types.NetworkEVM, BridgeChainID: 2},
		ToContractAddress:     "0xdest",
		ConfirmationsRequired: 10,
		Block:                 types.Block{Number: 1234, Network: types.Network{Type: types.NetworkEVM, BridgeChainID: 1}},
	}
	confirmed := base
	confirmed.Confirmations = 12
	confirmed.Args = []string{"a"}

	suite.Equal(types.PairID(&base), types.PairID(&confirmed))
}

func (suite *TypesTestSuite) TestPairID_PushJob() {
	job := &types.PushJob{NetworkID: "aurora", Pair: "NEAR/USD", ContractAddress: "0xfeed"}

	suite.Equal("aurora-NEAR/USD-0xfeed", types.PairID(job))
}

func (suite *TypesTestSuite) TestClassify() {
	testCases := []struct {
		name string
		item types.Item
		kind types.Kind
	}{
		{"oracle request", &types.OracleRequest{}, types.KindOracleRequest},
		{"batch", &types.Batch{}, types.KindBatch},
		{"resolve", &types.ResolveRequest{}, types.KindResolve},
		{"push job", &types.PushJob{}, types.KindPushJob},
		{"nil", nil, types.KindUnknown},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			suite.Equal(tc.kind, types.Classify(tc.item))
		})
	}
}

func (suite *TypesTestSuite) TestNewResolveRequest() {
	req := &types.OracleRequest{RequestID: sdkmath.NewInt(99)}

	resolve := types.NewResolveRequest(req)

	suite.Equal("resolve-99", types.PairID(resolve))
}

func (suite *TypesTestSuite) TestNetworkMatches() {
	a := types.Network{Type: types.NetworkEVM, BridgeChainID: 5}

	suite.True(a.Matches(types.Network{Type: "EVM", BridgeChainID: 5}))
	suite.False(a.Matches(types.Network{Type: types.NetworkNear, BridgeChainID: 5}))
	suite.False(a.Matches(types.Network{Type: types.NetworkEVM, BridgeChainID: 6}))
	suite.Equal("evm-5", a.String())
}
