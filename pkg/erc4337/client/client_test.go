package client

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/aa"
	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/signer"
	"github.com/AvaProtocol/ap-aa-sdk/core/testutil"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/bundler"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/middleware"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
	"github.com/AvaProtocol/ap-aa-sdk/version"
)

var (
	counterfactual = common.HexToAddress("0x5Df343de7d99fd64b2479189692C1dAb8f46184a")
	recipient      = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	owner          = common.HexToAddress(testutil.OwnerAddress)
)

func init() {
	receiptPollInterval = time.Millisecond
	receiptPollIntervalMax = 5 * time.Millisecond
}

func newChain() *testutil.FakeChain {
	chain := testutil.NewFakeChain()
	chain.BaseFee = big.NewInt(1_000_000_000)
	chain.TipCap = big.NewInt(9_000_000_000)
	chain.HandleSenderAddress(aa.EntrypointAddress, counterfactual)
	return chain
}

func newAccount(t *testing.T, kind aa.Kind, chain *testutil.FakeChain) *aa.Account {
	key, err := signer.FromPrivateKeyHex(testutil.OwnerKeyHex)
	require.NoError(t, err)

	a, err := aa.NewAccount(aa.AccountParams{Kind: kind, Chain: chain, Signer: key})
	require.NoError(t, err)
	return a
}

func newClient(t *testing.T, chain *testutil.FakeChain, account *aa.Account, opts ...middleware.Option) *SmartAccountClient {
	c, err := New(Params{Transport: chain, Account: account, Middleware: opts})
	require.NoError(t, err)
	return c
}

func transfer() userop.Call {
	return userop.Call{Target: recipient, Value: big.NewInt(1000)}
}

func TestBuildWithoutAccount(t *testing.T) {
	c := newClient(t, newChain(), nil)

	_, err := c.BuildUserOperation(context.Background(), transfer(), nil)
	assert.ErrorIs(t, err, ErrNoAccountBound)

	_, err = c.SignUserOperation(context.Background(), &userop.UserOperation{})
	assert.ErrorIs(t, err, ErrNoAccountBound)
}

func TestBuildUndeployedAccount(t *testing.T) {
	chain := newChain()
	account := newAccount(t, aa.KindSimple, chain)
	c := newClient(t, chain, account)

	op, err := c.BuildUserOperation(context.Background(), transfer(), nil)
	require.NoError(t, err)

	factoryCall, err := aa.SimpleFactoryABI.Pack("createAccount", owner, big.NewInt(0))
	require.NoError(t, err)
	wantCallData, err := account.EncodeExecute(recipient, big.NewInt(1000), nil)
	require.NoError(t, err)

	assert.Equal(t, counterfactual, op.Sender)
	assert.Equal(t, append(aa.DefaultSimpleFactoryAddress.Bytes(), factoryCall...), op.InitCode)
	assert.Equal(t, int64(0), op.Nonce.Int64())
	assert.Equal(t, wantCallData, op.CallData)
	assert.Equal(t, "12000000000", op.MaxPriorityFeePerGas.String())
	assert.Equal(t, "13000000000", op.MaxFeePerGas.String())
	assert.Equal(t, int64(50_000), op.PreVerificationGas.Int64())
	assert.Equal(t, int64(100_000), op.VerificationGasLimit.Int64())
	assert.Equal(t, int64(35_000), op.CallGasLimit.Int64())
	assert.Equal(t, account.GetDummySignature(), op.Signature)
	assert.Equal(t, []byte{}, op.PaymasterAndData)

	assert.Equal(t, 0, chain.Calls("getNonce(address,uint192)"))
	assert.Empty(t, chain.Sent)
}

func TestBuildDeployedAccountReadsNonce(t *testing.T) {
	chain := newChain()
	chain.SetCode(counterfactual, []byte{0x60, 0x80})
	chain.HandleNonce(aa.EntrypointAddress, big.NewInt(5))
	c := newClient(t, chain, newAccount(t, aa.KindSimple, chain))

	op, err := c.BuildUserOperation(context.Background(), userop.BatchCall{transfer(), transfer()}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{}, op.InitCode)
	assert.Equal(t, int64(5), op.Nonce.Int64())
	assert.Equal(t, 1, chain.Calls("getNonce(address,uint192)"))
}

func TestBuildOverridesWin(t *testing.T) {
	chain := newChain()
	c := newClient(t, chain, newAccount(t, aa.KindSimple, chain))

	op, err := c.BuildUserOperation(context.Background(), transfer(), &userop.Overrides{
		CallGasLimit: big.NewInt(77),
		MaxFeePerGas: big.NewInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(77), op.CallGasLimit.Int64())
	assert.Equal(t, int64(1), op.MaxFeePerGas.Int64())
	assert.Equal(t, "12000000000", op.MaxPriorityFeePerGas.String())
}

func TestBuildRawCallData(t *testing.T) {
	chain := newChain()
	c := newClient(t, chain, newAccount(t, aa.KindSimple, chain))

	op, err := c.BuildUserOperation(context.Background(), userop.RawCallData{0xca, 0xfe}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xca, 0xfe}, op.CallData)
}

func TestBuildStageFailure(t *testing.T) {
	chain := newChain()
	chain.BaseFee = nil
	c := newClient(t, chain, newAccount(t, aa.KindSimple, chain))

	_, err := c.BuildUserOperation(context.Background(), transfer(), nil)
	var stageErr *middleware.StageFailureError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, middleware.StageFeeDataGetter, stageErr.Stage)
	assert.ErrorIs(t, err, middleware.ErrFeeDataUnavailable)
}

func TestSignAndSend(t *testing.T) {
	chain := newChain()
	c := newClient(t, chain, newAccount(t, aa.KindSimple, chain))
	ctx := context.Background()

	op, err := c.BuildUserOperation(ctx, transfer(), nil)
	require.NoError(t, err)

	signed, err := c.SignUserOperation(ctx, op)
	require.NoError(t, err)
	assert.NotEqual(t, op.Signature, signed.Signature)

	hash := op.GetUserOpHash(aa.EntrypointAddress, chain.ChainIDValue)
	recovered, err := signer.RecoverMessageSigner(hash.Bytes(), signed.Signature)
	require.NoError(t, err)
	assert.Equal(t, owner, recovered)

	sent, err := c.SendUserOperation(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, hash, sent)
	require.Len(t, chain.Sent, 1)
	assert.Equal(t, signed.Signature, chain.Sent[0].Signature)
}

func TestHeaders(t *testing.T) {
	chain := newChain()
	newClient(t, chain, newAccount(t, aa.KindLight, chain))

	assert.Equal(t, version.Get(), chain.Headers[HeaderVersion])
	assert.Equal(t, "local", chain.Headers[HeaderSigner])
	assert.Equal(t, aa.DefaultLightFactoryAddress.Hex(), chain.Headers[HeaderFactoryAddress])

	bare := newChain()
	newClient(t, bare, nil)
	assert.Equal(t, version.Get(), bare.Headers[HeaderVersion])
	assert.NotContains(t, bare.Headers, HeaderSigner)
}

// slowReceipts reports the receipt only after a few polls.
type slowReceipts struct {
	*testutil.FakeChain
	mu      sync.Mutex
	pending int
	err     error
}

func (s *slowReceipts) GetUserOperationReceipt(ctx context.Context, hash common.Hash) (*bundler.UserOperationReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.pending > 0 {
		s.pending--
		return nil, nil
	}
	return s.FakeChain.GetUserOperationReceipt(ctx, hash)
}

func TestWaitForUserOperationReceipt(t *testing.T) {
	hash := common.HexToHash("0x01")
	chain := newChain()
	mined := &bundler.UserOperationReceipt{UserOpHash: hash, Success: true}
	mined.Receipt.TransactionHash = common.HexToHash("0xbeef")
	chain.Receipts[hash] = mined

	transport := &slowReceipts{FakeChain: chain, pending: 3}
	c, err := New(Params{Transport: transport})
	require.NoError(t, err)

	receipt, err := c.WaitForUserOperationReceipt(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xbeef"), receipt.Receipt.TransactionHash)
	assert.Equal(t, 0, transport.pending)
}

func TestWaitForUserOperationReceiptStopsOnError(t *testing.T) {
	boom := errors.New("bundler down")
	transport := &slowReceipts{FakeChain: newChain(), err: boom}
	c, err := New(Params{Transport: transport})
	require.NoError(t, err)

	_, err = c.WaitForUserOperationReceipt(context.Background(), common.HexToHash("0x01"))
	assert.ErrorIs(t, err, boom)
}

func TestWaitForUserOperationReceiptHonoursContext(t *testing.T) {
	c := newClient(t, newChain(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.WaitForUserOperationReceipt(ctx, common.HexToHash("0x02"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtendKeepsClientMethods(t *testing.T) {
	c := newClient(t, newChain(), nil)

	ext := c.Extend(func(*SmartAccountClient) aa.Capabilities {
		return aa.Capabilities{"installPlugin": 1, "sendcalls": 2}
	}).Extend(func(*SmartAccountClient) aa.Capabilities {
		return aa.Capabilities{"installPlugin": 3, "uninstallPlugin": 4}
	})

	assert.Equal(t, []string{"installPlugin", "uninstallPlugin"}, ext.CapabilityNames())
	v, ok := ext.Capability("installPlugin")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	_, ok = ext.Capability("sendcalls")
	assert.False(t, ok)
}

func TestChainIDCached(t *testing.T) {
	chain := newChain()
	c := newClient(t, chain, nil)

	for i := 0; i < 3; i++ {
		id, err := c.ChainID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, hexutil.EncodeBig(chain.ChainIDValue), hexutil.EncodeBig(id))
	}
	assert.Equal(t, 1, chain.RPCCalls("eth_chainId"))
}
