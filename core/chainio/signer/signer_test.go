package signer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// anvil/hardhat account #0
const (
	testKeyHex   = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testMnemonic = "test test test test test test test test test test test junk"
)

func testTypedData() apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Mail": {
				{Name: "contents", Type: "string"},
			},
		},
		PrimaryType: "Mail",
		Domain: apitypes.TypedDataDomain{
			Name:    "Ava",
			ChainId: math.NewHexOrDecimal256(11155111),
		},
		Message: apitypes.TypedDataMessage{"contents": "hello"},
	}
}

func TestLocalSignerMessage(t *testing.T) {
	s, err := FromPrivateKeyHex("0x" + testKeyHex)
	require.NoError(t, err)

	addr, err := s.GetAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), addr)
	assert.Equal(t, "local", s.SignerType())

	sig, err := s.SignMessage(context.Background(), []byte("hello"))
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	recovered, err := RecoverMessageSigner([]byte("hello"), sig)
	require.NoError(t, err)
	assert.Equal(t, addr, recovered)
}

func TestLocalSignerTypedData(t *testing.T) {
	s, err := FromPrivateKeyHex(testKeyHex)
	require.NoError(t, err)

	sig, err := s.SignTypedData(context.Background(), testTypedData())
	require.NoError(t, err)

	hash, _, err := apitypes.TypedDataAndHash(testTypedData())
	require.NoError(t, err)
	recovered, err := recoverHash(common.BytesToHash(hash), sig)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), recovered)
}

func TestInvalidPrivateKey(t *testing.T) {
	_, err := FromPrivateKeyHex("0x1234")
	assert.Error(t, err)
}

func TestMnemonicSigner(t *testing.T) {
	s, err := NewMnemonicSigner(testMnemonic, "")
	require.NoError(t, err)

	addr, err := s.GetAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), addr)
	assert.Equal(t, "mnemonic", s.SignerType())

	_, err = NewMnemonicSigner("not a mnemonic", "")
	assert.Error(t, err)
}

func TestRemoteSigner(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	var addressCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/address":
			addressCalls++
			_, _ = w.Write([]byte(`{"address":"` + testAddress + `"}`))
		case "/sign/message":
			body, _ := io.ReadAll(r.Body)
			var req struct {
				Message hexutil.Bytes `json:"message"`
			}
			require.NoError(t, json.Unmarshal(body, &req))
			sig, err := SignMessage(key, req.Message)
			require.NoError(t, err)
			sig[64] -= 27 // service answers with v in {0, 1}
			_, _ = w.Write([]byte(`{"signature":"` + hexutil.Encode(sig) + `"}`))
		default:
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"typed data signing disabled"}`))
		}
	}))
	defer srv.Close()

	s := NewRemoteSigner(srv.URL, "secret")

	for i := 0; i < 2; i++ {
		addr, err := s.GetAddress(context.Background())
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(testAddress), addr)
	}
	assert.Equal(t, 1, addressCalls)

	sig, err := s.SignMessage(context.Background(), []byte("hello"))
	require.NoError(t, err)
	recovered, err := RecoverMessageSigner([]byte("hello"), sig)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), recovered)

	_, err = s.SignTypedData(context.Background(), testTypedData())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "typed data signing disabled")
}
