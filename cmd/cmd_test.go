package cmd

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/aa/plugin"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
	"github.com/AvaProtocol/ap-aa-sdk/version"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addCallFlags(flags)
	addOverrideFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, buf.String(), version.Get())
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"version", "address", "build-userop", "send-userop", "install-plugin", "uninstall-plugin"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestCallsFromFlagsSingle(t *testing.T) {
	flags := newFlags(t, "--to", "0x00000000000000000000000000000000000000b0", "--value", "1000", "--data", "0xabcd")

	calls, err := callsFromFlags(flags)
	require.NoError(t, err)

	call, ok := calls.(userop.Call)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0xb0"), call.Target)
	assert.Equal(t, int64(1000), call.Value.Int64())
	assert.Equal(t, []byte{0xab, 0xcd}, call.Data)
}

func TestCallsFromFlagsBatch(t *testing.T) {
	flags := newFlags(t,
		"--to", "0x00000000000000000000000000000000000000b0",
		"--to", "0x00000000000000000000000000000000000000b1",
		"--value", "0x10")

	calls, err := callsFromFlags(flags)
	require.NoError(t, err)

	batch, ok := calls.(userop.BatchCall)
	require.True(t, ok)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(16), batch[0].Value.Int64())
	assert.Nil(t, batch[1].Value)
	assert.Equal(t, common.HexToAddress("0xb1"), batch[1].Target)
}

func TestCallsFromFlagsRaw(t *testing.T) {
	flags := newFlags(t, "--raw-calldata", "0xb61d27f6")

	calls, err := callsFromFlags(flags)
	require.NoError(t, err)
	assert.Equal(t, userop.RawCallData{0xb6, 0x1d, 0x27, 0xf6}, calls)
}

func TestCallsFromFlagsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no target", nil},
		{"bad address", []string{"--to", "0x1234"}},
		{"bad value", []string{"--to", "0x00000000000000000000000000000000000000b0", "--value", "lots"}},
		{"bad data", []string{"--to", "0x00000000000000000000000000000000000000b0", "--data", "abcd"}},
		{"extra value", []string{"--to", "0x00000000000000000000000000000000000000b0", "--value", "1", "--value", "2"}},
		{"bad raw", []string{"--raw-calldata", "0xz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := callsFromFlags(newFlags(t, tt.args...))
			assert.Error(t, err)
		})
	}
}

func TestOverridesFromFlags(t *testing.T) {
	o, err := overridesFromFlags(newFlags(t))
	require.NoError(t, err)
	assert.Nil(t, o)

	o, err = overridesFromFlags(newFlags(t,
		"--call-gas-limit", "50000",
		"--max-fee-per-gas", "0x3b9aca00",
		"--paymaster-and-data", "0x"))
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, big.NewInt(50000), o.CallGasLimit)
	assert.Equal(t, int64(1_000_000_000), o.MaxFeePerGas.Int64())
	assert.Equal(t, []byte{}, o.PaymasterAndData)
	assert.Nil(t, o.VerificationGasLimit)

	_, err = overridesFromFlags(newFlags(t, "--pre-verification-gas", "-1"))
	assert.Error(t, err)
}

func TestParseDependencies(t *testing.T) {
	deps, err := parseDependencies([]string{"0x00000000000000000000000000000000000000b0:7", "0x00000000000000000000000000000000000000b1:0x02"})
	require.NoError(t, err)
	assert.Equal(t, []plugin.FunctionReference{
		plugin.NewFunctionReference(common.HexToAddress("0xb0"), 7),
		plugin.NewFunctionReference(common.HexToAddress("0xb1"), 2),
	}, deps)

	for _, bad := range []string{"0x00000000000000000000000000000000000000b0", "0x12:1", "0x00000000000000000000000000000000000000b0:300"} {
		_, err := parseDependencies([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestCallsFromFlagsUnregisteredFlag(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("raw-calldata", "", "")
	require.NoError(t, flags.Parse(nil))

	_, err := callsFromFlags(flags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flag accessed but not defined")
}

func TestHexFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("init-data", "", "")
	flags.String("manifest-hash", "", "")
	require.NoError(t, flags.Parse([]string{"--init-data", "0x0102"}))

	b, err := hexFlag(flags, "init-data")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)

	h, err := manifestHashFlag(flags)
	require.NoError(t, err)
	assert.Nil(t, h)

	require.NoError(t, flags.Set("manifest-hash", "0x1234"))
	_, err = manifestHashFlag(flags)
	assert.Error(t, err)

	require.NoError(t, flags.Set("manifest-hash", common.HexToHash("0x42").Hex()))
	h, err = manifestHashFlag(flags)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x42"), *h)

	_, err = hexFlag(flags, "uninstall-data")
	assert.Error(t, err)
}
