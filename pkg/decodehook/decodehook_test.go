package decodehook

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type target struct {
	From  *common.Address `mapstructure:"from"`
	To    common.Address  `mapstructure:"to"`
	Value *big.Int        `mapstructure:"value"`
	Data  []byte          `mapstructure:"data"`
	Label string          `mapstructure:"label"`
}

func TestDecode(t *testing.T) {
	var out target
	err := Decode(map[string]interface{}{
		"from":  "0x00000000000000000000000000000000000000a0",
		"to":    "0x00000000000000000000000000000000000000b0",
		"value": "0x3e8",
		"data":  "0xa9059cbb",
		"label": "transfer",
	}, &out)
	require.NoError(t, err)

	require.NotNil(t, out.From)
	assert.Equal(t, common.HexToAddress("0xa0"), *out.From)
	assert.Equal(t, common.HexToAddress("0xb0"), out.To)
	assert.Equal(t, int64(1000), out.Value.Int64())
	assert.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, out.Data)
	assert.Equal(t, "transfer", out.Label)
}

func TestDecodeDecimalQuantity(t *testing.T) {
	var out target
	require.NoError(t, Decode(map[string]interface{}{"value": "1000"}, &out))
	assert.Equal(t, int64(1000), out.Value.Int64())
	assert.Nil(t, out.From)
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]interface{}
	}{
		{"short address", map[string]interface{}{"to": "0x12"}},
		{"negative value", map[string]interface{}{"value": "-1"}},
		{"not a number", map[string]interface{}{"value": "lots"}},
		{"data without prefix", map[string]interface{}{"data": "abcd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out target
			assert.Error(t, Decode(tt.input, &out))
		})
	}
}
