package chain

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworks(t *testing.T) {
	network, ok := NetworkByName(NetworkName(11155111))
	require.True(t, ok)
	assert.EqualValues(t, 11155111, network.ID)
	assert.Equal(t, "https://sepolia.etherscan.io/tx/0xabc", network.TransactionURL("0xabc"))

	local, ok := NetworkByName("Hardhat")
	require.True(t, ok)
	assert.Empty(t, local.TransactionURL("0xabc"))

	_, ok = NetworkByName("Unknown network (99)")
	assert.False(t, ok)

	assert.Equal(t, "Unknown network (99)", NetworkName(99))
	assert.False(t, IsSupported(99))

	list := SupportedNetworks()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
}

func TestSimulatedClient_MinesAfterDelay(t *testing.T) {
	client := NewSimulatedClient(1337, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	hash := common.HexToHash("0x01")

	_, err := client.TransactionReceipt(context.Background(), hash)
	assert.True(t, IsNotFound(err))

	now = now.Add(2 * time.Minute)
	receipt, err := client.TransactionReceipt(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	again, err := client.TransactionReceipt(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, receipt.BlockNumber, again.BlockNumber)

	id, err := client.ChainID(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1337, id.Int64())

	_, err = client.CallContract(context.Background(), ethereum.CallMsg{}, nil)
	assert.Error(t, err)
}
