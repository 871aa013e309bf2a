package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var errSimulatedCall = errors.New("chain: contract calls are not available in demo mode")

// SimulatedClient stands in for a node in demo mode. Every transaction is
// reported as not found until delay has passed since it was first queried,
// then it is mined successfully in the next block.
type SimulatedClient struct {
	chainID *big.Int
	delay   time.Duration
	now     func() time.Time

	mu        sync.Mutex
	firstSeen map[common.Hash]time.Time
	mined     map[common.Hash]*types.Receipt
	block     uint64
}

func NewSimulatedClient(chainID int64, delay time.Duration) *SimulatedClient {
	return &SimulatedClient{
		chainID:   big.NewInt(chainID),
		delay:     delay,
		now:       time.Now,
		firstSeen: make(map[common.Hash]time.Time),
		mined:     make(map[common.Hash]*types.Receipt),
		block:     1,
	}
}

func (c *SimulatedClient) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if receipt, ok := c.mined[txHash]; ok {
		return receipt, nil
	}

	now := c.now()
	seen, ok := c.firstSeen[txHash]
	if !ok {
		c.firstSeen[txHash] = now
		seen = now
	}

	if now.Sub(seen) < c.delay {
		return nil, ethereum.NotFound
	}

	c.block++
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockNumber: new(big.Int).SetUint64(c.block),
	}
	c.mined[txHash] = receipt
	delete(c.firstSeen, txHash)

	return receipt, nil
}

func (c *SimulatedClient) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errSimulatedCall
}

func (c *SimulatedClient) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

func (c *SimulatedClient) BlockNumber(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block, nil
}

func (c *SimulatedClient) Close() {}
