package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrReceiptNotFound means the node has not seen the transaction mined yet.
var ErrReceiptNotFound = ethereum.NotFound

// ReceiptFetcher is the part of a node client the transaction tracker needs.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ContractCaller runs read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Client interface {
	ReceiptFetcher
	ContractCaller

	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (Client, error) {
	if rpcURL == "" {
		return nil, errors.New("chain: rpc url is empty")
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return client, nil
}

// IsNotFound reports whether err means the receipt is not available yet.
func IsNotFound(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}
