package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var ErrContractNotConfigured = errors.New("chain: contract address is not configured")

// Only the view functions the API reads are declared.
const (
	kycVerifierABI = `[{"type":"function","name":"isVerified","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]}]`
	trustScoreABI  = `[{"type":"function","name":"getTrustScore","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`
	loanManagerABI = `[{"type":"function","name":"getLoanStatus","stateMutability":"view","inputs":[{"name":"loanId","type":"uint256"}],"outputs":[{"name":"","type":"uint8"}]}]`
)

// OnChainLoanStatuses maps the loan manager's status enum onto loan statuses.
var OnChainLoanStatuses = []string{"applied", "approved", "rejected", "funded", "repaid", "defaulted"}

type ContractAddresses struct {
	KYCVerifier string
	TrustScore  string
	LoanManager string
}

type boundContract struct {
	address common.Address
	abi     abi.ABI
}

// Contracts performs eth_call reads against the three platform contracts. A
// contract with an empty address is reported as ErrContractNotConfigured.
type Contracts struct {
	caller ContractCaller

	kycVerifier *boundContract
	trustScore  *boundContract
	loanManager *boundContract
}

func NewContracts(caller ContractCaller, addresses ContractAddresses) (*Contracts, error) {
	c := &Contracts{caller: caller}

	var err error
	if c.kycVerifier, err = bind(addresses.KYCVerifier, kycVerifierABI); err != nil {
		return nil, fmt.Errorf("kyc verifier: %w", err)
	}
	if c.trustScore, err = bind(addresses.TrustScore, trustScoreABI); err != nil {
		return nil, fmt.Errorf("trust score: %w", err)
	}
	if c.loanManager, err = bind(addresses.LoanManager, loanManagerABI); err != nil {
		return nil, fmt.Errorf("loan manager: %w", err)
	}

	return c, nil
}

func bind(address, definition string) (*boundContract, error) {
	if address == "" {
		return nil, nil
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}

	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		return nil, err
	}

	return &boundContract{address: common.HexToAddress(address), abi: parsed}, nil
}

func (c *Contracts) HasTrustScore() bool {
	return c != nil && c.trustScore != nil
}

func (c *Contracts) call(ctx context.Context, contract *boundContract, method string, args ...any) ([]any, error) {
	if contract == nil {
		return nil, ErrContractNotConfigured
	}

	data, err := contract.abi.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	to := contract.address
	output, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	return contract.abi.Unpack(method, output)
}

func (c *Contracts) IsKYCVerified(ctx context.Context, account string) (bool, error) {
	if c == nil {
		return false, ErrContractNotConfigured
	}

	values, err := c.call(ctx, c.kycVerifier, "isVerified", common.HexToAddress(account))
	if err != nil {
		return false, err
	}

	verified, ok := values[0].(bool)
	if !ok {
		return false, errors.New("isVerified: unexpected return type")
	}

	return verified, nil
}

func (c *Contracts) TrustScore(ctx context.Context, account string) (int64, error) {
	if c == nil {
		return 0, ErrContractNotConfigured
	}

	values, err := c.call(ctx, c.trustScore, "getTrustScore", common.HexToAddress(account))
	if err != nil {
		return 0, err
	}

	score, ok := values[0].(*big.Int)
	if !ok || !score.IsInt64() {
		return 0, errors.New("getTrustScore: unexpected return value")
	}

	return score.Int64(), nil
}

func (c *Contracts) LoanStatus(ctx context.Context, loanID *big.Int) (string, error) {
	if c == nil {
		return "", ErrContractNotConfigured
	}

	values, err := c.call(ctx, c.loanManager, "getLoanStatus", loanID)
	if err != nil {
		return "", err
	}

	status, ok := values[0].(uint8)
	if !ok || int(status) >= len(OnChainLoanStatuses) {
		return "", errors.New("getLoanStatus: unexpected return value")
	}

	return OnChainLoanStatuses[status], nil
}
