package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidSignature = errors.New("chain: invalid signature")

// RecoverAddress returns the account that produced a personal_sign signature
// over message.
func RecoverAddress(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}

	// wallets return V as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// SameAddress compares two hex addresses ignoring checksum casing.
func SameAddress(a, b string) bool {
	return strings.EqualFold(common.HexToAddress(a).Hex(), common.HexToAddress(b).Hex()) &&
		common.IsHexAddress(a) && common.IsHexAddress(b)
}
