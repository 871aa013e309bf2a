package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPersonal(t *testing.T, message string) (string, string) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27

	return hexutil.Encode(sig), crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestRecoverAddress(t *testing.T) {
	signature, address := signPersonal(t, "Sign in to TrustBond")

	recovered, err := RecoverAddress("Sign in to TrustBond", signature)
	require.NoError(t, err)
	assert.Equal(t, address, recovered.Hex())
}

func TestRecoverAddress_DifferentMessage(t *testing.T) {
	signature, address := signPersonal(t, "Sign in to TrustBond")

	recovered, err := RecoverAddress("something else", signature)
	require.NoError(t, err)
	assert.NotEqual(t, address, recovered.Hex())
}

func TestRecoverAddress_Malformed(t *testing.T) {
	for _, sig := range []string{"", "0x", "0x1234", "not-hex"} {
		_, err := RecoverAddress("message", sig)
		assert.ErrorIs(t, err, ErrInvalidSignature, sig)
	}
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress(testAccount, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.False(t, SameAddress(testAccount, "0x0000000000000000000000000000000000000001"))
	assert.False(t, SameAddress("bogus", "bogus"))
}
