package payment

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobbyswhip/miniapp-applesnakes-sub004/types"
)

func TestAtomicUSDC(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"whole dollars", "5.00", "5000000"},
		{"integer", "12", "12000000"},
		{"cents", "0.25", "250000"},
		{"micro dollars", "0.000001", "1"},
		{"below atomic unit floors", "0.0000019", "1"},
		{"zero", "0", "0"},
		{"repeating fraction floors", "1.9999999", "1999999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AtomicUSDCFromString(tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestAtomicUSDC_Invalid(t *testing.T) {
	_, err := AtomicUSDCFromString("not-a-number")
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.ErrInvalidAmount, typed.Code)

	_, err = AtomicUSDC(decimal.RequireFromString("-1"))
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.ErrInvalidAmount, typed.Code)
}

func TestNewAuthorization_Window(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	before := time.Now().Add(AuthorizationTTL).Unix()
	auth, err := NewAuthorization(from, to, big.NewInt(500000))
	require.NoError(t, err)
	after := time.Now().Add(AuthorizationTTL).Unix()

	assert.Zero(t, auth.ValidAfter.Int64())
	assert.GreaterOrEqual(t, auth.ValidBefore.Int64(), before)
	assert.LessOrEqual(t, auth.ValidBefore.Int64(), after)
}

func TestNewAuthorization_NonceUnique(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	first, err := NewAuthorization(from, to, big.NewInt(1))
	require.NoError(t, err)
	second, err := NewAuthorization(from, to, big.NewInt(1))
	require.NoError(t, err)

	assert.Len(t, first.Nonce, 32)
	assert.NotEqual(t, first.Nonce, second.Nonce)
}

func TestAuthorization_Wire(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	auth, err := NewAuthorization(from, to, big.NewInt(5000000))
	require.NoError(t, err)

	wire := auth.Wire()
	assert.Equal(t, from.Hex(), wire.From)
	assert.Equal(t, to.Hex(), wire.To)
	assert.Equal(t, "5000000", wire.Value)
	assert.Equal(t, "0", wire.ValidAfter)
	assert.Len(t, wire.Nonce, 2+64, "nonce is 0x-prefixed 32-byte hex")
}

func TestSignAndRecoverTypedData(t *testing.T) {
	signer := newTestSigner(t)
	asset := common.HexToAddress(testAsset)

	auth, err := NewAuthorization(signer.Address(), common.HexToAddress(testPayTo), big.NewInt(500000))
	require.NoError(t, err)

	data := auth.TypedData("USD Coin", "2", 8453, asset)
	sig, err := signer.SignTypedData(t.Context(), data)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.GreaterOrEqual(t, sig[64], byte(27), "V normalized to 27/28")

	recovered, err := RecoverTypedDataSigner(data, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)

	// A different domain version must not verify to the same signer.
	other, err := RecoverTypedDataSigner(auth.TypedData("USD Coin", "1", 8453, asset), sig)
	if err == nil {
		assert.NotEqual(t, signer.Address(), other)
	}
}
