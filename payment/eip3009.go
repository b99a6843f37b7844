package payment

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"github.com/bobbyswhip/miniapp-applesnakes-sub004/types"
)

// AuthorizationTTL is the validity window given to every transfer
// authorization: validAfter is pinned to zero and validBefore to now+TTL.
const AuthorizationTTL = time.Hour

// Authorization is the in-memory form of an EIP-3009
// TransferWithAuthorization message before serialization.
type Authorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// NewAuthorization builds a single-use authorization for the given transfer.
// The nonce is 32 fresh random bytes; a repeat would be rejected on-chain, so
// each call must produce its own.
func NewAuthorization(from, to common.Address, value *big.Int) (*Authorization, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate authorization nonce: %w", err)
	}

	return &Authorization{
		From:        from,
		To:          to,
		Value:       value,
		ValidAfter:  big.NewInt(0),
		ValidBefore: big.NewInt(time.Now().Add(AuthorizationTTL).Unix()),
		Nonce:       nonce,
	}, nil
}

// Wire converts the authorization to its JSON wire form. Value and the
// validity bounds stay decimal strings end to end; they never pass through a
// float.
func (a *Authorization) Wire() types.EIP3009Authorization {
	return types.EIP3009Authorization{
		From:        a.From.Hex(),
		To:          a.To.Hex(),
		Value:       a.Value.String(),
		ValidAfter:  a.ValidAfter.String(),
		ValidBefore: a.ValidBefore.String(),
		Nonce:       common.BytesToHash(a.Nonce[:]).Hex(),
	}
}

// TypedData renders the authorization as the EIP-712 payload to sign. The
// domain name and version come from the payment requirement's extra fields,
// the chain id from the target network, and the verifying contract is the
// payment asset.
func (a *Authorization) TypedData(domainName, domainVersion string, chainID int64, asset common.Address) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              domainName,
			Version:           domainVersion,
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: asset.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        a.From.Hex(),
			"to":          a.To.Hex(),
			"value":       (*math.HexOrDecimal256)(a.Value),
			"validAfter":  (*math.HexOrDecimal256)(a.ValidAfter),
			"validBefore": (*math.HexOrDecimal256)(a.ValidBefore),
			"nonce":       common.BytesToHash(a.Nonce[:]).Hex(),
		},
	}
}

// AtomicUSDC converts a dollar amount into USDC atomic units, flooring any
// fraction below one atomic unit. The arithmetic is fixed-point throughout.
func AtomicUSDC(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, types.NewError(types.ErrInvalidAmount, "amount cannot be negative", nil)
	}
	return amount.Shift(types.USDCDecimals).Floor().BigInt(), nil
}

// AtomicUSDCFromString parses a decimal dollar string and converts it to
// atomic units without ever constructing a float.
func AtomicUSDCFromString(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidAmount, fmt.Sprintf("invalid amount %q", amount), err)
	}
	return AtomicUSDC(d)
}
