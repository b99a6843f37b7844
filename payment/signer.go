// Package payment implements the client side of the x402 payment flow: issue
// a request, and when the server answers 402 Payment Required, sign an
// EIP-3009 transfer authorization and retry the request with the payment
// attached.
package payment

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ErrDeclined is returned by a Signer when the user rejects the signature
// prompt. The client maps it to SIGNATURE_DECLINED and skips the retry.
var ErrDeclined = errors.New("signature request declined")

// Signer produces EIP-712 typed-data signatures on behalf of a connected
// wallet. Implementations that proxy to an interactive wallet may block in
// SignTypedData until the user responds; the context cancels the wait.
type Signer interface {
	// Address returns the payer address.
	Address() common.Address

	// SignTypedData signs the EIP-712 digest of the given typed data and
	// returns the 65-byte signature with V in 27/28 form.
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}

// KeySigner signs typed data with an in-process ECDSA key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner builds a KeySigner from a hex-encoded private key, with or
// without the 0x prefix.
func NewKeySigner(privateKeyHex string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, err
	}
	return NewKeySignerFromKey(key), nil
}

// NewKeySignerFromKey wraps an existing private key.
func NewKeySignerFromKey(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

func (s *KeySigner) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	digest, err := TypedDataDigest(data)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, err
	}

	// go-ethereum yields V as 0/1; wallets and the upstream verifier expect
	// 27/28.
	sig[64] += 27
	return sig, nil
}

// TypedDataDigest computes the EIP-712 digest
// keccak256("\x19\x01" || domainSeparator || hashStruct(message)).
func TypedDataDigest(data apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := data.HashStruct("EIP712Domain", data.Domain.Map())
	if err != nil {
		return nil, err
	}
	messageHash, err := data.HashStruct(data.PrimaryType, data.Message)
	if err != nil {
		return nil, err
	}
	raw := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	return crypto.Keccak256(raw), nil
}

// RecoverTypedDataSigner recovers the address that produced sig over the
// typed data. V may be 0/1 or 27/28.
func RecoverTypedDataSigner(data apitypes.TypedData, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, errors.New("signature must be 65 bytes")
	}

	digest, err := TypedDataDigest(data)
	if err != nil {
		return common.Address{}, err
	}

	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// EncodeSignature renders a signature as a 0x-prefixed hex string.
func EncodeSignature(sig []byte) string {
	return hexutil.Encode(sig)
}
