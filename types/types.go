// Package types defines the wire types of the x402 payment protocol as used
// by the AppleSnakes backend, plus the session-local transaction model.
package types

import (
	"fmt"
	"time"
)

// X402Version is the protocol version spoken by the backend.
const X402Version = 1

// Scheme identifies a payment scheme.
type Scheme string

const (
	SchemeExact Scheme = "exact"
)

// Network identifies the blockchain a payment settles on.
type Network string

const (
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia" // testnet
)

// ChainID returns the EVM chain id for the network, or 0 if unknown.
func (n Network) ChainID() int64 {
	switch n {
	case NetworkBase:
		return 8453
	case NetworkBaseSepolia:
		return 84532
	}
	return 0
}

func (n Network) String() string {
	return string(n)
}

// USDCDecimals is the decimal count of the payment asset. Dollar amounts are
// converted to atomic units by scaling with 10^6.
const USDCDecimals = 6

// PaymentRequirements is one entry of the "accepts" array in a 402 response.
type PaymentRequirements struct {
	// Scheme of the payment protocol, "exact" for every monetized endpoint.
	Scheme string `json:"scheme" validate:"required,eq=exact"`

	// Network the payment must settle on, e.g. "base".
	Network string `json:"network" validate:"required"`

	// MaxAmountRequired is the price in atomic units of the asset,
	// serialized as a decimal string because uint256 does not fit in JSON.
	MaxAmountRequired string `json:"maxAmountRequired" validate:"required,number"`

	// Resource is the URL of the resource being paid for.
	Resource string `json:"resource,omitempty"`

	// Description of what the payment buys.
	Description string `json:"description,omitempty"`

	// MimeType of the paid response, if the server declares one.
	MimeType string `json:"mimeType,omitempty"`

	// PayTo is the address the payment must be sent to.
	PayTo string `json:"payTo" validate:"required"`

	// MaxTimeoutSeconds is how long the server will wait for settlement.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds,omitempty"`

	// Asset is the EIP-3009 capable ERC-20 contract (USDC on Base).
	Asset string `json:"asset" validate:"required"`

	// Extra carries the EIP-712 domain fields "name" and "version" for the
	// exact scheme on EVM networks.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// DomainName extracts the EIP-712 domain name from Extra.
func (pr *PaymentRequirements) DomainName() (string, error) {
	return pr.extraString("name")
}

// DomainVersion extracts the EIP-712 domain version from Extra.
func (pr *PaymentRequirements) DomainVersion() (string, error) {
	return pr.extraString("version")
}

func (pr *PaymentRequirements) extraString(key string) (string, error) {
	if pr.Extra == nil {
		return "", fmt.Errorf("requirement extra is missing field %q", key)
	}
	v, ok := pr.Extra[key]
	if !ok {
		return "", fmt.Errorf("requirement extra is missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("requirement extra field %q is not a string", key)
	}
	return s, nil
}

// PaymentRequired is the body of a 402 response.
type PaymentRequired struct {
	// X402Version of the protocol the server speaks.
	X402Version int `json:"x402Version"`

	// Error explains why the unpaid request was rejected.
	Error string `json:"error,omitempty"`

	// Accepts lists the payment options the server takes. The client acts
	// on the first exact-scheme entry for its network.
	Accepts []PaymentRequirements `json:"accepts"`
}

// EIP3009Authorization is the TransferWithAuthorization message signed by the
// payer. Value, ValidAfter and ValidBefore are decimal strings; Nonce is the
// 0x-hex encoding of 32 random bytes.
type EIP3009Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// EIP3009Payload pairs an authorization with its 65-byte ECDSA signature.
type EIP3009Payload struct {
	Signature     string               `json:"signature"`
	Authorization EIP3009Authorization `json:"authorization"`
}

// PaymentEnvelope is the value of the X-PAYMENT header, base64-encoded JSON.
// Exactly one envelope is created per retried request and never persisted.
type PaymentEnvelope struct {
	X402Version int            `json:"x402Version"`
	Scheme      string         `json:"scheme"`
	Network     string         `json:"network"`
	Payload     EIP3009Payload `json:"payload"`
}

// Payment protocol headers.
const (
	HeaderPayment         = "X-PAYMENT"
	HeaderPaymentResponse = "X-PAYMENT-RESPONSE"
	HeaderPaymentRequired = "X-Payment-Required"

	// Direct-transfer variant: some endpoints take a header triple instead
	// of a signed envelope.
	HeaderPaymentAmount = "X-Payment-Amount"
	HeaderPaymentTxHash = "X-Payment-Tx-Hash"
	HeaderPaymentFrom   = "X-Payment-From"
)

// TransactionStatus is the lifecycle state of a submitted transaction.
type TransactionStatus string

const (
	TxPending TransactionStatus = "pending"
	TxSuccess TransactionStatus = "success"
	TxError   TransactionStatus = "error"
)

// Transaction is a session-local notification record. It is created on
// submission, updated once on confirmation or failure, and dropped with the
// session.
type Transaction struct {
	Hash        string            `json:"hash"`
	Description string            `json:"description"`
	Status      TransactionStatus `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
}
