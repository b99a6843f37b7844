package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentRequired_Roundtrip(t *testing.T) {
	raw := `{
		"x402Version": 1,
		"error": "payment required",
		"accepts": [{
			"scheme": "exact",
			"network": "base",
			"maxAmountRequired": "500000",
			"resource": "https://api.applesnakes.com/launch",
			"description": "token launch",
			"payTo": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			"asset": "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			"maxTimeoutSeconds": 60,
			"extra": {"name": "USD Coin", "version": "2"}
		}]
	}`

	var required PaymentRequired
	require.NoError(t, json.Unmarshal([]byte(raw), &required))
	require.Len(t, required.Accepts, 1)

	req := required.Accepts[0]
	assert.Equal(t, "500000", req.MaxAmountRequired)

	name, err := req.DomainName()
	require.NoError(t, err)
	assert.Equal(t, "USD Coin", name)

	version, err := req.DomainVersion()
	require.NoError(t, err)
	assert.Equal(t, "2", version)
}

func TestPaymentRequirements_MissingExtra(t *testing.T) {
	req := PaymentRequirements{Scheme: "exact"}
	_, err := req.DomainName()
	assert.Error(t, err)

	req.Extra = map[string]interface{}{"name": 42}
	_, err = req.DomainName()
	assert.Error(t, err)
}

func TestNetwork_ChainID(t *testing.T) {
	assert.EqualValues(t, 8453, NetworkBase.ChainID())
	assert.EqualValues(t, 84532, NetworkBaseSepolia.ChainID())
	assert.Zero(t, Network("mystery").ChainID())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrNetworkError, "request failed", cause)

	assert.Equal(t, "request failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewError(ErrUpstreamError, "upstream said no", nil)
	assert.Equal(t, "upstream said no", bare.Error())
}

func TestPaymentEnvelope_JSONShape(t *testing.T) {
	envelope := PaymentEnvelope{
		X402Version: X402Version,
		Scheme:      "exact",
		Network:     "base",
		Payload: EIP3009Payload{
			Signature: "0xsig",
			Authorization: EIP3009Authorization{
				From:        "0x1",
				To:          "0x2",
				Value:       "500000",
				ValidAfter:  "0",
				ValidBefore: "1700003600",
				Nonce:       "0xabc",
			},
		},
	}

	raw, err := json.Marshal(envelope)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.EqualValues(t, 1, decoded["x402Version"])

	payload := decoded["payload"].(map[string]interface{})
	auth := payload["authorization"].(map[string]interface{})
	_, isString := auth["value"].(string)
	assert.True(t, isString, "value is serialized as a decimal string, never a number")
}
