package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobbyswhip/miniapp-applesnakes-sub004/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService([]byte("test-secret"), logger.NoopLogger{})
}

func signChallenge(t *testing.T, keyHex, address, nonce string) string {
	t.Helper()
	key, err := crypto.HexToECDSA(keyHex)
	require.NoError(t, err)

	hash := accounts.TextHash([]byte(SignInMessage(address, nonce)))
	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)
	sig[64] += 27
	return hexutil.Encode(sig)
}

const (
	testKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestVerify_HappyPath(t *testing.T) {
	s := newTestService(t)

	nonce, err := s.Challenge(testAddress)
	require.NoError(t, err)
	require.NotEmpty(t, nonce)

	token, err := s.Verify(testAddress, nonce, signChallenge(t, testKeyHex, testAddress, nonce))
	require.NoError(t, err)

	subject, err := s.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, testAddress, subject)
}

func TestVerify_NonceIsSingleUse(t *testing.T) {
	s := newTestService(t)

	nonce, err := s.Challenge(testAddress)
	require.NoError(t, err)
	sig := signChallenge(t, testKeyHex, testAddress, nonce)

	_, err = s.Verify(testAddress, nonce, sig)
	require.NoError(t, err)

	_, err = s.Verify(testAddress, nonce, sig)
	assert.ErrorIs(t, err, ErrUnknownNonce)
}

func TestVerify_WrongSigner(t *testing.T) {
	s := newTestService(t)

	nonce, err := s.Challenge(testAddress)
	require.NoError(t, err)

	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherHex := hexutil.Encode(crypto.FromECDSA(otherKey))[2:]

	_, err = s.Verify(testAddress, nonce, signChallenge(t, otherHex, testAddress, nonce))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_BadAddress(t *testing.T) {
	s := newTestService(t)
	_, err := s.Challenge("not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestParseToken_WrongSecret(t *testing.T) {
	s := newTestService(t)
	nonce, err := s.Challenge(testAddress)
	require.NoError(t, err)
	token, err := s.Verify(testAddress, nonce, signChallenge(t, testKeyHex, testAddress, nonce))
	require.NoError(t, err)

	other := NewService([]byte("different-secret"), logger.NoopLogger{})
	_, err = other.ParseToken(token)
	assert.Error(t, err)
}

func TestHandler_EndToEnd(t *testing.T) {
	s := newTestService(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	nonceReq, _ := json.Marshal(map[string]string{"address": testAddress})
	resp, err := http.Post(server.URL+"/nonce", "application/json", bytes.NewReader(nonceReq))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var nonceBody struct {
		Nonce   string `json:"nonce"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&nonceBody))
	assert.Equal(t, SignInMessage(testAddress, nonceBody.Nonce), nonceBody.Message)

	verifyReq, _ := json.Marshal(map[string]string{
		"address":   testAddress,
		"nonce":     nonceBody.Nonce,
		"signature": signChallenge(t, testKeyHex, testAddress, nonceBody.Nonce),
	})
	resp2, err := http.Post(server.URL+"/verify", "application/json", bytes.NewReader(verifyReq))
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var verifyBody struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&verifyBody))

	subject, err := s.ParseToken(verifyBody.Token)
	require.NoError(t, err)
	assert.Equal(t, testAddress, subject)
}
