// Package auth implements the wallet sign-in endpoint: a nonce challenge,
// verification of an Ethereum personal_sign signature over it, and a JWT
// minted for the proven address.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bobbyswhip/miniapp-applesnakes-sub004/logger"
)

const (
	nonceTTL = 5 * time.Minute
	tokenTTL = 24 * time.Hour
)

var (
	ErrUnknownNonce     = errors.New("unknown or expired nonce")
	ErrInvalidSignature = errors.New("signature does not match address")
	ErrInvalidAddress   = errors.New("invalid ethereum address")
)

// Service issues nonce challenges and exchanges signed challenges for JWTs.
type Service struct {
	secret []byte
	nonces *cache.Cache[string, string]
	log    logger.Logger
	now    func() time.Time
}

func NewService(secret []byte, log logger.Logger) *Service {
	return &Service{
		secret: secret,
		nonces: cache.New[string, string](),
		log:    log,
		now:    time.Now,
	}
}

// SignInMessage is the exact personal_sign payload for a challenge. Wallets
// display it verbatim, so it stays short and human-readable.
func SignInMessage(address, nonce string) string {
	return fmt.Sprintf("AppleSnakes wants you to sign in with your Ethereum account:\n%s\n\nNonce: %s", address, nonce)
}

// Challenge creates a single-use nonce for the address.
func (s *Service) Challenge(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)

	s.nonces.Set(strings.ToLower(address), nonce, cache.WithExpiration(nonceTTL))
	return nonce, nil
}

// Verify checks the personal_sign signature over the challenge message and
// consumes the nonce. On success it returns a signed JWT for the address.
func (s *Service) Verify(address, nonce, signatureHex string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}

	key := strings.ToLower(address)
	stored, ok := s.nonces.Get(key)
	if !ok || stored != nonce {
		return "", ErrUnknownNonce
	}
	s.nonces.Delete(key)

	sig, err := hex.DecodeString(strings.TrimPrefix(signatureHex, "0x"))
	if err != nil || len(sig) != 65 {
		return "", ErrInvalidSignature
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	hash := accounts.TextHash([]byte(SignInMessage(address, nonce)))
	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return "", ErrInvalidSignature
	}
	if crypto.PubkeyToAddress(*pub) != common.HexToAddress(address) {
		return "", ErrInvalidSignature
	}

	return s.issueToken(common.HexToAddress(address).Hex())
}

func (s *Service) issueToken(address string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   address,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		Issuer:    "applesnakes",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken validates a JWT and returns the authenticated address.
func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// Handler exposes the service over HTTP: POST /nonce and POST /verify.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /nonce", s.handleNonce)
	mux.HandleFunc("POST /verify", s.handleVerify)
	return mux
}

func (s *Service) handleNonce(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	nonce, err := s.Challenge(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"nonce":   nonce,
		"message": SignInMessage(req.Address, nonce),
	})
}

func (s *Service) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address   string `json:"address"`
		Nonce     string `json:"nonce"`
		Signature string `json:"signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.Verify(req.Address, req.Nonce, req.Signature)
	if err != nil {
		s.log.Warn("sign-in rejected", map[string]any{
			"address": req.Address,
			"error":   err.Error(),
		})
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}
