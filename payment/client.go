package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/bobbyswhip/miniapp-applesnakes-sub004/logger"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/metrics"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/types"
)

// DefaultTimeout bounds each of the two HTTP attempts.
const DefaultTimeout = 30 * time.Second

// Request describes one call to a monetized endpoint.
type Request struct {
	// Endpoint is the absolute URL of the monetized endpoint.
	Endpoint string

	// Method is the HTTP method; POST for every monetized action.
	Method string

	// Body is resent unchanged on the payment retry.
	Body []byte

	// ContentType of Body, e.g. "application/json" or a multipart type.
	ContentType string

	// Header carries extra request headers, forwarded on both attempts.
	Header http.Header

	// AmountUSDC overrides the server-quoted price for variable-cost
	// actions such as token launches. When nil the client pays
	// maxAmountRequired verbatim.
	AmountUSDC *decimal.Decimal

	// Direct switches the endpoint to the direct-transfer header scheme:
	// instead of a signed envelope, the retry carries the amount, the
	// on-chain transfer hash and the payer address as plain headers.
	Direct *DirectTransfer
}

// DirectTransfer identifies an already-settled on-chain transfer.
type DirectTransfer struct {
	TxHash string
	From   string
}

// Client performs paid HTTP requests. The flow is two attempts at most: one
// unpaid, and on a 402 answer exactly one retry carrying the payment. Nothing
// is retried beyond that.
type Client struct {
	httpClient *http.Client
	signer     Signer
	network    types.Network
	validate   *validator.Validate
	log        logger.Logger
	metrics    metrics.Recorder
	timeout    time.Duration

	// signMu serializes signature prompts. Wallets present one prompt at a
	// time, so concurrent paid requests queue here rather than assume
	// parallel signing is safe.
	signMu sync.Mutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

func WithNetwork(n types.Network) ClientOption {
	return func(c *Client) { c.network = n }
}

func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

func WithMetrics(r metrics.Recorder) ClientOption {
	return func(c *Client) { c.metrics = r }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient builds a payment client around the given signer. A nil signer is
// allowed; paid requests will then fail with WALLET_NOT_CONNECTED before any
// network traffic.
func NewClient(signer Signer, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		signer:     signer,
		network:    types.NetworkBase,
		validate:   validator.New(),
		log:        logger.NoopLogger{},
		metrics:    metrics.NoopRecorder{},
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes the request, transparently satisfying a 402 challenge. It
// returns the response body of whichever attempt ended the flow.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	if c.signer == nil && req.Direct == nil {
		return nil, types.NewError(types.ErrWalletNotConnected, "no wallet connected", nil)
	}
	if req.Direct != nil && req.Direct.From == "" && c.signer != nil {
		req.Direct.From = c.signer.Address().Hex()
	}

	start := time.Now()
	resp, body, err := c.attempt(ctx, req, nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}
		return nil, upstreamError(resp.StatusCode, body)
	}

	requirement, err := c.parseRequirement(resp, body)
	if err != nil {
		return nil, err
	}

	value, err := c.paymentValue(req, requirement)
	if err != nil {
		return nil, err
	}

	c.log.Info("payment required", map[string]any{
		"endpoint": req.Endpoint,
		"asset":    requirement.Asset,
		"value":    value.String(),
	})
	c.metrics.IncCounter("payment_required", map[string]string{"network": requirement.Network})

	headers, err := c.paymentHeaders(ctx, req, requirement, value)
	if err != nil {
		c.metrics.IncCounter("payment_failed", map[string]string{"network": requirement.Network})
		return nil, err
	}

	resp, body, err = c.attempt(ctx, req, headers)
	if err != nil {
		c.metrics.IncCounter("payment_failed", map[string]string{"network": requirement.Network})
		return nil, err
	}
	c.metrics.ObserveLatency("paid_request", time.Since(start), map[string]string{"network": requirement.Network})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.IncCounter("payment_failed", map[string]string{"network": requirement.Network})
		return nil, upstreamError(resp.StatusCode, body)
	}

	c.metrics.IncCounter("payment_succeeded", map[string]string{"network": requirement.Network})
	return body, nil
}

// attempt issues one HTTP request with the per-attempt timeout applied. The
// body is replayed from the buffered bytes so both attempts send identical
// payloads.
func (c *Client) attempt(ctx context.Context, req Request, extra http.Header) (*http.Response, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.Endpoint, bodyReader)
	if err != nil {
		return nil, nil, types.NewError(types.ErrNetworkError, "build request", err)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range extra {
		for _, v := range vs {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, types.NewError(types.ErrNetworkError, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, types.NewError(types.ErrNetworkError, "read response body", err)
	}
	return resp, body, nil
}

// parseRequirement extracts accepts[0] from a 402 response. Two server
// variants exist: the requirement normally rides in the JSON body, but some
// endpoints put the same document base64-encoded in the X-Payment-Required
// header. The body wins when both are present.
func (c *Client) parseRequirement(resp *http.Response, body []byte) (*types.PaymentRequirements, error) {
	var required types.PaymentRequired
	if len(body) > 0 {
		if err := json.Unmarshal(body, &required); err != nil {
			return nil, types.NewError(types.ErrMalformedPaymentRequirement, "402 body is not valid JSON", err)
		}
	}

	if len(required.Accepts) == 0 {
		header := resp.Header.Get(types.HeaderPaymentRequired)
		if header == "" {
			return nil, types.NewError(types.ErrMalformedPaymentRequirement, "402 response has no accepts entry", nil)
		}
		decoded, err := base64.StdEncoding.DecodeString(header)
		if err != nil {
			return nil, types.NewError(types.ErrMalformedPaymentRequirement, "payment-required header is not valid base64", err)
		}
		if err := json.Unmarshal(decoded, &required); err != nil {
			return nil, types.NewError(types.ErrMalformedPaymentRequirement, "payment-required header is not valid JSON", err)
		}
		if len(required.Accepts) == 0 {
			return nil, types.NewError(types.ErrMalformedPaymentRequirement, "402 response has no accepts entry", nil)
		}
	}

	requirement, err := c.selectRequirement(required.Accepts)
	if err != nil {
		return nil, err
	}
	if err := c.validate.Struct(requirement); err != nil {
		return nil, types.NewError(types.ErrMalformedPaymentRequirement, fmt.Sprintf("payment requirement failed validation: %v", err), err)
	}
	return requirement, nil
}

// selectRequirement picks the first accepts entry for the exact scheme on the
// client's network.
func (c *Client) selectRequirement(accepts []types.PaymentRequirements) (*types.PaymentRequirements, error) {
	for i := range accepts {
		if accepts[i].Scheme == string(types.SchemeExact) && accepts[i].Network == string(c.network) {
			return &accepts[i], nil
		}
	}
	return nil, types.NewError(types.ErrMalformedPaymentRequirement,
		fmt.Sprintf("no exact-scheme requirement for network %s", c.network), nil)
}

// paymentValue resolves the atomic amount to pay: the caller-supplied dollar
// amount floored to atomic units, or the server quote taken verbatim.
func (c *Client) paymentValue(req Request, requirement *types.PaymentRequirements) (*big.Int, error) {
	if req.AmountUSDC != nil {
		return AtomicUSDC(*req.AmountUSDC)
	}
	value, ok := new(big.Int).SetString(requirement.MaxAmountRequired, 10)
	if !ok {
		return nil, types.NewError(types.ErrMalformedPaymentRequirement,
			fmt.Sprintf("maxAmountRequired %q is not a decimal integer", requirement.MaxAmountRequired), nil)
	}
	return value, nil
}

// paymentHeaders builds the header set for the retry: either the signed
// envelope in X-PAYMENT, or the direct-transfer triple.
func (c *Client) paymentHeaders(ctx context.Context, req Request, requirement *types.PaymentRequirements, value *big.Int) (http.Header, error) {
	headers := http.Header{}

	if req.Direct != nil {
		headers.Set(types.HeaderPaymentAmount, value.String())
		headers.Set(types.HeaderPaymentTxHash, req.Direct.TxHash)
		headers.Set(types.HeaderPaymentFrom, req.Direct.From)
		return headers, nil
	}

	envelope, err := c.signEnvelope(ctx, requirement, value)
	if err != nil {
		return nil, err
	}

	encoded, err := EncodeEnvelope(envelope)
	if err != nil {
		return nil, types.NewError(types.ErrSigningFailed, "encode payment envelope", err)
	}
	headers.Set(types.HeaderPayment, encoded)
	return headers, nil
}

// signEnvelope builds the transfer authorization and asks the wallet for its
// signature. Exactly one prompt happens per successful payment path.
func (c *Client) signEnvelope(ctx context.Context, requirement *types.PaymentRequirements, value *big.Int) (*types.PaymentEnvelope, error) {
	domainName, err := requirement.DomainName()
	if err != nil {
		return nil, types.NewError(types.ErrMalformedPaymentRequirement, err.Error(), err)
	}
	domainVersion, err := requirement.DomainVersion()
	if err != nil {
		return nil, types.NewError(types.ErrMalformedPaymentRequirement, err.Error(), err)
	}

	auth, err := NewAuthorization(c.signer.Address(), common.HexToAddress(requirement.PayTo), value)
	if err != nil {
		return nil, types.NewError(types.ErrSigningFailed, "build authorization", err)
	}

	typedData := auth.TypedData(domainName, domainVersion, c.network.ChainID(), common.HexToAddress(requirement.Asset))

	c.signMu.Lock()
	sig, err := c.signer.SignTypedData(ctx, typedData)
	c.signMu.Unlock()
	if err != nil {
		if errors.Is(err, ErrDeclined) {
			return nil, types.NewError(types.ErrSignatureDeclined, "signature request declined", err)
		}
		return nil, types.NewError(types.ErrSigningFailed, "sign transfer authorization", err)
	}

	return &types.PaymentEnvelope{
		X402Version: types.X402Version,
		Scheme:      requirement.Scheme,
		Network:     requirement.Network,
		Payload: types.EIP3009Payload{
			Signature:     EncodeSignature(sig),
			Authorization: auth.Wire(),
		},
	}, nil
}

// EncodeEnvelope serializes an envelope to the base64 JSON form carried in
// the X-PAYMENT header.
func EncodeEnvelope(envelope *types.PaymentEnvelope) (string, error) {
	raw, err := json.Marshal(envelope)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeEnvelope reverses EncodeEnvelope.
func DecodeEnvelope(encoded string) (*types.PaymentEnvelope, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode payment envelope: %w", err)
	}
	var envelope types.PaymentEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal payment envelope: %w", err)
	}
	return &envelope, nil
}

// upstreamError surfaces a non-2xx response as UPSTREAM_ERROR, carrying the
// upstream's own error message verbatim when the body exposes one.
func upstreamError(status int, body []byte) *types.Error {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	message := fmt.Sprintf("upstream returned status %d", status)
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Error != "":
			message = parsed.Error
		case parsed.Message != "":
			message = parsed.Message
		}
	}
	return types.NewError(types.ErrUpstreamError, message, nil)
}
