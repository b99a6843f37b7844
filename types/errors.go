package types

// Error is the failure type surfaced by the payment client and proxy. Code
// identifies the failure class for programmatic handling; Message carries the
// human-readable detail, verbatim from the upstream where one exists.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error with the given code and message.
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Failure codes, one per class in the payment flow.
const (
	// ErrWalletNotConnected: no signer configured; failed before any
	// network call.
	ErrWalletNotConnected = "WALLET_NOT_CONNECTED"

	// ErrSignatureDeclined: the wallet rejected the typed-data prompt.
	ErrSignatureDeclined = "SIGNATURE_DECLINED"

	// ErrMalformedPaymentRequirement: 402 body without a usable accepts
	// entry, or one that fails boundary validation.
	ErrMalformedPaymentRequirement = "MALFORMED_PAYMENT_REQUIREMENT"

	// ErrNetworkError: fetch-level failure on either attempt.
	ErrNetworkError = "NETWORK_ERROR"

	// ErrUpstreamError: non-2xx response carrying the upstream message.
	ErrUpstreamError = "UPSTREAM_ERROR"

	// ErrInvalidAmount: a dollar amount that does not resolve to whole
	// atomic units.
	ErrInvalidAmount = "INVALID_AMOUNT"

	// ErrSigningFailed: local signing failed for a reason other than a
	// user decline.
	ErrSigningFailed = "SIGNING_FAILED"
)
