// Package proxy implements the pass-through routes that forward browser
// requests to the AppleSnakes backend. The handler exists purely to sidestep
// CORS: it relays method, body and the payment-relevant headers in both
// directions and forwards the upstream status verbatim, 402 included. Its only
// local decision is a structured 502 when the upstream is unreachable.
package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bobbyswhip/miniapp-applesnakes-sub004/logger"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/metrics"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/types"
)

// DefaultTimeout bounds each forwarded request.
const DefaultTimeout = 60 * time.Second

// forwardedRequestHeaders are the client headers relayed upstream. Everything
// else is dropped so the proxy cannot leak browser state.
var forwardedRequestHeaders = []string{
	"Content-Type",
	"Accept",
	"Authorization",
	types.HeaderPayment,
	types.HeaderPaymentAmount,
	types.HeaderPaymentTxHash,
	types.HeaderPaymentFrom,
}

// forwardedResponseHeaders are relayed back so the payment client can act on
// a 402 and so rate-limit hints survive the hop.
var forwardedResponseHeaders = []string{
	"Content-Type",
	types.HeaderPaymentResponse,
	types.HeaderPaymentRequired,
	"Retry-After",
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
}

// Handler forwards requests to a fixed upstream base URL.
type Handler struct {
	upstream   *url.URL
	httpClient *http.Client
	log        logger.Logger
	metrics    metrics.Recorder
}

// Option configures a Handler.
type Option func(*Handler)

func WithHTTPClient(h *http.Client) Option {
	return func(p *Handler) { p.httpClient = h }
}

func WithLogger(l logger.Logger) Option {
	return func(p *Handler) { p.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(p *Handler) { p.metrics = r }
}

// NewHandler builds a proxy targeting the given upstream base URL, e.g.
// "https://api.applesnakes.com".
func NewHandler(upstreamBase string, opts ...Option) (*Handler, error) {
	upstream, err := url.Parse(upstreamBase)
	if err != nil {
		return nil, err
	}

	p := &Handler{
		upstream:   upstream,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        logger.NoopLogger{},
		metrics:    metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ServeHTTP implements http.Handler. The inbound path and query are appended
// to the upstream base unchanged.
func (p *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	target := *p.upstream
	target.Path = strings.TrimSuffix(target.Path, "/") + r.URL.Path
	target.RawQuery = r.URL.RawQuery

	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		p.writeBadGateway(w, err)
		return
	}
	for _, name := range forwardedRequestHeaders {
		if v := r.Header.Get(name); v != "" {
			upstreamReq.Header.Set(name, v)
		}
	}
	upstreamReq.ContentLength = r.ContentLength

	resp, err := p.httpClient.Do(upstreamReq)
	if err != nil {
		p.log.Error("upstream unreachable", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		p.metrics.IncCounter("proxy_upstream_unreachable", map[string]string{"network": ""})
		p.writeBadGateway(w, err)
		return
	}
	defer resp.Body.Close()

	for _, name := range forwardedResponseHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.log.Warn("relay response body", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
	}

	p.metrics.ObserveLatency("proxy_request", time.Since(start), map[string]string{"network": ""})
	p.log.Debug("proxied request", map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": resp.StatusCode,
	})
}

func (p *Handler) writeBadGateway(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   "upstream unreachable: " + err.Error(),
	})
}
