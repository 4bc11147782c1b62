// Package httpledger talks to the value-ledger gateway over signed HTTP.
//
// Every call passes a token-bucket limiter and a circuit breaker. Only the
// idempotent calls (EnsureFacility and the reads) are retried; Mint and
// Purchase are sent at most once per invocation.
package httpledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"credit-ledger-bridge/config"
	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Request signing headers.
const (
	HeaderKey       = "X-Ledger-Key"
	HeaderTimestamp = "X-Ledger-Timestamp"
	HeaderNonce     = "X-Ledger-Nonce"
	HeaderSignature = "X-Ledger-Signature"
)

// Gateway error codes that carry meaning beyond the HTTP status.
const (
	codePriceMismatch     = "PRICE_MISMATCH"
	codeInsufficientFunds = "INSUFFICIENT_FUNDS"
)

const maxResponseBytes = 1 << 20

// Client implements ports.ValueLedger against the ledger gateway.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	http       *http.Client
	signer     ports.SignatureService
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	maxRetries uint64
	newBackOff func() backoff.BackOff
	log        zerolog.Logger
	now        func() time.Time
}

// New creates a gateway client from configuration.
func New(cfg config.LedgerConfig, signer ports.SignatureService, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	trip := cfg.Breaker.ConsecutiveFailures
	if trip == 0 {
		trip = 5
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		http:       &http.Client{Timeout: timeout},
		signer:     signer,
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: cfg.MaxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		log:        log.With().Str("component", "ledger").Logger(),
		now:        time.Now,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ledger-gateway",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
		// A ledger that answers "no" is healthy.
		IsSuccessful: func(err error) bool {
			return err == nil || isBusinessOutcome(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("ledger circuit breaker state changed")
		},
	})
	return c
}

func isBusinessOutcome(err error) bool {
	return errors.Is(err, domain.ErrLedgerRejected) ||
		errors.Is(err, domain.ErrPriceMismatch) ||
		errors.Is(err, domain.ErrInsufficientFunds)
}

// --- Writes ---

type idResponse struct {
	ID string `json:"id"`
}

// EnsureFacility creates the facility mirror or returns the existing one.
func (c *Client) EnsureFacility(ctx context.Context, req ports.EnsureFacilityRequest) (string, error) {
	body := facilityRequest{
		FacilityID: req.FacilityID.String(),
		Producer:   req.ProducerID.String(),
		Name:       req.Name,
		Location:   req.Location,
		Source:     string(req.Source),
		Capacity:   req.Capacity,
	}
	var out idResponse
	err := c.retry(ctx, func() error {
		_, err := c.call(ctx, http.MethodPut, "/v1/facilities/"+req.FacilityID.String(), body, &out, false)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("ensure facility: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("ensure facility: %w: empty facility id", domain.ErrLedgerTimeout)
	}
	return out.ID, nil
}

// Mint creates a token. It is never retried.
func (c *Client) Mint(ctx context.Context, req ports.MintRequest) (string, error) {
	body := mintRequest{
		ExternalRef:    req.ExternalRef.String(),
		FacilityID:     req.LedgerFacilityID,
		Producer:       req.Producer.String(),
		Amount:         req.Amount,
		UnitPriceMinor: req.UnitPriceMinor,
		Source:         string(req.Source),
		ProductionDate: req.ProductionDate.UTC(),
	}
	var out idResponse
	if _, err := c.call(ctx, http.MethodPost, "/v1/credits", body, &out, false); err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}
	if out.ID == "" {
		// The token may exist; only a lookup by external ref can tell.
		return "", fmt.Errorf("mint: %w: empty credit id", domain.ErrLedgerTimeout)
	}
	return out.ID, nil
}

// MarkValidated flags the token as validated. It is sent once; a lost
// response is settled by reading the token back, not by resending.
func (c *Client) MarkValidated(ctx context.Context, ledgerCreditID string, validator string) error {
	body := validateRequest{Validator: validator}
	if _, err := c.call(ctx, http.MethodPost, "/v1/credits/"+ledgerCreditID+"/validation", body, nil, false); err != nil {
		return fmt.Errorf("mark validated: %w", err)
	}
	return nil
}

// Purchase pays for a token. It is never retried.
func (c *Client) Purchase(ctx context.Context, req ports.LedgerPurchaseRequest) (string, error) {
	body := purchaseRequest{
		Buyer:      req.Buyer,
		Amount:     req.Amount,
		TotalMinor: req.TotalMinor,
	}
	var out struct {
		Reference string `json:"reference"`
	}
	if _, err := c.call(ctx, http.MethodPost, "/v1/credits/"+req.LedgerCreditID+"/purchases", body, &out, false); err != nil {
		return "", fmt.Errorf("purchase: %w", err)
	}
	if out.Reference == "" {
		return "", fmt.Errorf("purchase: %w: empty reference", domain.ErrLedgerTimeout)
	}
	return out.Reference, nil
}

// --- Reads ---

// FindCredit looks a token up by the off-chain credit id.
func (c *Client) FindCredit(ctx context.Context, externalRef string) (*domain.LedgerCredit, error) {
	var out creditResponse
	found, err := c.read(ctx, "/v1/credits/by-ref/"+externalRef, &out)
	if err != nil || !found {
		return nil, wrapIf("find credit", err)
	}
	return out.toDomain(), nil
}

// GetCredit fetches a token by its ledger id.
func (c *Client) GetCredit(ctx context.Context, ledgerCreditID string) (*domain.LedgerCredit, error) {
	var out creditResponse
	found, err := c.read(ctx, "/v1/credits/"+ledgerCreditID, &out)
	if err != nil || !found {
		return nil, wrapIf("get credit", err)
	}
	return out.toDomain(), nil
}

// GetPurchase fetches a confirmed purchase by reference.
func (c *Client) GetPurchase(ctx context.Context, reference string) (*domain.LedgerPurchase, error) {
	var out purchaseResponse
	found, err := c.read(ctx, "/v1/purchases/"+reference, &out)
	if err != nil || !found {
		return nil, wrapIf("get purchase", err)
	}
	return out.toDomain(), nil
}

func (c *Client) read(ctx context.Context, path string, out any) (bool, error) {
	var found bool
	err := c.retry(ctx, func() (err error) {
		found, err = c.call(ctx, http.MethodGet, path, nil, out, true)
		return err
	})
	return found, err
}

func wrapIf(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// --- Health ---

// Ping implements ports.HealthChecker. It bypasses the breaker so an open
// circuit can still report recovery.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger health: status %d", resp.StatusCode)
	}
	return nil
}

// Name implements ports.HealthChecker.
func (c *Client) Name() string { return "ledger" }

// --- Transport ---

// retry runs fn with exponential backoff while the outcome is transient.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	return backoff.Retry(func() error {
		err := fn()
		if err == nil || isBusinessOutcome(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// call sends one signed request through the limiter and the breaker. With
// allowNotFound a 404 is reported as found=false instead of an error.
func (c *Client) call(ctx context.Context, method, path string, in, out any, allowNotFound bool) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("%w: rate limiter: %v", domain.ErrLedgerUnavailable, err)
	}

	var found bool
	_, err := c.breaker.Execute(func() (any, error) {
		var err error
		found, err = c.roundTrip(ctx, method, path, in, out, allowNotFound)
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	return found, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any, allowNotFound bool) (bool, error) {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return false, fmt.Errorf("%w: encode request: %v", domain.ErrLedgerRejected, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("%w: build request: %v", domain.ErrLedgerUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.sign(req, payload)

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return false, classifyTransportError(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, fmt.Errorf("%w: read response: %v", domain.ErrLedgerTimeout, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", c.now().Sub(start)).
		Msg("ledger call")

	switch {
	case resp.StatusCode == http.StatusNotFound && allowNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return false, fmt.Errorf("%w: decode response: %v", domain.ErrLedgerTimeout, err)
			}
		}
		return true, nil
	default:
		return false, classifyStatus(resp.StatusCode, body)
	}
}

func (c *Client) sign(req *http.Request, payload []byte) {
	if c.signer == nil || c.apiSecret == "" {
		return
	}
	ts := c.now().Unix()
	nonce := uuid.NewString()
	canonical := c.signer.BuildCanonicalString(req.Method, req.URL.Path, ts, nonce, string(payload))
	req.Header.Set(HeaderKey, c.apiKey)
	req.Header.Set(HeaderTimestamp, fmt.Sprintf("%d", ts))
	req.Header.Set(HeaderNonce, nonce)
	req.Header.Set(HeaderSignature, c.signer.Sign(c.apiSecret, canonical))
}

// classifyTransportError separates requests that never left (unavailable)
// from those whose fate is unknown (timeout).
func classifyTransportError(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrLedgerTimeout, err)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func classifyStatus(status int, body []byte) error {
	var e errorResponse
	_ = json.Unmarshal(body, &e)
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case e.Code == codePriceMismatch:
		return fmt.Errorf("%w: %s", domain.ErrPriceMismatch, msg)
	case e.Code == codeInsufficientFunds || status == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", domain.ErrInsufficientFunds, msg)
	case status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests:
		// The gateway refused before touching the chain.
		return fmt.Errorf("%w: status %d: %s", domain.ErrLedgerUnavailable, status, msg)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: status %d: %s", domain.ErrLedgerRejected, status, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrLedgerTimeout, status, msg)
	}
}
