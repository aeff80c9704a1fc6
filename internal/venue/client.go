package venue

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"btc-option-mm/internal/errs"
	"btc-option-mm/pkg/types"
)

const (
	// orderTimeout bounds order placement and amendment, shorter than the
	// shared client timeout because a stale order decision is worse than a
	// fast failure.
	orderTimeout = 5 * time.Second

	// postRequestDelay is the fixed pause after every signed call whose
	// response is not retried as a 429, independent of the token-bucket
	// limiter that gates request initiation.
	postRequestDelay = 60 * time.Millisecond

	// maxRateLimitRetries is the number of 429 retries before giving up.
	maxRateLimitRetries = 5
)

// OrderRequest is the REST payload for POST /portfolio/orders.
type OrderRequest struct {
	Ticker     string `json:"ticker"`
	Side       string `json:"side"`
	Action     string `json:"action"`
	Count      int    `json:"count"`
	PriceCents int    `json:"price_cents"`
	ClientID   string `json:"client_order_id"`
}

// OrderResponse is the subset of the venue's order payload the executor
// needs to track the resting order.
type OrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// Balance is the response shape of GET /portfolio/balance.
type Balance struct {
	BalanceCents int64 `json:"balance_cents"`
}

// Client is the signed REST client for the prediction venue. In dry-run mode
// every mutating call returns a synthetic success without making an HTTP
// request, mirroring how this account behaves when trading is disabled.
type Client struct {
	http   *resty.Client
	auth   *Auth
	rl     *RateLimiter
	dryRun bool
	logger *zap.Logger
}

// NewClient builds a REST client against baseURL. The underlying resty
// client retries 5xx responses up to 3 times with capped backoff; every
// signed call on top of that retries HTTP 429 with the venue's own
// exponential backoff (executeSigned) and pauses postRequestDelay after a
// non-retried response.
func NewClient(baseURL string, auth *Auth, dryRun bool, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		auth:   auth,
		rl:     NewRateLimiter(),
		dryRun: dryRun,
		logger: logger.With(zap.String("component", "venue_client")),
	}
}

// executeSigned runs a signed GET/POST/PUT request, retrying on HTTP 429
// with the venue's documented backoff (2000*2^retry ms, up to
// maxRateLimitRetries) before giving up, then pausing postRequestDelay after
// any response that isn't itself a retry. Each attempt re-signs from
// scratch since the signature covers a timestamp that must be current.
func (c *Client) executeSigned(ctx context.Context, method, path string, do func(req *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	var retries int
	for {
		headers, err := c.auth.RESTHeaders(method, path)
		if err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
		req := c.http.R().SetContext(ctx).SetHeaders(flattenHeader(headers))

		resp, err := do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != http.StatusTooManyRequests {
			c.delayAfterRequest(ctx)
			return resp, nil
		}

		retries++
		if retries > maxRateLimitRetries {
			return resp, fmt.Errorf("%w: %w: %s %s after %d retries", errs.Transient, errs.RateLimited, method, path, maxRateLimitRetries)
		}
		backoff := time.Duration(2000*(1<<retries)) * time.Millisecond
		c.logger.Warn("rate limited, backing off",
			zap.String("method", method), zap.String("path", path),
			zap.Int("retry", retries), zap.Duration("backoff", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// executeSignedOnce runs a signed DELETE request a single time. It has no 429
// retry loop (executeSigned covers GET/POST/PUT), so a rate-limited DELETE is
// returned directly rather than retried.
func (c *Client) executeSignedOnce(ctx context.Context, method, path string, do func(req *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	headers, err := c.auth.RESTHeaders(method, path)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	req := c.http.R().SetContext(ctx).SetHeaders(flattenHeader(headers))

	resp, err := do(req)
	if err != nil {
		return nil, err
	}
	c.delayAfterRequest(ctx)
	return resp, nil
}

// delayAfterRequest pauses postRequestDelay to stay under the venue's
// observed rate limit, independent of the token-bucket gating request
// initiation.
func (c *Client) delayAfterRequest(ctx context.Context) {
	select {
	case <-time.After(postRequestDelay):
	case <-ctx.Done():
	}
}

func flattenHeader(h http.Header) map[string]string {
	m := make(map[string]string, len(h))
	for k := range h {
		m[k] = h.Get(k)
	}
	return m
}

// GetBalance fetches the account balance.
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	if err := c.rl.Reads.Wait(ctx); err != nil {
		return nil, err
	}

	var result Balance
	resp, err := c.executeSigned(ctx, http.MethodGet, "/portfolio/balance", func(req *resty.Request) (*resty.Response, error) {
		return req.SetResult(&result).Get("/portfolio/balance")
	})
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get balance: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// PlaceOrder submits a new resting or marketable order. Sizing, pricing, and
// side/action are already final by the time a Signal becomes an OrderRequest.
// Bounded by orderTimeout rather than the client's shared timeout.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	if c.dryRun {
		c.logger.Info("dry-run: would place order",
			zap.String("ticker", req.Ticker), zap.String("side", req.Side),
			zap.Int("price_cents", req.PriceCents), zap.Int("count", req.Count))
		return &OrderResponse{OrderID: "dry-run-" + req.ClientID, Status: "resting"}, nil
	}

	if err := c.rl.Orders.Wait(ctx); err != nil {
		return nil, err
	}

	octx, cancel := context.WithTimeout(ctx, orderTimeout)
	defer cancel()

	var result OrderResponse
	resp, err := c.executeSigned(octx, http.MethodPost, "/portfolio/orders", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(req).SetResult(&result).Post("/portfolio/orders")
	})
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: place order: status %d: %s", errs.OrderRejected, resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// AmendOrder changes the price and/or count of a resting order. Bounded by
// orderTimeout since it carries a body, same as order placement.
func (c *Client) AmendOrder(ctx context.Context, orderID string, newPriceCents, newCount int) error {
	if c.dryRun {
		c.logger.Info("dry-run: would amend order", zap.String("order_id", orderID))
		return nil
	}

	path := "/portfolio/orders/" + orderID
	if err := c.rl.Orders.Wait(ctx); err != nil {
		return err
	}

	octx, cancel := context.WithTimeout(ctx, orderTimeout)
	defer cancel()

	body := struct {
		PriceCents int `json:"price_cents"`
		Count      int `json:"count"`
	}{newPriceCents, newCount}

	resp, err := c.executeSigned(octx, http.MethodPut, path, func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody(body).Put(path)
	})
	if err != nil {
		return fmt.Errorf("amend order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: amend order: status %d: %s", errs.OrderRejected, resp.StatusCode(), resp.String())
	}
	return nil
}

// CancelOrder cancels a single resting order by ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if c.dryRun {
		c.logger.Info("dry-run: would cancel order", zap.String("order_id", orderID))
		return nil
	}

	path := "/portfolio/orders/" + orderID
	if err := c.rl.Orders.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.executeSignedOnce(ctx, http.MethodDelete, path, func(req *resty.Request) (*resty.Response, error) {
		return req.Delete(path)
	})
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: cancel order: status %d: %s", errs.OrderRejected, resp.StatusCode(), resp.String())
	}
	return nil
}

// CancelAllOrders cancels every resting order, optionally scoped to ticker.
func (c *Client) CancelAllOrders(ctx context.Context, ticker string) error {
	if c.dryRun {
		c.logger.Info("dry-run: would cancel all orders", zap.String("ticker", ticker))
		return nil
	}

	if err := c.rl.Orders.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.executeSignedOnce(ctx, http.MethodDelete, "/portfolio/orders", func(req *resty.Request) (*resty.Response, error) {
		if ticker != "" {
			req = req.SetQueryParam("ticker", ticker)
		}
		return req.Delete("/portfolio/orders")
	})
	if err != nil {
		return fmt.Errorf("cancel all orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: cancel all orders: status %d: %s", errs.OrderRejected, resp.StatusCode(), resp.String())
	}
	return nil
}

// RestingOrders lists currently resting orders, optionally scoped to ticker.
func (c *Client) RestingOrders(ctx context.Context, ticker string) ([]types.Order, error) {
	if err := c.rl.Reads.Wait(ctx); err != nil {
		return nil, err
	}

	var result struct {
		Orders []types.Order `json:"orders"`
	}
	resp, err := c.executeSigned(ctx, http.MethodGet, "/portfolio/orders", func(req *resty.Request) (*resty.Response, error) {
		if ticker != "" {
			req = req.SetQueryParam("ticker", ticker)
		}
		return req.SetQueryParam("status", "resting").SetResult(&result).Get("/portfolio/orders")
	})
	if err != nil {
		return nil, fmt.Errorf("list resting orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list resting orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.Orders, nil
}
