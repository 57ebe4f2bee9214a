// Package gateway (continued) implements the REST client that submits
// signed orders to the venue's CLOB API and reports cancel-all.
//
// Endpoints used:
//   - POST   /order               — place one signed order
//   - DELETE /cancel-market-orders — cancel every open order for one market
//   - DELETE /cancel-all           — cancel every open order across markets
//   - GET    /auth/derive-api-key — bootstrap L2 creds from the L1 wallet
//
// Order and cancel requests are rate-limited via per-category token
// buckets and authenticated with L2 HMAC headers; the API-key derivation
// request carries L1 wallet headers and is not rate-limited. In dry_run mode no HTTP call is made
// at all: PlaceOrder synthesizes an instant fill at the limit price, which
// lets the full pipeline-through-settlement path run against a venue that
// does not exist yet.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/0xtitan6/btcud-mm/internal/config"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

const (
	tickDecimals  = 2
	orderLifetime = 2 * time.Minute
	feeRateBps    = 0
)

type orderResponse struct {
	Success  bool   `json:"success"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
	ErrorMsg string `json:"errorMsg"`
}

type cancelResponse struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}

type trackedOrder struct {
	localID uint64
	venueID string
}

// Gateway submits signed orders to the venue and tracks which venue order
// IDs belong to which market, so a market settling can cancel exactly its
// own resting orders without disturbing any other active market.
type Gateway struct {
	http   *resty.Client
	signer *walletSigner
	rl     *rateLimiter
	dryRun bool
	logger *slog.Logger

	mu       sync.Mutex
	byMarket map[string][]trackedOrder
}

// New builds a Gateway from config. When cfg.DryRun is false and no L2
// credentials are configured, it derives them from the wallet's L1
// signature before returning.
func New(cfg config.Config, logger *slog.Logger) (*Gateway, error) {
	httpClient := resty.New().
		SetBaseURL(cfg.API.CLOBBaseURL).
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

	g := &Gateway{
		http:     httpClient,
		rl:       newRateLimiter(),
		dryRun:   cfg.DryRun,
		logger:   logger.With("component", "gateway"),
		byMarket: make(map[string][]trackedOrder),
	}

	if cfg.DryRun {
		return g, nil
	}

	signer, err := newWalletSigner(cfg)
	if err != nil {
		return nil, fmt.Errorf("build wallet signer: %w", err)
	}
	g.signer = signer

	if !signer.HasL2Credentials() {
		if err := g.deriveAPIKey(context.Background()); err != nil {
			return nil, fmt.Errorf("derive api key: %w", err)
		}
	}
	return g, nil
}

func (g *Gateway) deriveAPIKey(ctx context.Context) error {
	headers, err := g.signer.L1Headers(0)
	if err != nil {
		return fmt.Errorf("l1 headers: %w", err)
	}
	var result Credentials
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/auth/derive-api-key")
	if err != nil {
		return fmt.Errorf("derive api key: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("derive api key: status %d: %s", resp.StatusCode(), resp.String())
	}
	g.signer.SetCredentials(result)
	g.logger.Info("API key derived", "api_key", result.ApiKey)
	return nil
}

// PlaceOrder signs order and submits it to the venue, returning the
// resulting OrderAck. In dry_run mode it synthesizes an instant Filled
// ack at the order's limit price without making any network call.
func (g *Gateway) PlaceOrder(ctx context.Context, order types.Order) (types.OrderAck, error) {
	submitAt := time.Now()

	if g.dryRun {
		price, size := order.Price, order.Size
		g.logger.Info("DRY-RUN: would place order", "order_id", order.ID, "market", order.MarketSlug, "side", order.Side, "price", price, "size", size)
		return types.OrderAck{
			OrderID:     order.ID,
			Status:      types.StatusFilled,
			FilledPrice: &price,
			FilledSize:  &size,
			LatencyMs:   float64(time.Since(submitAt).Microseconds()) / 1000,
		}, nil
	}

	if err := g.rl.order.wait(ctx); err != nil {
		return types.OrderAck{}, err
	}

	intent := OrderIntent{
		TokenID:      order.TokenID,
		Side:         buy,
		Price:        order.Price,
		Size:         order.Size,
		TickDecimals: tickDecimals,
		FeeRateBps:   feeRateBps,
		ExpiresAt:    time.Now().Add(orderLifetime).Unix(),
	}
	signed := g.signer.Sign(intent)
	payload := orderPayload{Order: signed, Owner: g.signer.creds.ApiKey, OrderType: "FOK"}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.OrderAck{}, fmt.Errorf("marshal order: %w", err)
	}
	headers, err := g.signer.L2Headers("POST", "/order", string(body))
	if err != nil {
		return types.OrderAck{}, fmt.Errorf("l2 headers: %w", err)
	}

	var result orderResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(payload).
		SetResult(&result).
		Post("/order")
	if err != nil {
		return types.OrderAck{}, fmt.Errorf("place order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.OrderAck{
			OrderID:      order.ID,
			Status:       types.StatusRejected,
			RejectReason: resp.String(),
			LatencyMs:    float64(time.Since(submitAt).Microseconds()) / 1000,
		}, nil
	}

	ack := ackFromResponse(order, result)
	ack.LatencyMs = float64(time.Since(submitAt).Microseconds()) / 1000
	if result.Success && result.OrderID != "" {
		g.track(order.MarketSlug, trackedOrder{localID: order.ID, venueID: result.OrderID})
	}
	return ack, nil
}

// ackFromResponse maps the venue's REST response onto OrderAck. The REST
// ack only distinguishes immediate-match from resting-or-rejected; actual
// partial fills on a resting order arrive on the user WebSocket channel,
// which this gateway does not subscribe to — short-duration markets are
// dominated by orders that cross the spread and match immediately, so the
// resting case is rare and conservatively reported as a timeout (treated
// as unfilled by the caller) rather than guessed at.
func ackFromResponse(order types.Order, result orderResponse) types.OrderAck {
	if !result.Success {
		return types.OrderAck{OrderID: order.ID, Status: types.StatusRejected, RejectReason: result.ErrorMsg}
	}
	switch result.Status {
	case "matched":
		price, size := order.Price, order.Size
		return types.OrderAck{OrderID: order.ID, Status: types.StatusFilled, FilledPrice: &price, FilledSize: &size}
	default:
		return types.OrderAck{OrderID: order.ID, Status: types.StatusTimeout}
	}
}

func (g *Gateway) track(marketSlug string, t trackedOrder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byMarket[marketSlug] = append(g.byMarket[marketSlug], t)
}

// CancelAll cancels every tracked order for marketSlug, or every open
// order across all markets when marketSlug is empty.
func (g *Gateway) CancelAll(ctx context.Context, marketSlug string) error {
	if g.dryRun {
		g.logger.Info("DRY-RUN: would cancel orders", "market", marketSlug)
		return nil
	}
	if marketSlug == "" {
		return g.cancelEverything(ctx)
	}
	return g.cancelMarket(ctx, marketSlug)
}

func (g *Gateway) cancelEverything(ctx context.Context) error {
	if err := g.rl.cancel.wait(ctx); err != nil {
		return err
	}
	headers, err := g.signer.L2Headers("DELETE", "/cancel-all", "")
	if err != nil {
		return fmt.Errorf("l2 headers: %w", err)
	}
	var result cancelResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Delete("/cancel-all")
	if err != nil {
		return fmt.Errorf("cancel all: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel all: status %d: %s", resp.StatusCode(), resp.String())
	}
	g.mu.Lock()
	g.byMarket = make(map[string][]trackedOrder)
	g.mu.Unlock()
	g.logger.Warn("all orders cancelled", "count", len(result.Canceled))
	return nil
}

func (g *Gateway) cancelMarket(ctx context.Context, marketSlug string) error {
	g.mu.Lock()
	_, tracked := g.byMarket[marketSlug]
	g.mu.Unlock()
	if !tracked {
		return nil
	}

	if err := g.rl.cancel.wait(ctx); err != nil {
		return err
	}
	body := fmt.Sprintf(`{"market":%q}`, marketSlug)
	headers, err := g.signer.L2Headers("DELETE", "/cancel-market-orders", body)
	if err != nil {
		return fmt.Errorf("l2 headers: %w", err)
	}
	var result cancelResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Delete("/cancel-market-orders")
	if err != nil {
		return fmt.Errorf("cancel market orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel market orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	g.mu.Lock()
	delete(g.byMarket, marketSlug)
	g.mu.Unlock()
	g.logger.Info("market orders cancelled", "market", marketSlug, "count", len(result.Canceled))
	return nil
}
