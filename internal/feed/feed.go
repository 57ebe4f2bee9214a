// Package feed connects to the external world: a spot-reference trade
// stream and the venue's CLOB quote/book stream for one market's two
// outcome tokens. Both connections auto-reconnect with exponential
// backoff and funnel decoded events onto a single types.InboundEvent
// channel, alongside a periodic heartbeat tick the engine uses to detect
// feed staleness independent of any inbound message.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xtitan6/btcud-mm/internal/config"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

const (
	initialBackoff  = 1 * time.Second
	maxBackoff      = 10 * time.Second
	venuePingEvery  = 10 * time.Second
	tickInterval    = 100 * time.Millisecond
	eventBufferSize = 4096
)

// Feed produces the decoded inbound event stream for one market.
type Feed struct {
	referenceURL string
	venueURL     string
	logger       *slog.Logger
}

// New builds a Feed pointed at the configured reference and venue
// WebSocket endpoints.
func New(cfg config.Config, logger *slog.Logger) *Feed {
	return &Feed{
		referenceURL: cfg.API.ReferenceWSURL,
		venueURL:     cfg.API.WSMarketURL,
		logger:       logger.With("component", "feed"),
	}
}

// Subscribe starts the reference feed, venue feed, and heartbeat tick for
// one market and returns the merged event channel. Every producer
// goroutine exits once ctx is canceled; the channel itself is never
// closed, so readers stop on ctx rather than on channel close.
func (f *Feed) Subscribe(ctx context.Context, info types.MarketInfo) (<-chan types.InboundEvent, error) {
	out := make(chan types.InboundEvent, eventBufferSize)

	go f.referenceLoop(ctx, out)
	go f.venueLoop(ctx, info.UpTokenID, info.DownTokenID, out)
	go f.tickLoop(ctx, out)

	return out, nil
}

func (f *Feed) tickLoop(ctx context.Context, out chan<- types.InboundEvent) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case out <- types.InboundEvent{Kind: types.EventTick}:
			default:
			}
		}
	}
}

// --- reference feed (spot trade stream) ---

type referenceTradeMsg struct {
	Price string `json:"p"`
	Qty   string `json:"q"`
	TsMs  int64  `json:"T"`
}

func (f *Feed) referenceLoop(ctx context.Context, out chan<- types.InboundEvent) {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		if err := f.connectReference(ctx, out); err != nil {
			f.logger.Warn("reference feed disconnected", "error", err, "backoff", backoff)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (f *Feed) connectReference(ctx context.Context, out chan<- types.InboundEvent) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.referenceURL, nil)
	if err != nil {
		return fmt.Errorf("dial reference feed: %w", err)
	}
	defer conn.Close()
	f.logger.Info("reference feed connected")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read reference feed: %w", err)
		}
		trade, ok := parseReferenceTrade(msg)
		if !ok {
			continue
		}
		select {
		case out <- types.InboundEvent{Kind: types.EventReferenceTrade, ReferenceTrade: trade}:
		case <-ctx.Done():
			return ctx.Err()
		default:
			f.logger.Warn("reference event channel full, dropping trade")
		}
	}
}

func parseReferenceTrade(raw []byte) (types.ReferenceTrade, bool) {
	var m referenceTradeMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return types.ReferenceTrade{}, false
	}
	price, err := strconv.ParseFloat(m.Price, 64)
	if err != nil {
		return types.ReferenceTrade{}, false
	}
	qty, _ := strconv.ParseFloat(m.Qty, 64)
	return types.ReferenceTrade{
		ExchangeTsMs: m.TsMs,
		RecvAt:       time.Now(),
		Price:        price,
		Qty:          qty,
	}, true
}

// --- venue feed (CLOB quote/book stream) ---

type venueEventMsg struct {
	EventType string          `json:"event_type"`
	AssetID   string          `json:"asset_id"`
	Timestamp json.RawMessage `json:"timestamp"`
	BestBid   json.RawMessage `json:"best_bid"`
	BestAsk   json.RawMessage `json:"best_ask"`
	Bids      []venueLevelMsg `json:"bids"`
	Asks      []venueLevelMsg `json:"asks"`
}

type venueLevelMsg struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

func (f *Feed) venueLoop(ctx context.Context, upTokenID, downTokenID string, out chan<- types.InboundEvent) {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		if err := f.connectVenue(ctx, upTokenID, downTokenID, out); err != nil {
			f.logger.Warn("venue feed disconnected", "error", err, "backoff", backoff)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (f *Feed) connectVenue(ctx context.Context, upTokenID, downTokenID string, out chan<- types.InboundEvent) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.venueURL, nil)
	if err != nil {
		return fmt.Errorf("dial venue feed: %w", err)
	}
	defer conn.Close()

	sub := map[string]interface{}{
		"assets_ids":             []string{upTokenID, downTokenID},
		"type":                   "market",
		"custom_feature_enabled": true,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe venue feed: %w", err)
	}
	f.logger.Info("venue feed connected", "up_token", shortID(upTokenID), "down_token", shortID(downTokenID))

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go f.venuePingLoop(pingCtx, conn)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read venue feed: %w", err)
		}
		f.dispatchVenueMessage(msg, upTokenID, downTokenID, out, ctx)
	}
}

func (f *Feed) venuePingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(venuePingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatchVenueMessage parses either a single event object or an array of
// events, emitting a VenueQuote for best_bid_ask/price_change updates and
// a VenueBook for full book snapshots.
func (f *Feed) dispatchVenueMessage(raw []byte, upTokenID, downTokenID string, out chan<- types.InboundEvent, ctx context.Context) {
	var events []venueEventMsg
	if err := json.Unmarshal(raw, &events); err != nil {
		var single venueEventMsg
		if err := json.Unmarshal(raw, &single); err != nil {
			return
		}
		events = []venueEventMsg{single}
	}

	quote := types.VenueQuote{ServerTsMs: time.Now().UnixMilli(), RecvAt: time.Now()}
	haveQuote := false

	for _, ev := range events {
		switch ev.EventType {
		case "best_bid_ask", "price_change":
			applyQuoteSide(&quote, ev, upTokenID, downTokenID)
			haveQuote = true
		case "book":
			isUp := ev.AssetID == upTokenID
			if !isUp && ev.AssetID != downTokenID {
				continue
			}
			book := types.VenueBook{
				RecvAt: time.Now(),
				IsUp:   isUp,
				Bids:   parseLevels(ev.Bids),
				Asks:   parseLevels(ev.Asks),
			}
			select {
			case out <- types.InboundEvent{Kind: types.EventVenueBook, VenueBook: book}:
			case <-ctx.Done():
				return
			default:
				f.logger.Warn("venue event channel full, dropping book")
			}
		}
	}

	if haveQuote {
		select {
		case out <- types.InboundEvent{Kind: types.EventVenueQuote, VenueQuote: quote}:
		case <-ctx.Done():
		default:
			f.logger.Warn("venue event channel full, dropping quote")
		}
	}
}

func applyQuoteSide(quote *types.VenueQuote, ev venueEventMsg, upTokenID, downTokenID string) {
	bid := parseOptionalFloat(ev.BestBid)
	ask := parseOptionalFloat(ev.BestAsk)
	// The venue publishes placeholder extremes for an empty side.
	if bid != nil && *bid < 0.02 {
		bid = nil
	}
	if ask != nil && (*ask <= 0 || *ask >= 0.98) {
		ask = nil
	}
	switch ev.AssetID {
	case upTokenID:
		if bid != nil {
			quote.UpBid = bid
		}
		if ask != nil {
			quote.UpAsk = ask
		}
	case downTokenID:
		if bid != nil {
			quote.DownBid = bid
		}
		if ask != nil {
			quote.DownAsk = ask
		}
	}
}

func parseOptionalFloat(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return &v
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	return nil
}

func parseLevels(raw []venueLevelMsg) []types.BookLevel {
	levels := make([]types.BookLevel, 0, len(raw))
	for _, l := range raw {
		price, err := strconv.ParseFloat(l.Price, 64)
		if err != nil {
			continue
		}
		size, _ := strconv.ParseFloat(l.Size, 64)
		levels = append(levels, types.BookLevel{Price: price, Size: size})
	}
	return levels
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
