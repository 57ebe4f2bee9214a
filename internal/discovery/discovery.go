// Package discovery finds the next tradeable short-duration Up/Down
// market on the venue's public market-listing API and hands it to the
// engine as a types.MarketInfo.
//
// Slug-based lookup covers intervals whose slug encodes the window's Unix
// start timestamp (e.g. "btc-updown-5m-1705320000"); markets whose slug is
// a human-readable date (commonly 1h windows) fall back to a series-ID
// search over the venue's active events.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/0xtitan6/btcud-mm/internal/config"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// gammaEvent is the subset of the venue's event JSON this package reads.
type gammaEvent struct {
	Slug    string         `json:"slug"`
	EndDate string         `json:"endDate"`
	Markets []gammaMarket  `json:"markets"`
}

type gammaMarket struct {
	GroupItemTitle string `json:"groupItemTitle"`
	Outcome        string `json:"outcome"`
	Outcomes       string `json:"outcomes"`
	ClobTokenIds   string `json:"clobTokenIds"`
}

// Discovery polls the venue for the current or next window of the
// configured asset/interval and emits a types.MarketInfo per discovered
// market, deduplicated by slug.
type Discovery struct {
	httpClient *resty.Client
	asset      string
	interval   types.Interval
	seriesID   string
	pollEvery  time.Duration
	logger     *slog.Logger
	resultCh   chan types.MarketInfo
	seen       map[string]bool
}

// New builds a Discovery that looks up markets for cfg.Asset/cfg.Interval
// against the venue's Gamma-style listing API. seriesID is the fallback
// series identifier used when slug-based lookup misses (e.g. 1h markets
// with human-readable slugs).
func New(cfg config.Config, seriesID string, logger *slog.Logger) *Discovery {
	client := resty.New().
		SetBaseURL(cfg.API.GammaBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	poll := cfg.Discovery.PollInterval
	if poll <= 0 {
		poll = 10 * time.Second
	}

	return &Discovery{
		httpClient: client,
		asset:      strings.ToLower(cfg.Asset),
		interval:   intervalFromLabel(cfg.Interval),
		seriesID:   seriesID,
		pollEvery:  poll,
		logger:     logger.With("component", "discovery"),
		resultCh:   make(chan types.MarketInfo, 1),
		seen:       make(map[string]bool),
	}
}

func intervalFromLabel(label string) types.Interval {
	switch label {
	case "15m":
		return types.Interval15m
	case "1h":
		return types.Interval1h
	case "4h":
		return types.Interval4h
	default:
		return types.Interval5m
	}
}

// Results returns the channel the engine reads newly discovered markets
// from.
func (d *Discovery) Results() <-chan types.MarketInfo {
	return d.resultCh
}

// Run polls on an interval until ctx is canceled, emitting every newly
// seen market exactly once.
func (d *Discovery) Run(ctx context.Context) {
	d.poll(ctx)

	ticker := time.NewTicker(d.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *Discovery) poll(ctx context.Context) {
	market, err := d.discoverNext(ctx)
	if err != nil {
		d.logger.Warn("discovery failed, retrying next interval", "error", err)
		return
	}
	if market == nil || d.seen[market.Slug] {
		return
	}
	nowMs := time.Now().UnixMilli()
	if market.EndMs < nowMs {
		d.logger.Debug("discovered market already ended, skipping", "slug", market.Slug)
		return
	}

	d.seen[market.Slug] = true
	select {
	case d.resultCh <- *market:
		d.logger.Info("market discovered", "slug", market.Slug, "start_ms", market.StartMs, "end_ms", market.EndMs)
	case <-ctx.Done():
	}
}

// discoverNext tries the current and next window slugs, falling back to a
// series-ID search when neither slug resolves (human-readable 1h slugs).
func (d *Discovery) discoverNext(ctx context.Context) (*types.MarketInfo, error) {
	windowSecs := int64(d.interval.Duration().Seconds())
	nowSec := time.Now().Unix()
	currentWindowStart := (nowSec / windowSecs) * windowSecs
	candidates := []int64{currentWindowStart, currentWindowStart + windowSecs}

	prefix := fmt.Sprintf("%s-updown-%s-", d.asset, d.interval.Label())
	windowMs := windowSecs * 1000

	for _, windowStart := range candidates {
		slug := prefix + strconv.FormatInt(windowStart, 10)
		market, err := d.fetchEventBySlug(ctx, slug, windowMs)
		if err != nil {
			d.logger.Debug("slug lookup error", "slug", slug, "error", err)
			continue
		}
		if market != nil {
			return market, nil
		}
	}

	if d.seriesID == "" {
		return nil, fmt.Errorf("no active %s %s market found for current/next window", d.asset, d.interval.Label())
	}
	return d.discoverViaSeries(ctx, windowMs)
}

func (d *Discovery) fetchEventBySlug(ctx context.Context, slug string, windowMs int64) (*types.MarketInfo, error) {
	var events []gammaEvent
	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetQueryParam("slug", slug).
		SetResult(&events).
		Get("/events")
	if err != nil {
		return nil, fmt.Errorf("fetch event by slug: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch event by slug: status %d", resp.StatusCode())
	}
	if len(events) == 0 {
		return nil, nil
	}
	return parseEventToMarketInfo(events[0], slug, windowMs)
}

func (d *Discovery) discoverViaSeries(ctx context.Context, windowMs int64) (*types.MarketInfo, error) {
	var events []gammaEvent
	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"series_id": d.seriesID,
			"active":    "true",
			"closed":    "false",
			"limit":     "100",
			"order":     "endDate",
			"ascending": "false",
		}).
		SetResult(&events).
		Get("/events")
	if err != nil {
		return nil, fmt.Errorf("series fallback: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("series fallback: status %d", resp.StatusCode())
	}

	nowMs := time.Now().UnixMilli()
	var best *types.MarketInfo
	bestStart := int64(1<<63 - 1)
	for _, ev := range events {
		info, err := parseEventToMarketInfo(ev, ev.Slug, windowMs)
		if err != nil || info == nil {
			continue
		}
		if info.EndMs >= nowMs && info.StartMs < bestStart {
			bestStart = info.StartMs
			best = info
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no active %s market found for series %s", d.asset, d.seriesID)
	}
	return best, nil
}

// parseEventToMarketInfo turns one Gamma-style event JSON object into a
// MarketInfo. Strike is left at 0 — the engine sets it from the first
// reference-feed trade it observes after the market starts.
func parseEventToMarketInfo(ev gammaEvent, slug string, windowMs int64) (*types.MarketInfo, error) {
	if len(ev.Markets) == 0 {
		return nil, nil
	}

	endMs := parseDateTimeMs(ev.EndDate)

	startMs := slugTrailingTimestampMs(slug)
	if startMs == 0 && endMs > 0 {
		startMs = endMs - windowMs
	}
	if startMs == 0 || endMs == 0 {
		return nil, nil
	}

	upToken, downToken := extractTokenIDs(ev.Markets)
	if upToken == "" || downToken == "" {
		return nil, nil
	}

	return &types.MarketInfo{
		Slug:        slug,
		StartMs:     startMs,
		EndMs:       endMs,
		UpTokenID:   upToken,
		DownTokenID: downToken,
		Strike:      0,
	}, nil
}

func slugTrailingTimestampMs(slug string) int64 {
	idx := strings.LastIndex(slug, "-")
	if idx < 0 || idx == len(slug)-1 {
		return 0
	}
	ts, err := strconv.ParseInt(slug[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return normalizeToMs(ts)
}

func normalizeToMs(ts int64) int64 {
	if ts > 1_000_000_000_000 {
		return ts
	}
	return ts * 1000
}

func parseDateTimeMs(s string) int64 {
	if s == "" {
		return 0
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli()
	}
	if t, err := time.Parse("2006-01-02T15:04:05Z", s); err == nil {
		return t.UnixMilli()
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return normalizeToMs(ts)
	}
	return 0
}

// extractTokenIDs finds the Up and Down CLOB token IDs across either the
// two-separate-markets format (groupItemTitle per market) or the
// single-market format (paired outcomes/clobTokenIds JSON-array strings).
func extractTokenIDs(markets []gammaMarket) (up, down string) {
	if len(markets) == 2 {
		for _, m := range markets {
			outcome := strings.ToLower(m.GroupItemTitle)
			if outcome == "" {
				outcome = strings.ToLower(m.Outcome)
			}
			token := firstTokenID(m.ClobTokenIds)
			switch {
			case containsAny(outcome, "up", "yes", "higher"):
				up = token
			case containsAny(outcome, "down", "no", "lower"):
				down = token
			}
		}
	}

	if up != "" && down != "" {
		return up, down
	}

	for _, m := range markets {
		var outcomes, tokens []string
		if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(m.ClobTokenIds), &tokens); err != nil {
			continue
		}
		for i := 0; i < len(outcomes) && i < len(tokens); i++ {
			lower := strings.ToLower(outcomes[i])
			switch {
			case containsAny(lower, "up", "yes", "higher"):
				up = tokens[i]
			case containsAny(lower, "down", "no", "lower"):
				down = tokens[i]
			}
		}
	}

	return up, down
}

func firstTokenID(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "[") {
		var tokens []string
		if err := json.Unmarshal([]byte(raw), &tokens); err == nil && len(tokens) > 0 {
			return tokens[0]
		}
		return ""
	}
	return raw
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
