package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hylo-so/hylo-engine/internal/prices"
)

const (
	RestAPI = "https://api.binance.com"
	WSAPI   = "wss://stream.binance.com:9443/ws"
)

// ErrUnsupportedSymbol is returned for symbols that cannot stand in for a
// USD oracle feed.
var ErrUnsupportedSymbol = errors.New("binance: unsupported symbol")

// usdQuotes are the quote assets accepted as USD. The engine prices SOL/USD
// (and BTC/USD for exo collateral) off these books.
var usdQuotes = []string{"USDT", "USDC", "FDUSD"}

// Provider quotes SOL/USD from Binance book tickers. Mid price becomes the
// tick price and the bid/ask spread feeds the oracle confidence.
type Provider struct {
	logger  *zap.SugaredLogger
	client  *http.Client
	restURL string
	wsURL   string
	dialer  *websocket.Dialer
	now     func() time.Time

	mu     sync.RWMutex
	health prices.ProviderHealth
}

func NewProvider(logger *zap.SugaredLogger) *Provider {
	return NewProviderWithURLs(logger, RestAPI, WSAPI)
}

// NewProviderWithURLs points the provider at other endpoints.
func NewProviderWithURLs(logger *zap.SugaredLogger, restURL, wsURL string) *Provider {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Provider{
		logger:  logger.With("provider", "binance"),
		client:  &http.Client{Timeout: 10 * time.Second},
		restURL: strings.TrimRight(restURL, "/"),
		wsURL:   strings.TrimRight(wsURL, "/"),
		dialer:  websocket.DefaultDialer,
		now:     time.Now,
		health:  prices.ProviderHealth{Healthy: true, LastSuccess: time.Now()},
	}
}

func (p *Provider) Name() string { return "binance" }

func (p *Provider) Health() prices.ProviderHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}

func (p *Provider) ok() {
	p.mu.Lock()
	p.health.Healthy = true
	p.health.LastSuccess = p.now()
	p.health.LastError = ""
	p.mu.Unlock()
}

// fail records err and returns it, counting a reconnect when the stream
// dropped.
func (p *Provider) fail(err error, dropped bool) error {
	p.mu.Lock()
	p.health.Healthy = false
	p.health.LastError = err.Error()
	if dropped {
		p.health.Reconnects++
	}
	p.mu.Unlock()
	return err
}

// normalizeSymbol upper-cases symbol and checks that it quotes in a USD
// stablecoin, e.g. SOLUSDT.
func normalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, q := range usdQuotes {
		if base, found := strings.CutSuffix(s, q); found && base != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedSymbol, symbol)
}

// bookTicker is both the REST /api/v3/ticker/bookTicker body and the
// <symbol>@bookTicker stream payload.
type bookTicker struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	Bid      string `json:"b"`
	BidQty   string `json:"B"`
	Ask      string `json:"a"`
	AskQty   string `json:"A"`
	// REST field names
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
}

func (b bookTicker) tick(symbol string, ts time.Time) (prices.Tick, error) {
	bidRaw, askRaw := b.Bid, b.Ask
	if bidRaw == "" {
		bidRaw, askRaw = b.BidPrice, b.AskPrice
	}
	bid, err := decimal.NewFromString(bidRaw)
	if err != nil {
		return prices.Tick{}, fmt.Errorf("%w: bid %q", prices.ErrBadTick, bidRaw)
	}
	ask, err := decimal.NewFromString(askRaw)
	if err != nil {
		return prices.Tick{}, fmt.Errorf("%w: ask %q", prices.ErrBadTick, askRaw)
	}
	if !bid.IsPositive() || ask.LessThan(bid) {
		return prices.Tick{}, fmt.Errorf("%w: crossed or empty book %s/%s", prices.ErrBadTick, bid, ask)
	}
	return prices.Tick{
		Symbol: symbol,
		Price:  bid.Add(ask).Div(decimal.NewFromInt(2)),
		Spread: ask.Sub(bid),
		TsMs:   ts.UnixMilli(),
	}, nil
}

// LatestPrice reads the top of book for symbol.
func (p *Provider) LatestPrice(ctx context.Context, symbol string) (prices.Tick, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return prices.Tick{}, err
	}
	requestURL := p.restURL + "/api/v3/ticker/bookTicker?" + url.Values{"symbol": {sym}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return prices.Tick{}, fmt.Errorf("build book ticker request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return prices.Tick{}, p.fail(fmt.Errorf("fetch %s book ticker: %w", sym, err), false)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return prices.Tick{}, p.fail(fmt.Errorf("binance book ticker %s: status %d", sym, resp.StatusCode), false)
	}

	var body bookTicker
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return prices.Tick{}, p.fail(fmt.Errorf("decode %s book ticker: %w", sym, err), false)
	}
	tick, err := body.tick(sym, p.now())
	if err != nil {
		return prices.Tick{}, p.fail(err, false)
	}
	p.ok()
	return tick, nil
}

// SubscribeLive streams top-of-book updates as ticks until ctx ends or the
// connection drops. The feeder reconnects. Updates arriving while out is
// full are dropped since only the latest book matters to the overlay.
func (p *Provider) SubscribeLive(ctx context.Context, symbol string, out chan<- prices.Tick) error {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return err
	}
	streamURL := fmt.Sprintf("%s/%s@bookTicker", p.wsURL, strings.ToLower(sym))

	conn, _, err := p.dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return p.fail(fmt.Errorf("dial %s: %w", streamURL, err), false)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	p.ok()
	p.logger.Infow("Book ticker stream connected", "symbol", sym)

	var lastUpdate int64
	for {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return p.fail(fmt.Errorf("book ticker stream %s: %w", sym, err), true)
		}

		var book bookTicker
		if err := json.Unmarshal(message, &book); err != nil {
			p.logger.Warnw("Skipping malformed book ticker", "symbol", sym, "error", err)
			continue
		}
		// Stream updates carry a monotonic id; replays are ignored.
		if book.UpdateID != 0 && book.UpdateID <= lastUpdate {
			continue
		}
		tick, err := book.tick(sym, p.now())
		if err != nil {
			p.logger.Warnw("Skipping book ticker", "symbol", sym, "update_id", book.UpdateID, "error", err)
			continue
		}
		lastUpdate = book.UpdateID

		select {
		case out <- tick:
		case <-ctx.Done():
			return ctx.Err()
		default:
			p.logger.Debugw("Tick channel full, dropping book update", "symbol", sym, "update_id", book.UpdateID)
		}
		p.ok()
	}
}
