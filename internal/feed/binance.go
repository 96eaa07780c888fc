package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

const _binanceBaseWsUrl = "wss://stream.binance.com:9443/ws"

// Binance streams the bookTicker of one symbol and adapts it into
// PriceEvent samples, serving as the reference-feed implementation of
// Source.
type Binance struct {
	wss    *ws.WebSocket
	symbol string
}

// NewBinance creates a client for one symbol; the websocket stays idle
// until Start is called.
func NewBinance(ctx context.Context, symbol string) *Binance {
	return &Binance{
		wss:    ws.New(ctx, _binanceBaseWsUrl),
		symbol: symbol,
	}
}

func (repo *Binance) Len() int {
	return repo.wss.Len()
}

func (repo *Binance) Close() {
	repo.wss.Close()
}

func (repo *Binance) CloseWhenEmpty() bool {
	if repo.Len() == 0 {
		repo.Close()
		logs.Info("close websocket. reason: empty")
		return true
	}

	return false
}

// Start opens the websocket and subscribes the bookTicker stream.
func (repo *Binance) Start(ctx context.Context) error {
	if err := repo.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	if err := repo.subscribeBookTicker(ctx); err != nil {
		return errors.Wrap(err, "subscribe book ticker")
	}

	return nil
}

type binanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type binanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func subscriberResponseParser(m ws.Message) (binanceSubscribeResponse, bool) {
	var resp binanceSubscribeResponse
	err := m.Unmarshal(&resp)
	return resp, err == nil
}

// subscribeBookTicker subscribes 'Individual Symbol Book Ticker Stream'
func (repo *Binance) subscribeBookTicker(ctx context.Context) error {
	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := binanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{
					fmt.Sprintf("%s@bookTicker", strings.ToLower(repo.symbol)),
				},
				ID: 1,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := subscriberResponseParser(m)
			if !ok || resp.ID != 1 {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

type binanceBookTicker struct {
	UpdateID  int64  `json:"u"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	BidPrice  string `json:"b"`
	BidQty    string `json:"B"`
	AskPrice  string `json:"a"`
	AskQty    string `json:"A"`
}

var two = decimal.NewFromInt(2)

func (t binanceBookTicker) toPriceEvent() (PriceEvent, bool) {
	bid, err := decimal.NewFromString(t.BidPrice)
	if err != nil {
		return PriceEvent{}, false
	}
	ask, err := decimal.NewFromString(t.AskPrice)
	if err != nil {
		return PriceEvent{}, false
	}
	if bid.IsZero() || ask.IsZero() {
		return PriceEvent{}, false
	}
	return PriceEvent{
		TsMs:    t.EventTime,
		Mid:     bid.Add(ask).Div(two),
		BestBid: bid,
		BestAsk: ask,
	}, true
}

// Observe implements Source. Malformed or partial ticker messages are
// dropped.
func (repo *Binance) Observe(ctx context.Context, handler func(PriceEvent)) (unsubscribe func()) {
	ch, cancel := repo.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				ticker, ok := ws.ReadMessage[binanceBookTicker](m)
				if !ok || !strings.EqualFold(ticker.Symbol, repo.symbol) {
					continue
				}

				ev, ok := ticker.toPriceEvent()
				if !ok {
					continue
				}

				handler(ev)
			}
		}
	}()

	return cancel
}
