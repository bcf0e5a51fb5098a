package ledger

import (
	"context"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-portfolio/pkg/streamer"
)

// Quote stream field ids for the QUOTE service. Content entries carry the
// symbol under "key" and numeric fields under stringified field ids.
const (
	quoteFieldBid  = "1"
	quoteFieldAsk  = "2"
	quoteFieldLast = "3"
)

// QuoteHandler returns a streamer callback that feeds price deltas into the
// ledger. The callback only enqueues: a full queue drops the delta with a
// warning rather than blocking the stream's receive goroutine.
func (l *Ledger) QuoteHandler() streamer.Callback {
	return func(service streamer.Service, content []map[string]any) {
		for _, entry := range content {
			symbol, ok := entry["key"].(string)
			if !ok || symbol == "" {
				continue
			}

			price, ok := extractPrice(entry)
			if !ok {
				continue
			}

			select {
			case l.quotes <- quoteDelta{symbol: symbol, price: price}:
			default:
				l.logger.Warn("quote queue full, dropping delta",
					zap.String("service", string(service)),
					zap.String("symbol", symbol))
			}
		}
	}
}

// extractPrice pulls the last trade price from a quote entry, falling back
// to the bid when no trade has printed yet.
func extractPrice(entry map[string]any) (float64, bool) {
	if last, ok := entry[quoteFieldLast].(float64); ok && last > 0 {
		return last, true
	}

	if bid, ok := entry[quoteFieldBid].(float64); ok && bid > 0 {
		return bid, true
	}

	return 0, false
}

// drainQuotes applies queued price deltas. Symbols not present in any
// tracked position are ignored so stream noise cannot create phantom
// holdings; known symbols update the last-price cache used by the
// market-value fallback.
func (l *Ledger) drainQuotes(ctx context.Context) {
	defer func() { l.done <- struct{}{} }()

	for {
		select {
		case <-ctx.Done():
			return
		case delta := <-l.quotes:
			l.applyQuote(delta)
		}
	}
}

func (l *Ledger) applyQuote(delta quoteDelta) {
	l.mu.Lock()
	defer l.mu.Unlock()

	known := false

	for _, bySymbol := range l.positions {
		if _, ok := bySymbol[delta.symbol]; ok {
			known = true

			break
		}
	}

	if !known {
		return
	}

	l.lastPrices[delta.symbol] = delta.price
}

// LastPrice returns the cached streaming price for symbol, if any delta for
// a tracked position has arrived.
func (l *Ledger) LastPrice(symbol string) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	price, ok := l.lastPrices[symbol]

	return price, ok
}
