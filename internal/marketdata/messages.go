package marketdata

import (
	"encoding/json"
	"fmt"
	"time"
)

// Outbound venue messages.

type authRequest struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type subscribeRequest struct {
	Action string   `json:"action"`
	Trades []string `json:"trades"`
	Quotes []string `json:"quotes"`
	Bars   []string `json:"bars"`
}

// Inbound messages arrive as a JSON array of tagged records
// distinguished by the "T" discriminant.
const (
	msgTypeSuccess = "success"
	msgTypeError   = "error"
	msgTypeQuote   = "q"
	msgTypeTrade   = "t"
)

type venueMessage struct {
	Type    string    `json:"T"`
	Msg     string    `json:"msg,omitempty"`
	Code    int       `json:"code,omitempty"`
	Symbol  string    `json:"S,omitempty"`
	BidPx   float64   `json:"bp,omitempty"`
	AskPx   float64   `json:"ap,omitempty"`
	BidSize float64   `json:"bs,omitempty"`
	AskSize float64   `json:"as,omitempty"`
	Price   float64   `json:"p,omitempty"`
	Size    float64   `json:"s,omitempty"`
	Stamp   time.Time `json:"t,omitempty"`
}

// parseMessages decodes an inbound frame. The venue batches records
// into arrays; a bare object is tolerated as a single-record batch.
func parseMessages(data []byte) ([]venueMessage, error) {
	var batch []venueMessage
	if err := json.Unmarshal(data, &batch); err == nil {
		return batch, nil
	}
	var single venueMessage
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("malformed venue message: %w", err)
	}
	return []venueMessage{single}, nil
}

// Tick is a normalized market tick: the append-only cache row and the
// unit forwarded to in-process consumers.
type Tick struct {
	Symbol    string    `db:"symbol" json:"symbol"`
	Bid       float64   `db:"bid" json:"bid"`
	Ask       float64   `db:"ask" json:"ask"`
	Volume    float64   `db:"volume" json:"volume"`
	Timestamp time.Time `db:"ts" json:"timestamp"`
}

// Mid is the mid price, or the single known side if one is missing.
func (t Tick) Mid() float64 {
	switch {
	case t.Bid > 0 && t.Ask > 0:
		return (t.Bid + t.Ask) / 2
	case t.Bid > 0:
		return t.Bid
	default:
		return t.Ask
	}
}

// tick normalizes a quote or trade record. Returns false for records
// that do not carry price data.
func (m venueMessage) tick() (Tick, bool) {
	stamp := m.Stamp
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}
	switch m.Type {
	case msgTypeQuote:
		if m.Symbol == "" || (m.BidPx <= 0 && m.AskPx <= 0) {
			return Tick{}, false
		}
		return Tick{
			Symbol:    m.Symbol,
			Bid:       m.BidPx,
			Ask:       m.AskPx,
			Volume:    m.BidSize + m.AskSize,
			Timestamp: stamp,
		}, true
	case msgTypeTrade:
		if m.Symbol == "" || m.Price <= 0 {
			return Tick{}, false
		}
		return Tick{
			Symbol:    m.Symbol,
			Bid:       m.Price,
			Ask:       m.Price,
			Volume:    m.Size,
			Timestamp: stamp,
		}, true
	default:
		return Tick{}, false
	}
}
