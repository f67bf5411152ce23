package broadcast

import "time"

// ConsensusEvent is published whenever a council reaches a trading decision.
type ConsensusEvent struct {
	Type       string    `json:"type"`
	CouncilID  uint      `json:"council_id"`
	Decision   string    `json:"decision"`
	Symbol     string    `json:"symbol"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// TradeEvent is published for every executed trade leg.
type TradeEvent struct {
	Type      string    `json:"type"`
	CouncilID uint      `json:"council_id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Quantity  string    `json:"quantity"`
	Price     string    `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBroadcaster is the narrow publish-only API that RouterNotifier calls
// after a router commit. Failures are logged and swallowed — they never fail the trading
// path, mirroring event_broadcaster.py's try/except-and-log wrapper around
// every publish call.
type EventBroadcaster struct {
	hub *Hub
}

func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

func (e *EventBroadcaster) BroadcastConsensus(ev ConsensusEvent) {
	ev.Type = "consensus"
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	e.safeBroadcast(ev)
}

func (e *EventBroadcaster) BroadcastTrade(ev TradeEvent) {
	ev.Type = "trade"
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	e.safeBroadcast(ev)
}

// BroadcastCycleComplete publishes consensus followed by each trade, the
// composite emission §4.9 names.
func (e *EventBroadcaster) BroadcastCycleComplete(consensus ConsensusEvent, trades []TradeEvent) {
	e.BroadcastConsensus(consensus)
	for _, t := range trades {
		e.BroadcastTrade(t)
	}
}

func (e *EventBroadcaster) safeBroadcast(msg any) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("broadcast panicked, swallowed: %v", r)
		}
	}()
	e.hub.Broadcast(msg)
}
