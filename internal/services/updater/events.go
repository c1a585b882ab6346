package updater

import "time"

type EventType string

const (
	EventRunStarted  EventType = "run_started"
	EventItemUpdated EventType = "item_updated"
	EventItemFailed  EventType = "item_failed"
	EventRunFinished EventType = "run_finished"
)

// Event is published while a run progresses.
type Event struct {
	Type           EventType  `json:"type"`
	RunID          string     `json:"run_id"`
	At             time.Time  `json:"at"`
	Index          int        `json:"index,omitempty"`
	Total          int        `json:"total"`
	ItemID         uint64     `json:"item_id,omitempty"`
	MarketHashName string     `json:"market_hash_name,omitempty"`
	Price          *float64   `json:"price,omitempty"`
	Error          string     `json:"error,omitempty"`
	Report         *RunReport `json:"report,omitempty"`
}
