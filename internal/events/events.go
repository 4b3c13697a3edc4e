package events

import (
	"encoding/json"
	"time"
)

// Event types published over SSE.
const (
	TypeScrapeStarted  = "scrape_started"
	TypeScrapeFinished = "scrape_finished"
	TypeListingAdded   = "listing_added"
	TypeListingClosed  = "listing_closed"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   1,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}
