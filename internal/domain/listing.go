package domain

import "time"

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// ListingSummary carries only the cheap list-page fields. It is what a
// source's List call returns; everything else requires a detail fetch.
type ListingSummary struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Location string     `json:"location"`
	URL      string     `json:"url"`
	PostedOn *time.Time `json:"posted_on,omitempty"`
}

// Details holds the fields that only the detail page provides.
type Details struct {
	Description      string   `json:"description,omitempty"`
	Salary           string   `json:"salary,omitempty"`
	MinimumQuals     []string `json:"minimum_qualifications,omitempty"`
	PreferredQuals   []string `json:"preferred_qualifications,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty"`
	ApplyURL         string   `json:"apply_url,omitempty"`
}

func (d Details) Empty() bool {
	return d.Description == "" && d.Salary == "" && d.ApplyURL == "" &&
		len(d.MinimumQuals) == 0 && len(d.PreferredQuals) == 0 && len(d.Responsibilities) == 0
}

// Listing is the persisted record. Identity is (Company, ID) where ID is the
// source-provided listing ID. Listings are never hard-deleted; a listing that
// disappears from its board is flipped to CLOSED and reactivated if it
// reappears later.
type Listing struct {
	ID       string `json:"id"`
	Company  string `json:"company"`
	Source   string `json:"source"`
	Title    string `json:"title"`
	Location string `json:"location"`
	URL      string `json:"url"`
	Status   Status `json:"status"`

	Details Details `json:"details"`

	PostedOn    *time.Time `json:"posted_on,omitempty"`
	FirstSeenAt time.Time  `json:"first_seen_at"`
	LastSeenAt  time.Time  `json:"last_seen_at"`
	ClosedOn    *time.Time `json:"closed_on,omitempty"`

	ConsecutiveMisses int  `json:"consecutive_misses"`
	DetailsScraped    bool `json:"details_scraped"`
}
