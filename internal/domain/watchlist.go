package domain

import "time"

type Watchlist struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WatchlistDetail is a watchlist together with its most recent events.
type WatchlistDetail struct {
	Watchlist
	Events []Event `json:"events"`
}

type WatchlistRequest struct {
	Name string `json:"name"`
}
