package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardPayload is the GET /dashboard response body.
type DashboardPayload struct {
	News        []NewsItem       `json:"news"`
	Prices      []PriceItem      `json:"prices"`
	Insight     *Insight         `json:"insight,omitempty"`
	Meme        *Meme            `json:"meme,omitempty"`
	Votes       map[string]int   `json:"votes"`
	Preferences DashboardContent `json:"preferences"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// DashboardContent carries the content types the dashboard was built for.
type DashboardContent struct {
	ContentTypes []string `json:"contentTypes"`
}

type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// PriceItem is a coin quote. Change24h is a percentage.
type PriceItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change24h"`
}

type Insight struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type Meme struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// VoteKey builds the "{type}-{id}" key used in DashboardPayload.Votes.
func VoteKey(targetType, targetID string) string {
	return targetType + "-" + targetID
}

// Clone returns a copy whose Votes map can be edited without touching p.
func (p DashboardPayload) Clone() DashboardPayload {
	votes := make(map[string]int, len(p.Votes))
	for k, v := range p.Votes {
		votes[k] = v
	}
	p.Votes = votes
	return p
}
