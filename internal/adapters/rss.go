package adapters

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// RSSAdapter polls an RSS 2.0 feed (rss > channel > item) and returns one
// observation per item, using the feed's own item GUID (or link, when a
// feed omits guid) as the idempotency key. Atom feeds (feed > entry) are
// not parsed and yield no observations.
type RSSAdapter struct {
	client HTTPDoer
}

// NewRSSAdapter builds an RSSAdapter using client for feed fetches.
func NewRSSAdapter(client HTTPDoer) *RSSAdapter {
	return &RSSAdapter{client: client}
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	GUID        string `xml:"guid"`
	Link        string `xml:"link"`
	Title       string `xml:"title"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

func (a *RSSAdapter) Fetch(ctx context.Context, src *domain.Source) ([]RawObservation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rss adapter: fetch %s: %w", src.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rss adapter: %s returned status %d", src.URL, resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("rss adapter: parse %s: %w", src.URL, err)
	}

	fetchedAt := time.Now().UTC()
	obs := make([]RawObservation, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		id := strings.TrimSpace(item.GUID)
		if id == "" {
			id = strings.TrimSpace(item.Link)
		}
		if id == "" {
			continue
		}
		text := strings.TrimSpace(item.Title)
		if desc := cleanText(item.Description); desc != "" {
			text = text + ". " + desc
		}
		if text == "" {
			continue
		}
		obs = append(obs, RawObservation{
			ExternalID: id,
			SourceURL:  item.Link,
			Text:       text,
			FetchedAt:  fetchedAt,
		})
	}
	return obs, nil
}
