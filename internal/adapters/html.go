package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// HTMLAdapter scrapes a police-blotter or news page's main content and
// treats the whole page as a single observation. Sources configured with
// a "list_selector" produce one observation per matched element instead,
// letting a blotter table or an article-list page yield many items per
// fetch.
type HTMLAdapter struct {
	client HTTPDoer
}

// NewHTMLAdapter builds an HTMLAdapter using client for page fetches.
func NewHTMLAdapter(client HTTPDoer) *HTMLAdapter {
	return &HTMLAdapter{client: client}
}

// Fetch downloads src.URL and extracts either the whole page's text or one
// observation per element matching the source's configured list_selector.
func (a *HTMLAdapter) Fetch(ctx context.Context, src *domain.Source) ([]RawObservation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ingestion-pipeline/1.0 (+local-intelligence)")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("html adapter: fetch %s: %w", src.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("html adapter: %s returned status %d", src.URL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("html adapter: parse %s: %w", src.URL, err)
	}

	fetchedAt := time.Now().UTC()
	selector, _ := src.Config["list_selector"].(string)
	if selector == "" {
		text := cleanText(doc.Find("body").Text())
		if text == "" {
			return nil, nil
		}
		return []RawObservation{{
			ExternalID: hashText(src.URL + text),
			SourceURL:  src.URL,
			Text:       text,
			FetchedAt:  fetchedAt,
		}}, nil
	}

	var obs []RawObservation
	doc.Find(selector).Each(func(i int, sel *goquery.Selection) {
		text := cleanText(sel.Text())
		if text == "" {
			return
		}
		itemURL := src.URL
		if href, ok := sel.Find("a").Attr("href"); ok {
			itemURL = resolveHref(src.URL, href)
		}
		obs = append(obs, RawObservation{
			ExternalID: hashText(itemURL + text),
			SourceURL:  itemURL,
			Text:       text,
			FetchedAt:  fetchedAt,
		})
	})
	return obs, nil
}

func cleanText(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// resolveHref makes a best-effort absolute URL out of a relative href
// found on a listing page. An absolute http(s) href is returned unchanged,
// a root-relative href is joined to the base URL's scheme and host, and
// any other href falls back to the base page URL.
func resolveHref(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		if idx := strings.Index(base, "://"); idx != -1 {
			if slash := strings.Index(base[idx+3:], "/"); slash != -1 {
				return base[:idx+3+slash] + href
			}
			return base + href
		}
	}
	return base
}
