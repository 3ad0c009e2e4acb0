package funko

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PopWatcher/internal/catalog"
)

const defaultBaseURL = "https://funko.com"

// Scraper crawls funko.com catalog pages and extracts product tiles.
//
// Tiles are div.product-tile blocks:
//   - img.tile-main-image       name (alt), image (src)
//   - img.tile-alt-hover-image  alternate in-box shot (src)
//   - a.image-link              product URL (href)
//   - span.sales .value         sale price (content attr)
//   - span.strike-through .value  original price (content attr)
//   - div.product-license       fandom/license
//   - div.product-flag          badge (exclusive, web exclusive, ...)
//   - div.product-availability  coming-soon / drop date text
type Scraper struct {
	client  *http.Client
	baseURL string
}

var _ catalog.Source = (*Scraper)(nil)

// NewScraper wires an HTTP client; the client's timeout is the mandatory
// per-call bound for page fetches.
func NewScraper(client *http.Client, baseURL string) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Scraper{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Name identifies the strategy inside the registry.
func (s *Scraper) Name() string {
	return "funko"
}

// FetchPage downloads one catalog page and returns its raw product entries.
func (s *Scraper) FetchPage(ctx context.Context, req catalog.Request) ([]catalog.RawEntry, error) {
	pageURL, err := s.buildPageURL(req.Page, req.Region)
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", req.Page, err)
	}

	doc, err := s.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", req.Page, err)
	}

	return extractEntries(doc, req.Page), nil
}

func (s *Scraper) buildPageURL(page, region string) (string, error) {
	raw := s.baseURL
	if region != "" {
		raw += "/" + region
	}
	raw += "/new-featured/" + page + "/"

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid page url %s: %w", raw, err)
	}
	return parsed.String(), nil
}

func (s *Scraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PopWatcher/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractEntries(doc *goquery.Document, page string) []catalog.RawEntry {
	var entries []catalog.RawEntry

	doc.Find("div.product-tile").Each(func(_ int, tile *goquery.Selection) {
		entry, ok := parseTile(tile, page)
		if !ok {
			return
		}
		entries = append(entries, entry)
	})

	return entries
}

// parseTile extracts a single tile. Tiles without a main image are skipped;
// other missing fields are left empty for the normalizer to judge.
func parseTile(tile *goquery.Selection, page string) (catalog.RawEntry, bool) {
	img := tile.Find("img.tile-main-image").First()
	if img.Length() == 0 {
		return catalog.RawEntry{}, false
	}

	entry := catalog.RawEntry{
		Title:        strings.TrimSpace(img.AttrOr("alt", "")),
		ImageURL:     img.AttrOr("src", ""),
		AltImageURL:  tile.Find("img.tile-alt-hover-image").First().AttrOr("src", ""),
		ProductURL:   tile.Find("a.image-link").First().AttrOr("href", ""),
		License:      strings.TrimSpace(tile.Find("div.product-license").First().Text()),
		Badge:        strings.TrimSpace(tile.Find("div.product-flag").First().Text()),
		Availability: strings.TrimSpace(tile.Find("div.product-availability").First().Text()),
		Page:         page,
	}

	entry.Price = tileValue(tile, "span.sales")
	entry.OriginalPrice = tileValue(tile, "span.strike-through")

	return entry, true
}

func tileValue(tile *goquery.Selection, selector string) float64 {
	content := tile.Find(selector + " span.value").First().AttrOr("content", "")
	if content == "" {
		return 0
	}
	value, err := strconv.ParseFloat(content, 64)
	if err != nil {
		return 0
	}
	return value
}
