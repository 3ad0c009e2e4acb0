package normalize

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"PopWatcher/internal/catalog"
	"PopWatcher/internal/domain"
)

// regionCurrency maps store region codes to their currency. European regions
// use EUR, the UK uses GBP, the US store (empty region) uses USD.
var regionCurrency = map[string]string{
	"at": "EUR", "be": "EUR", "bg": "EUR", "hr": "EUR", "cy": "EUR",
	"cz": "EUR", "dk": "EUR", "ee": "EUR", "fi": "EUR", "fr": "EUR",
	"de": "EUR", "gr": "EUR", "hu": "EUR", "ie": "EUR", "it": "EUR",
	"lv": "EUR", "lt": "EUR", "lu": "EUR", "mt": "EUR", "nl": "EUR",
	"pl": "EUR", "pt": "EUR", "ro": "EUR", "sk": "EUR", "si": "EUR",
	"es": "EUR", "se": "EUR",
	"gb": "GBP", "uk": "GBP",
	"": "USD", "us": "USD",
}

var (
	dropDateExpr = regexp.MustCompile(`\d{1,2}/\d{1,2}(?:/\d{2,4})?`)
	dropTimeExpr = regexp.MustCompile(`(?i)\d{1,2}:\d{2}\s*(?:AM|PM)?(?:\s*GMT)?`)
)

// Normalizer maps raw catalog entries into canonical items and applies the
// fandom exclusion policy.
type Normalizer struct {
	region   string
	currency string
	allow    map[string]struct{}
	allowAll bool
	deny     []string
}

// Config carries the filtering policy and region for a normalizer.
type Config struct {
	Region   string
	Fandoms  []string
	DenyList []string
}

// New builds a normalizer. Fandoms containing the literal "All" (or an empty
// list) disables the allow-list; the deny-list always applies.
func New(cfg Config) *Normalizer {
	n := &Normalizer{
		region:   strings.ToLower(strings.TrimSpace(cfg.Region)),
		allow:    map[string]struct{}{},
		allowAll: len(cfg.Fandoms) == 0,
	}

	currency, ok := regionCurrency[n.region]
	if !ok {
		currency = "EUR"
	}
	n.currency = currency

	for _, fandom := range cfg.Fandoms {
		fandom = strings.ToLower(strings.TrimSpace(fandom))
		if fandom == "all" {
			n.allowAll = true
			continue
		}
		if fandom != "" {
			n.allow[fandom] = struct{}{}
		}
	}

	for _, tag := range cfg.DenyList {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			n.deny = append(n.deny, tag)
		}
	}

	return n
}

// Currency returns the currency derived from the configured region.
func (n *Normalizer) Currency() string {
	return n.currency
}

// Normalize converts raw entries into items, silently dropping entries that
// miss a required field (title, identifier, price). Input order is preserved.
func (n *Normalizer) Normalize(entries []catalog.RawEntry, discoveredAt time.Time) []domain.Item {
	items := make([]domain.Item, 0, len(entries))
	for _, entry := range entries {
		item, ok := n.normalizeEntry(entry, discoveredAt)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items
}

func (n *Normalizer) normalizeEntry(entry catalog.RawEntry, discoveredAt time.Time) (domain.Item, bool) {
	title := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(entry.Title), ", Image 1"))
	if title == "" || entry.ProductURL == "" || entry.Price <= 0 {
		return domain.Item{}, false
	}

	license := strings.TrimSpace(entry.License)
	fandom := license
	if fandom == "" {
		fandom = "Other"
	}

	priceDrop := 0.0
	if entry.OriginalPrice > entry.Price {
		priceDrop = round2(entry.OriginalPrice - entry.Price)
	}

	comingSoon, dropDate := parseAvailability(entry.Availability)

	return domain.Item{
		ID:            itemID(title, entry.ProductURL),
		Title:         title,
		Fandom:        fandom,
		License:       license,
		Price:         entry.Price,
		OriginalPrice: entry.OriginalPrice,
		PriceDrop:     priceDrop,
		Currency:      n.currency,
		Region:        n.region,
		ImageURL:      upgradeImageURL(entry.ImageURL),
		AltImageURL:   upgradeImageURL(entry.AltImageURL),
		ProductURL:    entry.ProductURL,
		Badge:         cleanBadge(entry.Badge),
		ComingSoon:    comingSoon,
		DropDate:      dropDate,
		SourcePage:    entry.Page,
		DiscoveredAt:  discoveredAt,
	}, true
}

// Filter applies the deny-list, then the allow-list. Deny wins over allow:
// an item tagged with a denied fandom is excluded even when its fandom is
// also allow-listed.
func (n *Normalizer) Filter(items []domain.Item) []domain.Item {
	kept := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if n.denied(item) {
			continue
		}
		if !n.allowed(item) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func (n *Normalizer) denied(item domain.Item) bool {
	fandom := strings.ToLower(item.Fandom)
	license := strings.ToLower(item.License)
	for _, tag := range n.deny {
		if strings.Contains(fandom, tag) || strings.Contains(license, tag) {
			return true
		}
	}
	return false
}

func (n *Normalizer) allowed(item domain.Item) bool {
	if n.allowAll {
		return true
	}
	_, ok := n.allow[strings.ToLower(item.Fandom)]
	return ok
}

// Dedupe removes repeated ids within one cycle, keeping the first occurrence
// and preserving first-seen order. The same product may appear on several
// scraped pages.
func Dedupe(items []domain.Item) []domain.Item {
	seen := make(map[string]struct{}, len(items))
	unique := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		unique = append(unique, item)
	}
	return unique
}

// itemID derives a stable identifier from title and product URL so the same
// physical product yields the same id across cycles and pages.
func itemID(title, productURL string) string {
	sum := md5.Sum([]byte(title + "_" + productURL))
	return hex.EncodeToString(sum[:])[:16]
}

// upgradeImageURL swaps the tile thumbnail size for the large rendition.
func upgradeImageURL(imageURL string) string {
	if imageURL == "" {
		return ""
	}
	return strings.Replace(imageURL, "sw=346&sh=346", "sw=800&sh=800", 1)
}

func cleanBadge(badge string) string {
	badge = strings.TrimSpace(badge)
	switch strings.ToLower(badge) {
	case "", "null", "none":
		return ""
	}
	return strings.Title(strings.ToLower(badge)) //nolint:staticcheck // site badges are plain ASCII
}

func parseAvailability(text string) (bool, string) {
	lowered := strings.ToLower(text)
	if !strings.Contains(lowered, "coming soon") && !strings.Contains(lowered, "pre-order") {
		return false, ""
	}

	date := dropDateExpr.FindString(text)
	if date == "" {
		return true, ""
	}
	if at := dropTimeExpr.FindString(text); at != "" {
		return true, fmt.Sprintf("%s at %s", date, at)
	}
	return true, date
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
