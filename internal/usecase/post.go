package usecase

import (
	"fmt"
	"strings"
	"unicode"

	"PopWatcher/internal/domain"
)

// maxPostRunes is the Bluesky post length limit.
const maxPostRunes = 300

var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
}

// genericLicenses are umbrella brands whose hashtag would be too broad; for
// those the character name from the title makes the better tag.
var genericLicenses = map[string]struct{}{
	"marvel": {}, "dc": {}, "anime": {}, "disney": {}, "star wars": {}, "gaming": {},
}

var knownCharacters = []string{
	"Spider-Man", "Iron Man", "Captain America", "Black Widow", "Thor",
	"Hulk", "Wolverine", "Deadpool", "Venom",
	"Batman", "Superman", "Wonder Woman", "Harley Quinn", "Joker",
	"Flash", "Aquaman", "Green Lantern",
}

// ComposePost renders the announcement text for one item: a status line
// derived from availability and page type, the product line, pricing, the
// product link, and hashtags.
func ComposePost(item domain.Item) string {
	symbol := currencySymbols[item.Currency]
	if symbol == "" {
		symbol = item.Currency
	}

	var b strings.Builder

	emoji, status := postStatus(item)
	b.WriteString(emoji + " " + status)
	if item.Fandom != "" && item.Fandom != "Other" {
		b.WriteString(" [" + item.Fandom + "]")
	}
	b.WriteString("\n")

	b.WriteString("✨ ")
	if item.Badge != "" {
		b.WriteString(item.Badge + " ")
	}
	b.WriteString(item.Title + "\n")

	if item.DropDate != "" {
		b.WriteString("Drops " + item.DropDate + "\n")
	}

	if item.PriceDrop > 0 && item.OriginalPrice > 0 {
		fmt.Fprintf(&b, "Was: %s%.2f → Now: %s%.2f\n", symbol, item.OriginalPrice, symbol, item.Price)
	} else if item.Price > 0 {
		fmt.Fprintf(&b, "Price: %s%.2f\n", symbol, item.Price)
	}

	b.WriteString("\n🔗 " + item.ProductURL + "\n\n")
	b.WriteString("#" + hashtagFromLicense(item.License, item.Title) + " #Funko #FunkoPop")

	return truncatePost(b.String())
}

func postStatus(item domain.Item) (emoji, status string) {
	if item.ComingSoon || item.DropDate != "" {
		return "🔜", "COMING SOON"
	}
	if item.PriceDrop > 0 && item.OriginalPrice > 0 {
		return "🏷️", "SALE"
	}

	switch item.SourcePage {
	case "new-releases":
		return "🆕", "NEW RELEASE"
	case "back-in-stock":
		return "🔄", "BACK IN STOCK"
	case "exclusives":
		return "⭐", "EXCLUSIVE"
	case "best-selling":
		return "🔥", "BEST SELLER"
	}
	return "🏷️", "Funko Pop"
}

// hashtagFromLicense turns the license into a PascalCase hashtag. The site's
// license field usually carries the specific series name; for umbrella
// licenses the character name is extracted from the title instead.
func hashtagFromLicense(license, title string) string {
	source := license
	if source == "" {
		source = title
	}

	if _, generic := genericLicenses[strings.ToLower(source)]; generic && title != "" {
		cleaned := strings.TrimSpace(strings.NewReplacer("Pop!", "", "Plus", "").Replace(title))
		source = firstWord(cleaned)
		for _, character := range knownCharacters {
			if strings.Contains(strings.ToLower(cleaned), strings.ToLower(character)) {
				source = character
				break
			}
		}
	}

	source = strings.TrimSpace(strings.ReplaceAll(source, "Pop!", ""))

	var tag strings.Builder
	for _, word := range strings.Fields(source) {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		for _, r := range runes {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				tag.WriteRune(r)
			}
		}
	}

	if tag.Len() == 0 {
		return "FunkoPop"
	}
	return tag.String()
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	return fields[0]
}

func truncatePost(text string) string {
	runes := []rune(text)
	if len(runes) <= maxPostRunes {
		return text
	}
	return string(runes[:maxPostRunes-3]) + "..."
}

// mainAltText describes the primary image for accessibility.
func mainAltText(item domain.Item) string {
	symbol := currencySymbols[item.Currency]
	if symbol == "" {
		symbol = item.Currency
	}

	if item.Fandom != "" && item.Fandom != "Other" {
		return fmt.Sprintf("%s Funko Pop figure: %s, priced at %s%.2f", item.Fandom, item.Title, symbol, item.Price)
	}
	return fmt.Sprintf("Funko Pop figure: %s, priced at %s%.2f", item.Title, symbol, item.Price)
}

// boxAltText describes the alternate in-box shot.
func boxAltText(item domain.Item) string {
	return item.Title + " in original packaging"
}
